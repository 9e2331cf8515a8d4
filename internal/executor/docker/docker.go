// Package docker runs snippets inside short-lived Docker containers.
//
// Each supported language has its own Pool of pre-warmed containers started
// with `sleep infinity`. A run takes one container, executes the code through
// `docker exec`, and removes the container; the pool manager replaces it in
// the background.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/unityboard/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements executor.Executor using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pools  map[string]*Pool
}

// New connects to the Docker daemon, pulls every runtime image and starts
// one pool per language.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if len(cfg.Runtimes) == 0 {
		return nil, fmt.Errorf("docker: no runtimes configured")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reapStale(ctx, cli, logger)

	for lang, rt := range cfg.Runtimes {
		logger.Info("ensuring docker image is available",
			slog.String("language", lang), slog.String("image", rt.Image))
		if err := pullImage(ctx, cli, rt.Image); err != nil {
			cli.Close()
			return nil, err
		}
	}

	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pools:  make(map[string]*Pool, len(cfg.Runtimes)),
	}
	for lang, rt := range cfg.Runtimes {
		pool := NewPool(cli, lang, rt, cfg, logger.With(slog.String("language", lang)))
		pool.Start()
		e.pools[lang] = pool
	}
	return e, nil
}

func pullImage(ctx context.Context, cli *client.Client, ref string) error {
	reader, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pulling %s: %w", ref, err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	_, err = io.Copy(io.Discard, reader)
	return err
}

// reapStale removes sandbox containers left behind by a previous process
// that exited without stopping its pools.
func reapStale(ctx context.Context, cli *client.Client, logger *slog.Logger) {
	stale, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelSandbox)),
	})
	if err != nil {
		logger.Warn("failed to list stale sandbox containers", slog.String("error", err.Error()))
		return
	}
	for _, c := range stale {
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			logger.Warn("failed to remove stale sandbox container",
				slog.String("id", c.ID), slog.String("error", err.Error()))
		}
	}
	if len(stale) > 0 {
		logger.Info("removed stale sandbox containers", slog.Int("count", len(stale)))
	}
}

// Close stops every pool and the docker client.
func (e *Executor) Close() error {
	for _, p := range e.pools {
		p.Stop()
	}
	return e.cli.Close()
}

// Execute runs req.Code in a container of the request's language.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	lang, ok := executor.NormalizeLanguage(req.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", executor.ErrUnsupportedLanguage, req.Language)
	}
	rt, ok := e.config.Runtimes[lang]
	pool := e.pools[lang]
	if !ok || pool == nil {
		return nil, fmt.Errorf("%w: %q", executor.ErrUnsupportedLanguage, req.Language)
	}

	start := time.Now()

	containerID, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer pool.Discard(containerID)

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          rt.command(req.Code),
	})
	if err != nil {
		return nil, fmt.Errorf("docker: creating exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the combined docker stream.
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	var exitCode int
	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			exitCode = inspectResp.ExitCode
		}
	case <-executeCtx.Done():
		// Closing the hijacked connection unblocks StdCopy before the buffers are read.
		attachResp.Close()
		<-done
		exitCode = executor.TimedOutExitCode
		stderr.WriteString("\nExecution timed out.\n")
	}

	e.logger.Debug("sandbox run finished",
		slog.String("language", lang),
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", time.Since(start)),
	)
	return &executor.ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}
