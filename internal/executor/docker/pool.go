package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// labelSandbox marks every container the sandbox creates. Its value is the
// language, so leftovers of a crashed process can be found and reaped.
const labelSandbox = "unityboard.sandbox"

const (
	minRetry = time.Second
	maxRetry = 30 * time.Second
)

// Pool keeps idle containers of one runtime warm so a snippet run skips the
// container start. Containers are single use: Acquire hands one out and the
// caller removes it with Discard when the run is over.
type Pool struct {
	cli    *client.Client
	lang   string
	rt     Runtime
	limits Config
	logger *slog.Logger

	ready   chan string
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewPool prepares a pool for one language. Call Start to begin warming.
func NewPool(cli *client.Client, lang string, rt Runtime, limits Config, logger *slog.Logger) *Pool {
	size := limits.PoolSize
	if size < 1 {
		size = 1
	}
	return &Pool{
		cli:     cli,
		lang:    lang,
		rt:      rt,
		limits:  limits,
		logger:  logger,
		ready:   make(chan string, size),
		stopped: make(chan struct{}),
	}
}

// Start warms containers in the background until Stop.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.logger.Info("sandbox pool starting",
		slog.String("image", p.rt.Image), slog.Int("size", cap(p.ready)))
	go p.fill(ctx)
}

// Stop ends warming and removes the idle containers.
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.stopped
	for {
		select {
		case id := <-p.ready:
			p.Discard(id)
		default:
			p.logger.Info("sandbox pool stopped", slog.String("image", p.rt.Image))
			return
		}
	}
}

// Acquire takes a warm container, waiting until one is ready or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.ready:
		return id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("docker: waiting for a %s sandbox: %w", p.lang, ctx.Err())
	}
}

// Discard force-removes a container that has been used.
func (p *Pool) Discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Warn("failed to remove sandbox container",
			slog.String("id", id), slog.String("error", err.Error()))
	}
}

// fill creates containers while there is room in ready. The send blocks
// while the pool is full; creation failures back off up to maxRetry.
func (p *Pool) fill(ctx context.Context) {
	defer close(p.stopped)
	retry := minRetry
	for {
		id, err := p.create(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("failed to warm sandbox container",
				slog.Duration("retry_in", retry), slog.String("error", err.Error()))
			select {
			case <-time.After(retry):
				retry = nextRetry(retry)
				continue
			case <-ctx.Done():
				return
			}
		}
		retry = minRetry

		select {
		case p.ready <- id:
		case <-ctx.Done():
			p.Discard(id)
			return
		}
	}
}

func nextRetry(d time.Duration) time.Duration {
	d *= 2
	if d > maxRetry {
		return maxRetry
	}
	return d
}

// create starts an idle container running `sleep infinity`: no network,
// read-only root, a small writable /tmp, unprivileged user.
func (p *Pool) create(parent context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:  p.rt.Image,
		Cmd:    []string{"sleep", "infinity"},
		User:   "nobody",
		Labels: map[string]string{labelSandbox: p.lang},
	}, &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.limits.MemoryLimit,
			NanoCPUs: int64(p.limits.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,size=16m"},
	}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("docker: creating %s container: %w", p.lang, err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.Discard(resp.ID)
		return "", fmt.Errorf("docker: starting %s container: %w", p.lang, err)
	}
	return resp.ID, nil
}
