package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/unityboard/internal/executor"
	"github.com/sakif/unityboard/internal/executor/docker"
	"github.com/sakif/unityboard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and realtime server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.db.Close()

	// The sandbox is optional. Without Docker the server still starts and
	// snippet runs answer 400.
	var exec executor.Executor
	if e.cfg.Sandbox.Enabled {
		d, err := docker.New(docker.DefaultConfig(), e.logger)
		if err != nil {
			e.logger.Warn("docker sandbox unavailable, code execution disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer d.Close()
			exec = d
		}
	}

	srv, err := server.New(e.cfg, e.db, exec, e.logger)
	if err != nil {
		e.logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	if err := srv.Run(ctx); err != nil {
		e.logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
