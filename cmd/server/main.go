// Package main is the entry point for the UnityBoard server.
//
// The main package stays small: read configuration, build the long-lived
// dependencies (logger, database, sandbox), then hand over to internal/server.
//
//	unityboard            same as "unityboard serve"
//	unityboard serve      HTTP API, realtime socket and the web client
//	unityboard remind     one due-date reminder sweep, then exit (cron)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/unityboard/internal/config"
	sqliteRepo "github.com/sakif/unityboard/internal/repository/sqlite"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "unityboard",
	Short:         "UnityBoard - project collaboration server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, remindCmd)
}

// env is what every command starts from.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: the log settings live in the config that failed.
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM (docker stop, systemd).
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
