package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/realtime"
	"github.com/sakif/unityboard/internal/service"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run one due-date reminder sweep and exit",
	Long: "Sends task_due notifications for open tasks due within the reminder window.\n" +
		"Useful from cron when the server runs with a long REMINDER_INTERVAL.",
	Args: cobra.NoArgs,
	RunE: runRemind,
}

func runRemind(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.db.Close()

	ctx, stop := signalContext()
	defer stop()

	// Nobody is connected to this process's hub, so notifications are only
	// stored; clients pick them up on their next fetch.
	hub := realtime.NewHub(e.logger)
	reminder := service.NewReminder(e.db, notify.New(e.db, hub, e.logger), e.cfg.Reminder.Window, e.logger)

	n, err := reminder.Sweep(ctx, time.Now())
	if err != nil {
		e.logger.Error("reminder sweep failed", slog.String("error", err.Error()))
		return err
	}
	e.logger.Info("reminder sweep finished", slog.Int("reminded", n))
	return nil
}
