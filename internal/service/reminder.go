package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/repository"
)

// Reminder sends task_due notifications for tasks approaching their due date.
//
// Each task is reminded once: after its assignees are notified the task is
// flagged, and the flag is cleared only when the due date changes. There is
// no cross-process lock, so running several server instances against one
// database duplicates reminders.
type Reminder struct {
	tasks    repository.TaskRepository
	notifier *notify.Notifier
	window   time.Duration
	logger   *slog.Logger
}

// NewReminder reminds about tasks due within window of each sweep.
func NewReminder(tasks repository.TaskRepository, notifier *notify.Notifier, window time.Duration, logger *slog.Logger) *Reminder {
	return &Reminder{tasks: tasks, notifier: notifier, window: window, logger: logger}
}

// Sweep notifies assignees of every unfinished, not yet reminded task due
// before now+window (overdue ones included). It returns the number of tasks
// handled.
func (r *Reminder) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := r.tasks.ListDueTasks(ctx, now.Add(r.window))
	if err != nil {
		return 0, fmt.Errorf("reminder: listing due tasks: %w", err)
	}

	handled := 0
	for i := range due {
		t := &due[i]
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		meta := map[string]any{"taskId": t.ID, "projectId": t.ProjectID}
		if t.DueDate != nil {
			meta["dueDate"] = t.DueDate.UTC().Format(time.RFC3339)
		}
		r.notifier.NotifyMany(ctx, t.Assignees, model.NotifyTaskDue, dueMessage(t, now), meta)

		if err := r.tasks.MarkTaskDueNotified(ctx, t.ID); err != nil {
			r.logger.Warn("task not marked as reminded", slog.String("task_id", t.ID), slog.String("error", err.Error()))
			continue
		}
		handled++
	}
	if handled > 0 {
		r.logger.Info("due-date reminders sent", slog.Int("tasks", handled))
	}
	return handled, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (r *Reminder) Run(ctx context.Context, interval time.Duration) {
	r.sweepLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepLogged(ctx)
		}
	}
}

func (r *Reminder) sweepLogged(ctx context.Context) {
	if _, err := r.Sweep(ctx, time.Now()); err != nil && ctx.Err() == nil {
		r.logger.Error("due-date sweep failed", slog.String("error", err.Error()))
	}
}

func dueMessage(t *model.Task, now time.Time) string {
	if t.DueDate != nil && t.DueDate.Before(now) {
		return fmt.Sprintf("Task %q is overdue", t.Title)
	}
	return fmt.Sprintf("Task %q is due soon", t.Title)
}
