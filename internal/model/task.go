package model

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// ParseTaskStatus normalises client input. "completed" is accepted as an alias of done.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo":
		return StatusTodo, true
	case "in-progress", "in_progress", "inprogress":
		return StatusInProgress, true
	case "done", "completed":
		return StatusDone, true
	}
	return "", false
}

// Task belongs to exactly one project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Assignees   []string   `json:"assignees"`
	Labels      []string   `json:"labels"`
	Comments    []Comment  `json:"comments"`
	CreatedBy   string     `json:"createdBy"`
	DueNotified bool       `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Comment is embedded in a Task.
type Comment struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasAssignee reports whether userID is assigned to t.
func (t *Task) HasAssignee(userID string) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}
