package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/service"
)

type TaskHandler struct {
	svc    *service.TaskService
	logger *slog.Logger
}

func NewTaskHandler(svc *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

type createTaskRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Priority    string          `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      string          `json:"status"`
	DueDate     json.RawMessage `json:"dueDate"`
	Assignees   []string        `json:"assignees"`
	Labels      []string        `json:"labels"`
}

// HandleCreate adds a task to a project.
//
// HTTP: POST /api/projects/{id}/tasks
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	due, _, err := parseDueDate(req.DueDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task, err := h.svc.Create(r.Context(), callerID(r), pathParam(r, "id"), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     due,
		Assignees:   req.Assignees,
		Labels:      req.Labels,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"task": task})
}

// HandleList lists a project's tasks.
//
// HTTP: GET /api/projects/{id}/tasks?status=&assignee=
// assignee=me filters to the caller.
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	assignee := r.URL.Query().Get("assignee")
	if assignee == "me" {
		assignee = callerID(r)
	}
	tasks, err := h.svc.List(r.Context(), callerID(r), pathParam(r, "id"), r.URL.Query().Get("status"), assignee)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"tasks": tasks})
}

// HTTP: GET /api/tasks/{id}
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Get(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"task": task})
}

type updateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *string         `json:"priority" validate:"omitnil,oneof=low medium high urgent"`
	Status      *string         `json:"status"`
	DueDate     json.RawMessage `json:"dueDate"`
	Assignees   *[]string       `json:"assignees"`
	Labels      *[]string       `json:"labels"`
}

// HandleUpdate merges the given fields into a task. "dueDate": null clears
// the due date; leaving it out keeps it.
//
// HTTP: PATCH /api/tasks/{id}
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	due, unset, err := parseDueDate(req.DueDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task, err := h.svc.Update(r.Context(), callerID(r), pathParam(r, "id"), service.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Status:       req.Status,
		DueDate:      due,
		ClearDueDate: unset,
		Assignees:    req.Assignees,
		Labels:       req.Labels,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"task": task})
}

// HTTP: DELETE /api/tasks/{id}
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Task deleted"})
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

// HandleComment appends a comment.
//
// HTTP: POST /api/tasks/{id}/comments {"text"}
func (h *TaskHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task, err := h.svc.AddComment(r.Context(), callerID(r), pathParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"task": task})
}

// parseDueDate reads an optional due date. It returns unset=true for an
// explicit null or empty string. Dates may be RFC 3339 or plain YYYY-MM-DD.
func parseDueDate(raw json.RawMessage) (due *time.Time, unset bool, err error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, apperror.ValidationFailed("dueDate", "dueDate must be a date string")
	}
	if s == "" {
		return nil, true, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, false, nil
		}
	}
	return nil, false, apperror.ValidationFailed("dueDate", "dueDate must be an ISO 8601 date")
}
