package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/service"
)

// ThreadHandler serves discussion threads and their messages. Writes are
// also pushed to the project room by the services.
type ThreadHandler struct {
	threads  *service.ThreadService
	messages *service.MessageService
	logger   *slog.Logger
}

func NewThreadHandler(threads *service.ThreadService, messages *service.MessageService, logger *slog.Logger) *ThreadHandler {
	return &ThreadHandler{threads: threads, messages: messages, logger: logger}
}

type createThreadRequest struct {
	Title string   `json:"title" validate:"required"`
	Tags  []string `json:"tags"`
}

// HTTP: POST /api/projects/{id}/threads
func (h *ThreadHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.threads.Create(r.Context(), callerID(r), pathParam(r, "id"), req.Title, req.Tags)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"thread": t})
}

// HandleList returns pinned threads first, then by last activity.
//
// HTTP: GET /api/projects/{id}/threads
func (h *ThreadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.List(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"threads": threads})
}

// HTTP: GET /api/threads/{id}
func (h *ThreadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.threads.Get(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"thread": t})
}

type updateThreadRequest struct {
	Title  *string   `json:"title"`
	Tags   *[]string `json:"tags"`
	Pinned *bool     `json:"pinned"`
	Locked *bool     `json:"locked"`
}

// HTTP: PATCH /api/threads/{id}
func (h *ThreadHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.threads.Update(r.Context(), callerID(r), pathParam(r, "id"), service.ThreadPatch{
		Title:  req.Title,
		Tags:   req.Tags,
		Pinned: req.Pinned,
		Locked: req.Locked,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"thread": t})
}

// HTTP: DELETE /api/threads/{id}
func (h *ThreadHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.threads.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Thread deleted"})
}

type postMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// HandlePostMessage posts into a thread. Locked threads answer 423 unless the
// caller is an owner or admin.
//
// HTTP: POST /api/threads/{id}/messages {"text"}
func (h *ThreadHandler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msg, err := h.messages.Post(r.Context(), callerID(r), pathParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"message": msg})
}

// HTTP: GET /api/threads/{id}/messages?limit=&offset=
func (h *ThreadHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.List(r.Context(), callerID(r), pathParam(r, "id"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"messages": msgs})
}

// HandleDeleteMessage tombstones a message.
//
// HTTP: DELETE /api/messages/{id}
func (h *ThreadHandler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.Delete(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": msg})
}
