package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/service"
)

// SnippetHandler manages a project's code snippets and runs them in the
// sandbox. The handler never touches the executor directly: running goes
// through SnippetService, which owns the membership check and the
// sandbox-disabled answer.
type SnippetHandler struct {
	svc    *service.SnippetService
	logger *slog.Logger
}

func NewSnippetHandler(svc *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{svc: svc, logger: logger}
}

type snippetRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Language    *string   `json:"language"`
	Code        *string   `json:"code"`
	Tags        *[]string `json:"tags"`
}

func (req snippetRequest) input() service.SnippetInput {
	return service.SnippetInput{
		Title:       req.Title,
		Description: req.Description,
		Language:    req.Language,
		Code:        req.Code,
		Tags:        req.Tags,
	}
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/projects/{id}/snippets
// REQUEST BODY: {"title": "hello", "language": "python", "code": "print('hi')"}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sn, err := h.svc.Create(r.Context(), callerID(r), pathParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"snippet": sn})
}

// HandleList returns a page of snippets, newest first.
//
// HTTP: GET /api/projects/{id}/snippets?limit=&offset=
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), callerID(r), pathParam(r, "id"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"snippets": list})
}

// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sn, err := h.svc.Get(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"snippet": sn})
}

// HandleUpdate patches a snippet. Author, owner or admin only.
//
// HTTP: PATCH /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sn, err := h.svc.Update(r.Context(), callerID(r), pathParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"snippet": sn})
}

// HTTP: DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Snippet deleted"})
}

// HandleRun executes a saved snippet.
//
// HTTP: POST /api/snippets/{id}/run
func (h *SnippetHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Run(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"result": res})
}
