package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/service"
)

// LearningHandler serves the personal learning tracker. Entries are only
// visible to their creator; other users get 404.
type LearningHandler struct {
	svc    *service.LearningService
	logger *slog.Logger
}

func NewLearningHandler(svc *service.LearningService, logger *slog.Logger) *LearningHandler {
	return &LearningHandler{svc: svc, logger: logger}
}

type learningRequest struct {
	Topic     *string   `json:"topic"`
	Notes     *string   `json:"notes"`
	Status    *string   `json:"status" validate:"omitnil,oneof=planned in-progress done"`
	Resources *[]string `json:"resources"`
	Tags      *[]string `json:"tags"`
}

func (req learningRequest) input() service.LearningInput {
	return service.LearningInput{
		Topic:     req.Topic,
		Notes:     req.Notes,
		Status:    req.Status,
		Resources: req.Resources,
		Tags:      req.Tags,
	}
}

// HTTP: POST /api/projects/{id}/learning
func (h *LearningHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req learningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	l, err := h.svc.Create(r.Context(), callerID(r), pathParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"learning": l})
}

// HTTP: GET /api/projects/{id}/learning
func (h *LearningHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"learning": list})
}

// HTTP: GET /api/learning/{id}
func (h *LearningHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Get(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"learning": l})
}

// HTTP: PATCH /api/learning/{id}
func (h *LearningHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req learningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	l, err := h.svc.Update(r.Context(), callerID(r), pathParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"learning": l})
}

// HTTP: DELETE /api/learning/{id}
func (h *LearningHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Entry deleted"})
}
