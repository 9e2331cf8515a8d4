package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/service"
)

// SolutionHandler serves a project's solution database.
type SolutionHandler struct {
	svc    *service.SolutionService
	logger *slog.Logger
}

func NewSolutionHandler(svc *service.SolutionService, logger *slog.Logger) *SolutionHandler {
	return &SolutionHandler{svc: svc, logger: logger}
}

type solutionRequest struct {
	Title           *string   `json:"title"`
	Problem         *string   `json:"problem"`
	Approach        *string   `json:"approach"`
	Code            *string   `json:"code"`
	Language        *string   `json:"language"`
	Difficulty      *string   `json:"difficulty" validate:"omitnil,oneof=easy medium hard"`
	TimeComplexity  *string   `json:"timeComplexity"`
	SpaceComplexity *string   `json:"spaceComplexity"`
	Tags            *[]string `json:"tags"`
}

func (req solutionRequest) input() service.SolutionInput {
	return service.SolutionInput{
		Title:           req.Title,
		Problem:         req.Problem,
		Approach:        req.Approach,
		Code:            req.Code,
		Language:        req.Language,
		Difficulty:      req.Difficulty,
		TimeComplexity:  req.TimeComplexity,
		SpaceComplexity: req.SpaceComplexity,
		Tags:            req.Tags,
	}
}

// HTTP: POST /api/projects/{id}/solutions
func (h *SolutionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req solutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sol, err := h.svc.Create(r.Context(), callerID(r), pathParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"solution": sol})
}

// HTTP: GET /api/projects/{id}/solutions
func (h *SolutionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"solutions": list})
}

// HTTP: GET /api/solutions/{id}
func (h *SolutionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sol, err := h.svc.Get(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"solution": sol})
}

// HTTP: PATCH /api/solutions/{id}
func (h *SolutionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req solutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sol, err := h.svc.Update(r.Context(), callerID(r), pathParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"solution": sol})
}

// HTTP: DELETE /api/solutions/{id}
func (h *SolutionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Solution deleted"})
}
