package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/service"
)

// ExecuteHandler runs unsaved code from the snippet editor.
type ExecuteHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

func NewExecuteHandler(snippets *service.SnippetService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{snippets: snippets, logger: logger}
}

type executeRequest struct {
	Language string `json:"language" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// HandleExecute runs code in the sandbox and returns stdout, stderr and the
// exit code. A non-zero exit is still a 200: the run itself succeeded.
//
// HTTP: POST /api/snippets/run {"language","code"}
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.snippets.Execute(r.Context(), req.Language, req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"result": res})
}
