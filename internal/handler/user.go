package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/service"
)

type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// HandleGet returns a user's public profile. "me" is the caller.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "me" {
		id = callerID(r)
	}
	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": user})
}

type profileRequest struct {
	Name      *string `json:"name" validate:"omitnil,max=100"`
	AvatarURL *string `json:"avatarUrl" validate:"omitnil,max=2048"`
}

// HandleUpdateProfile patches the caller's name and avatar.
//
// HTTP: PATCH /api/users/me {"name"?, "avatarUrl"?}
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.svc.UpdateProfile(r.Context(), callerID(r), service.ProfileUpdate{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": user})
}

// HandleAnalytics returns the caller's counters.
//
// HTTP: GET /api/users/me/analytics
func (h *UserHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Analytics(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"analytics": stats})
}
