package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/service"
)

// InvitationHandler serves invite links. Preview is public so the landing
// page can show the project before the visitor signs in.
type InvitationHandler struct {
	svc    *service.InvitationService
	logger *slog.Logger
}

func NewInvitationHandler(svc *service.InvitationService, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{svc: svc, logger: logger}
}

type createInviteRequest struct {
	Role           model.Role `json:"role" validate:"omitempty,oneof=admin member"`
	ExpiresInHours int        `json:"expiresInHours" validate:"min=0,max=720"`
	MaxUses        int        `json:"maxUses" validate:"min=0"`
}

// HandleCreate issues an invitation. 0 hours means no expiry and 0 uses
// means unlimited.
//
// HTTP: POST /api/projects/{id}/invites {"role"?, "expiresInHours"?, "maxUses"?}
func (h *InvitationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.Create(r.Context(), callerID(r), pathParam(r, "id"), service.CreateInvitationInput{
		Role:      req.Role,
		ExpiresIn: time.Duration(req.ExpiresInHours) * time.Hour,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"invitation": inv})
}

// HTTP: GET /api/projects/{id}/invites
func (h *InvitationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"invitations": list})
}

type setInviteEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// HTTP: PATCH /api/invites/{key} (key is the invitation id) {"enabled"}
func (h *InvitationHandler) HandleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req setInviteEnabledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.svc.SetEnabled(r.Context(), callerID(r), pathParam(r, "key"), *req.Enabled)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"invitation": inv})
}

// HTTP: DELETE /api/invites/{key} (key is the invitation id)
func (h *InvitationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "key")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Invitation deleted"})
}

// HandlePreview describes the project behind a code or token.
//
// HTTP: GET /api/invites/{key} (key is the code or the token)
func (h *InvitationHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	prev, err := h.svc.Preview(r.Context(), pathParam(r, "key"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"invite": prev})
}

// HandleAccept redeems an invitation. Accepting again as a member is a no-op
// success with alreadyMember=true.
//
// HTTP: POST /api/invites/{key}/accept
func (h *InvitationHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Accept(r.Context(), callerID(r), pathParam(r, "key"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": res.Project, "alreadyMember": res.AlreadyMember})
}
