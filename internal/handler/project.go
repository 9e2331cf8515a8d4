package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/service"
)

// ProjectHandler serves projects and their membership.
type ProjectHandler struct {
	svc    *service.ProjectService
	logger *slog.Logger
}

func NewProjectHandler(svc *service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

type createProjectRequest struct {
	Name           string           `json:"name" validate:"required,max=100"`
	Description    string           `json:"description"`
	Visibility     model.Visibility `json:"visibility" validate:"omitempty,oneof=public private"`
	Password       string           `json:"password"`
	ChatSingleRoom bool             `json:"chatSingleRoom"`
}

// HandleCreate creates a project owned by the caller.
//
// HTTP: POST /api/projects
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Create(r.Context(), callerID(r), service.CreateProjectInput{
		Name:           req.Name,
		Description:    req.Description,
		Visibility:     req.Visibility,
		Password:       req.Password,
		ChatSingleRoom: req.ChatSingleRoom,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"project": p})
}

// HandleListMine lists the projects the caller belongs to.
//
// HTTP: GET /api/projects
func (h *ProjectHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListMine(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"projects": projects})
}

// HandleListPublic is the public directory.
//
// HTTP: GET /api/projects/public?limit=&offset=
func (h *ProjectHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListPublic(r.Context(), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"projects": projects})
}

// HandleGet returns one project with populated members.
//
// HTTP: GET /api/projects/{id}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": p})
}

type updateProjectRequest struct {
	Name           *string           `json:"name" validate:"omitnil,max=100"`
	Description    *string           `json:"description"`
	Visibility     *model.Visibility `json:"visibility" validate:"omitnil,oneof=public private"`
	Password       *string           `json:"password"`
	ChatSingleRoom *bool             `json:"chatSingleRoom"`
}

// HandleUpdate patches a project.
//
// HTTP: PATCH /api/projects/{id}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Update(r.Context(), callerID(r), pathParam(r, "id"), service.UpdateProjectInput{
		Name:           req.Name,
		Description:    req.Description,
		Visibility:     req.Visibility,
		Password:       req.Password,
		ChatSingleRoom: req.ChatSingleRoom,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": p})
}

// HandleDelete deletes a project and everything in it.
//
// HTTP: DELETE /api/projects/{id}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Project deleted"})
}

// HandleJoin joins a public project.
//
// HTTP: POST /api/projects/{id}/join
func (h *ProjectHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.JoinPublic(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": p})
}

type joinPrivateRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleJoinPrivate joins a private project by name and password.
//
// HTTP: POST /api/projects/join-private {"name","password"}
func (h *ProjectHandler) HandleJoinPrivate(w http.ResponseWriter, r *http.Request) {
	var req joinPrivateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.JoinPrivate(r.Context(), callerID(r), req.Name, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": p})
}

// HandleLeave removes the caller from a project. The owner cannot leave.
//
// HTTP: POST /api/projects/{id}/leave
func (h *ProjectHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Leave(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Left project"})
}

// HandleMembers lists members with populated profiles.
//
// HTTP: GET /api/projects/{id}/members
func (h *ProjectHandler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"members": members})
}

// HandleRemoveMember removes another member.
//
// HTTP: DELETE /api/projects/{id}/members/{userId}
func (h *ProjectHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveMember(r.Context(), callerID(r), pathParam(r, "id"), pathParam(r, "userId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Member removed"})
}

type changeRoleRequest struct {
	Role model.Role `json:"role" validate:"required,oneof=admin member"`
}

// HandleChangeRole promotes or demotes a member. Owner only.
//
// HTTP: PATCH /api/projects/{id}/members/{userId} {"role"}
func (h *ProjectHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.ChangeRole(r.Context(), callerID(r), pathParam(r, "id"), pathParam(r, "userId"), req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": p})
}
