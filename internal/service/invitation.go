package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/repository"
)

// Invite codes are short and typed by hand, so the alphabet leaves out
// 0/O and 1/I/L.
const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	inviteCodeAttempts = 3
	MaxInviteLifetime  = 30 * 24 * time.Hour
)

var errInviteUnusable = apperror.ValidationFailed("code", "Invitation is no longer valid")

// InvitationStore is what InvitationService needs from the repository layer.
type InvitationStore interface {
	repository.InvitationRepository
	repository.ProjectRepository
}

// InvitationService manages invite links. Each invitation carries a short
// code for sharing by hand and a long token for links; either redeems it.
type InvitationService struct {
	store    InvitationStore
	notifier *notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewInvitationService(store InvitationStore, notifier *notify.Notifier, logger *slog.Logger) *InvitationService {
	return &InvitationService{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// CreateInvitationInput configures a new invitation. Zero ExpiresIn means
// no expiry, zero MaxUses means unlimited.
type CreateInvitationInput struct {
	Role      model.Role
	ExpiresIn time.Duration
	MaxUses   int
}

// InvitationPreview is what an invitee sees before accepting.
type InvitationPreview struct {
	ProjectID   string     `json:"projectId"`
	ProjectName string     `json:"projectName"`
	Description string     `json:"description"`
	Role        model.Role `json:"role"`
	MemberCount int        `json:"memberCount"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// AcceptResult reports whether Accept actually added the caller.
type AcceptResult struct {
	Project       *model.Project `json:"project"`
	AlreadyMember bool           `json:"alreadyMember"`
}

// Create issues an invitation. Owners and admins may invite members; only
// the owner may invite admins. Nobody can invite an owner.
func (s *InvitationService) Create(ctx context.Context, userID, projectID string, in CreateInvitationInput) (*model.Invitation, error) {
	p, d, err := loadProject(ctx, s.store, projectID, userID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = model.RoleMember
	}
	switch role {
	case model.RoleMember:
	case model.RoleAdmin:
		if !d.Owner() {
			return nil, apperror.Forbidden("Only the owner can invite admins")
		}
	default:
		return nil, apperror.ValidationFailed("role", "Role must be admin or member")
	}
	if in.MaxUses < 0 {
		return nil, apperror.ValidationFailed("maxUses", "maxUses must not be negative")
	}
	if in.ExpiresIn < 0 || in.ExpiresIn > MaxInviteLifetime {
		return nil, apperror.ValidationFailed("expiresIn", "Expiry must be between 0 and 30 days")
	}

	inv := &model.Invitation{
		ProjectID: p.ID,
		Token:     uuid.NewString(),
		Role:      role,
		MaxUses:   in.MaxUses,
		Enabled:   true,
		CreatedBy: userID,
	}
	if in.ExpiresIn > 0 {
		at := s.now().UTC().Add(in.ExpiresIn)
		inv.ExpiresAt = &at
	}

	// Codes are random; retry the rare collision with a fresh one.
	for attempt := 1; ; attempt++ {
		code, err := newInviteCode()
		if err != nil {
			return nil, err
		}
		inv.Code = code
		err = s.store.CreateInvitation(ctx, inv)
		if err == nil {
			break
		}
		if !errors.Is(err, apperror.ErrConflict) || attempt == inviteCodeAttempts {
			return nil, err
		}
	}

	s.logger.Info("invitation created",
		slog.String("project_id", p.ID), slog.String("invitation_id", inv.ID), slog.String("role", string(role)))
	return inv, nil
}

// List returns a project's invitations to its owner and admins.
func (s *InvitationService) List(ctx context.Context, userID, projectID string) ([]model.Invitation, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return s.store.ListInvitations(ctx, p.ID)
}

// SetEnabled switches an invitation on or off.
func (s *InvitationService) SetEnabled(ctx context.Context, userID, invitationID string, enabled bool) (*model.Invitation, error) {
	inv, err := s.authorize(ctx, userID, invitationID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetInvitationEnabled(ctx, inv.ID, enabled); err != nil {
		return nil, err
	}
	inv.Enabled = enabled
	return inv, nil
}

func (s *InvitationService) Delete(ctx context.Context, userID, invitationID string) error {
	inv, err := s.authorize(ctx, userID, invitationID)
	if err != nil {
		return err
	}
	return s.store.DeleteInvitation(ctx, inv.ID)
}

func (s *InvitationService) authorize(ctx context.Context, userID, invitationID string) (*model.Invitation, error) {
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if _, _, err := loadProject(ctx, s.store, inv.ProjectID, userID, model.RoleAdmin); err != nil {
		return nil, err
	}
	return inv, nil
}

// Preview describes the project behind a code or token. Unusable
// invitations are reported as a 400.
func (s *InvitationService) Preview(ctx context.Context, codeOrToken string) (*InvitationPreview, error) {
	inv, p, err := s.resolve(ctx, codeOrToken)
	if err != nil {
		return nil, err
	}
	if !inv.Usable(s.now()) {
		return nil, errInviteUnusable
	}
	return &InvitationPreview{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Description: p.Description,
		Role:        inv.Role,
		MemberCount: len(p.Members),
		ExpiresAt:   inv.ExpiresAt,
	}, nil
}

// Accept redeems an invitation for userID. Accepting again as an existing
// member succeeds without changing the member list or the use count.
//
// A first join sends member_joined to the owners, admins and the joiner, and
// invite_accepted to whoever created the invitation.
func (s *InvitationService) Accept(ctx context.Context, userID, codeOrToken string) (*AcceptResult, error) {
	inv, p, err := s.resolve(ctx, codeOrToken)
	if err != nil {
		return nil, err
	}
	if _, ok := authz.RoleOf(p, userID); ok {
		return &AcceptResult{Project: p, AlreadyMember: true}, nil
	}
	if !inv.Usable(s.now()) {
		return nil, errInviteUnusable
	}
	// Claim the use before adding the member so concurrent accepts by
	// different users cannot go past MaxUses.
	claimed, err := s.store.ClaimInvitationUse(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errInviteUnusable
	}

	added, err := s.store.AddMember(ctx, p.ID, userID, inv.Role)
	if err != nil || !added {
		if rerr := s.store.ReleaseInvitationUse(ctx, inv.ID); rerr != nil {
			s.logger.Warn("invitation use not released",
				slog.String("invitation_id", inv.ID), slog.String("error", rerr.Error()))
		}
	}
	if err != nil {
		return nil, err
	}
	if !added {
		// Lost a race with a concurrent accept by the same user.
		p, err = s.store.GetProject(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &AcceptResult{Project: p, AlreadyMember: true}, nil
	}

	announceJoin(ctx, s.notifier, p, userID)
	s.notifier.NotifyMany(ctx, notify.Except([]string{inv.CreatedBy}, userID), model.NotifyInviteAccepted,
		fmt.Sprintf("Your invitation to %s was accepted", p.Name),
		map[string]any{"projectId": p.ID, "userId": userID, "invitationId": inv.ID})

	p, err = s.store.GetProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invitation accepted",
		slog.String("invitation_id", inv.ID), slog.String("user_id", userID))
	return &AcceptResult{Project: p}, nil
}

func (s *InvitationService) resolve(ctx context.Context, codeOrToken string) (*model.Invitation, *model.Project, error) {
	key := strings.TrimSpace(codeOrToken)
	if key == "" {
		return nil, nil, apperror.ValidationFailed("code", "Invitation code is required")
	}
	if len(key) == inviteCodeLength {
		key = strings.ToUpper(key)
	}
	inv, err := s.store.FindInvitation(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.store.GetProject(ctx, inv.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return inv, p, nil
}

// newInviteCode draws inviteCodeLength characters uniformly from the alphabet.
func newInviteCode() (string, error) {
	const n = len(inviteCodeAlphabet)
	// Largest multiple of n below 256; bytes above it are rejected to avoid bias.
	const limit = 256 - 256%n

	out := make([]byte, 0, inviteCodeLength)
	buf := make([]byte, inviteCodeLength*2)
	for len(out) < inviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("service/invitation: generating code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, inviteCodeAlphabet[int(b)%n])
			if len(out) == inviteCodeLength {
				break
			}
		}
	}
	return string(out), nil
}
