// Package service contains the business rules of UnityBoard.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, authorizes, orchestrates side effects
//	Repository (data layer)  → reads/writes SQLite
//
// Services accept plain Go values and the caller's user id, never HTTP types,
// and return *apperror.AppError for anything the client should see.
//
// AUTHORIZATION:
// Every project-scoped operation loads the project and calls authz.Check
// exactly once with the minimum role it needs (see loadProject).
//
// SIDE EFFECTS:
// Notifications, realtime pushes and analytics counters run after the
// primary write. Their failures are logged at Warn and never returned.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// Validation limits.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxMessageLength     = 5000
	MaxCodeLength        = 100000
	MaxTags              = 20
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// loadProject fetches projectID and checks userID holds at least min.
func loadProject(ctx context.Context, projects repository.ProjectRepository, projectID, userID string, min model.Role) (*model.Project, authz.Decision, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, authz.Decision{}, apperror.ValidationFailed("project", "Project is required")
	}
	p, err := projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, authz.Decision{}, err
	}
	d, err := authz.Require(p, userID, min)
	if err != nil {
		return nil, d, err
	}
	return p, d, nil
}

// requireText trims s and checks it is present and at most max runes long.
func requireText(field, label, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.ValidationFailed(field, label+" is required")
	}
	return s, checkLength(field, label, s, max)
}

func checkLength(field, label, s string, max int) error {
	if utf8.RuneCountInString(s) > max {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", label, max))
	}
	return nil
}

// cleanTags trims, drops empties and duplicates, and caps the count.
func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	return out, nil
}

// clampPage applies the default and maximum page size.
func clampPage(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

// bumpAnalytics increments a user counter. Failures are only logged.
func bumpAnalytics(ctx context.Context, users repository.UserRepository, logger *slog.Logger, userID string, field model.AnalyticsField) {
	if err := users.IncrementAnalytics(ctx, userID, field, 1); err != nil {
		logger.Warn("analytics update failed",
			slog.String("user_id", userID),
			slog.String("field", string(field)),
			slog.String("error", err.Error()),
		)
	}
}
