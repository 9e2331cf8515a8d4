package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/executor"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// SnippetStore is what SnippetService needs from the repository layer.
type SnippetStore interface {
	repository.SnippetRepository
	repository.ProjectRepository
}

// SnippetService manages code snippets and runs them in the sandbox.
//
// exec may be nil when the sandbox is disabled; Run then answers with a
// validation error rather than failing the request with a 5xx.
type SnippetService struct {
	store  SnippetStore
	exec   executor.Executor
	logger *slog.Logger
}

func NewSnippetService(store SnippetStore, exec executor.Executor, logger *slog.Logger) *SnippetService {
	return &SnippetService{store: store, exec: exec, logger: logger}
}

// SnippetInput creates or patches a snippet. On update nil fields are kept.
type SnippetInput struct {
	Title       *string
	Description *string
	Language    *string
	Code        *string
	Tags        *[]string
}

var errSandboxDisabled = apperror.ValidationFailed("language", "Code execution is disabled on this server")

func (s *SnippetService) Create(ctx context.Context, userID, projectID string, in SnippetInput) (*model.Snippet, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	if in.Title == nil {
		return nil, apperror.ValidationFailed("title", "Title is required")
	}
	sn := &model.Snippet{ProjectID: p.ID, CreatedBy: userID, Language: "plaintext"}
	if err := applySnippet(sn, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateSnippet(ctx, sn); err != nil {
		return nil, err
	}
	s.logger.Info("snippet created", slog.String("id", sn.ID), slog.String("project_id", p.ID))
	return sn, nil
}

// List returns a page of the project's snippets.
func (s *SnippetService) List(ctx context.Context, userID, projectID string, limit, offset int) ([]model.Snippet, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	return s.store.ListSnippets(ctx, p.ID, clampPage(limit, offset))
}

func (s *SnippetService) Get(ctx context.Context, userID, id string) (*model.Snippet, error) {
	sn, _, err := s.load(ctx, userID, id)
	return sn, err
}

// Update is allowed to the author and privileged members.
func (s *SnippetService) Update(ctx context.Context, userID, id string, in SnippetInput) (*model.Snippet, error) {
	sn, d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !authz.IsAuthorOrPrivileged(d, sn.CreatedBy, userID) {
		return nil, apperror.Forbidden("Forbidden")
	}
	if err := applySnippet(sn, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSnippet(ctx, sn); err != nil {
		return nil, err
	}
	return sn, nil
}

func (s *SnippetService) Delete(ctx context.Context, userID, id string) error {
	sn, d, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}
	if !authz.IsAuthorOrPrivileged(d, sn.CreatedBy, userID) {
		return apperror.Forbidden("Forbidden")
	}
	if err := s.store.DeleteSnippet(ctx, sn.ID); err != nil {
		return err
	}
	s.logger.Info("snippet deleted", slog.String("id", sn.ID))
	return nil
}

// Run executes a stored snippet for any member of its project.
func (s *SnippetService) Run(ctx context.Context, userID, id string) (*executor.ExecutionResult, error) {
	sn, _, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, sn.Language, sn.Code)
}

// Execute runs ad-hoc code, as typed in the snippet editor before saving.
func (s *SnippetService) Execute(ctx context.Context, language, code string) (*executor.ExecutionResult, error) {
	if s.exec == nil {
		return nil, errSandboxDisabled
	}
	lang, ok := executor.NormalizeLanguage(language)
	if !ok {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("Language %q cannot be executed", language))
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "Code is required")
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	res, err := s.exec.Execute(ctx, executor.ExecutionRequest{Language: lang, Code: code})
	if err != nil {
		if errors.Is(err, executor.ErrUnsupportedLanguage) {
			return nil, apperror.ValidationFailed("language",
				fmt.Sprintf("Language %q cannot be executed", language))
		}
		return nil, fmt.Errorf("service/snippet: executing %s: %w", lang, err)
	}
	s.logger.Info("code executed",
		slog.String("language", lang),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *SnippetService) load(ctx context.Context, userID, id string) (*model.Snippet, authz.Decision, error) {
	sn, err := s.store.GetSnippet(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, authz.Decision{}, err
	}
	_, d, err := loadProject(ctx, s.store, sn.ProjectID, userID, model.RoleMember)
	if err != nil {
		return nil, d, err
	}
	return sn, d, nil
}

func applySnippet(sn *model.Snippet, in SnippetInput) error {
	var err error
	if in.Title != nil {
		if sn.Title, err = requireText("title", "Title", *in.Title, MaxTitleLength); err != nil {
			return err
		}
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if err := checkLength("description", "Description", desc, MaxDescriptionLength); err != nil {
			return err
		}
		sn.Description = desc
	}
	if in.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*in.Language))
		if lang == "" {
			lang = "plaintext"
		}
		if norm, ok := executor.NormalizeLanguage(lang); ok {
			lang = norm
		}
		sn.Language = lang
	}
	if in.Code != nil {
		// Code CAN be empty (user might want to clear it).
		if len(*in.Code) > MaxCodeLength {
			return apperror.ValidationFailed("code",
				fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
		}
		sn.Code = *in.Code
	}
	if in.Tags != nil {
		if sn.Tags, err = cleanTags(*in.Tags); err != nil {
			return err
		}
	}
	return nil
}
