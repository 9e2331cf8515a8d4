package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// SolutionStore is what SolutionService needs from the repository layer.
type SolutionStore interface {
	repository.SolutionRepository
	repository.ProjectRepository
	repository.UserRepository
}

// SolutionService manages a project's solution database.
type SolutionService struct {
	store  SolutionStore
	logger *slog.Logger
}

func NewSolutionService(store SolutionStore, logger *slog.Logger) *SolutionService {
	return &SolutionService{store: store, logger: logger}
}

// SolutionInput creates or patches a solution. On update nil fields are kept.
type SolutionInput struct {
	Title           *string
	Problem         *string
	Approach        *string
	Code            *string
	Language        *string
	Difficulty      *string
	TimeComplexity  *string
	SpaceComplexity *string
	Tags            *[]string
}

// Create records a solution and credits the author's LifetimeSolutions and
// Contributions counters.
func (s *SolutionService) Create(ctx context.Context, userID, projectID string, in SolutionInput) (*model.Solution, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	if in.Title == nil {
		return nil, apperror.ValidationFailed("title", "Title is required")
	}
	sol := &model.Solution{ProjectID: p.ID, CreatedBy: userID, Difficulty: "medium"}
	if err := applySolution(sol, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateSolution(ctx, sol); err != nil {
		return nil, err
	}

	bumpAnalytics(ctx, s.store, s.logger, userID, model.StatLifetimeSolutions)
	bumpAnalytics(ctx, s.store, s.logger, userID, model.StatContributions)
	return sol, nil
}

func (s *SolutionService) List(ctx context.Context, userID, projectID string) ([]model.Solution, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	return s.store.ListSolutions(ctx, p.ID)
}

func (s *SolutionService) Get(ctx context.Context, userID, id string) (*model.Solution, error) {
	sol, _, err := s.load(ctx, userID, id)
	return sol, err
}

func (s *SolutionService) Update(ctx context.Context, userID, id string, in SolutionInput) (*model.Solution, error) {
	sol, d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !authz.IsAuthorOrPrivileged(d, sol.CreatedBy, userID) {
		return nil, apperror.Forbidden("Forbidden")
	}
	if err := applySolution(sol, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSolution(ctx, sol); err != nil {
		return nil, err
	}
	return sol, nil
}

func (s *SolutionService) Delete(ctx context.Context, userID, id string) error {
	sol, d, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}
	if !authz.IsAuthorOrPrivileged(d, sol.CreatedBy, userID) {
		return apperror.Forbidden("Forbidden")
	}
	return s.store.DeleteSolution(ctx, sol.ID)
}

func (s *SolutionService) load(ctx context.Context, userID, id string) (*model.Solution, authz.Decision, error) {
	sol, err := s.store.GetSolution(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, authz.Decision{}, err
	}
	_, d, err := loadProject(ctx, s.store, sol.ProjectID, userID, model.RoleMember)
	if err != nil {
		return nil, d, err
	}
	return sol, d, nil
}

func applySolution(sol *model.Solution, in SolutionInput) error {
	var err error
	if in.Title != nil {
		if sol.Title, err = requireText("title", "Title", *in.Title, MaxTitleLength); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		field string
		src   *string
		dst   *string
		max   int
	}{
		{"problem", in.Problem, &sol.Problem, MaxDescriptionLength},
		{"approach", in.Approach, &sol.Approach, MaxDescriptionLength},
		{"code", in.Code, &sol.Code, MaxCodeLength},
		{"language", in.Language, &sol.Language, 40},
		{"timeComplexity", in.TimeComplexity, &sol.TimeComplexity, 40},
		{"spaceComplexity", in.SpaceComplexity, &sol.SpaceComplexity, 40},
	} {
		if f.src == nil {
			continue
		}
		v := strings.TrimSpace(*f.src)
		if err := checkLength(f.field, f.field, v, f.max); err != nil {
			return err
		}
		*f.dst = v
	}
	if in.Difficulty != nil {
		switch d := strings.ToLower(strings.TrimSpace(*in.Difficulty)); d {
		case "easy", "medium", "hard":
			sol.Difficulty = d
		default:
			return apperror.ValidationFailed("difficulty", "Difficulty must be easy, medium or hard")
		}
	}
	if in.Tags != nil {
		if sol.Tags, err = cleanTags(*in.Tags); err != nil {
			return err
		}
	}
	return nil
}
