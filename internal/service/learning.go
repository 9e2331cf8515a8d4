package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
)

// Learning statuses.
const (
	LearningPlanned    = "planned"
	LearningInProgress = "in-progress"
	LearningDone       = "done"
)

// LearningStore is what LearningService needs from the repository layer.
type LearningStore interface {
	repository.LearningRepository
	repository.ProjectRepository
}

// LearningService is a personal tracker scoped to a project: entries are
// only ever visible to their creator, who must be a project member.
type LearningService struct {
	store  LearningStore
	logger *slog.Logger
}

func NewLearningService(store LearningStore, logger *slog.Logger) *LearningService {
	return &LearningService{store: store, logger: logger}
}

// LearningInput creates or patches an entry. On update nil fields are kept.
type LearningInput struct {
	Topic     *string
	Notes     *string
	Status    *string
	Resources *[]string
	Tags      *[]string
}

func (s *LearningService) Create(ctx context.Context, userID, projectID string, in LearningInput) (*model.Learning, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	l := &model.Learning{ProjectID: p.ID, CreatedBy: userID, Status: LearningPlanned}
	if in.Topic == nil {
		return nil, apperror.ValidationFailed("topic", "Topic is required")
	}
	if err := applyLearning(l, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateLearning(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// List returns the caller's own entries in the project.
func (s *LearningService) List(ctx context.Context, userID, projectID string) ([]model.Learning, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	return s.store.ListLearning(ctx, p.ID, userID)
}

func (s *LearningService) Get(ctx context.Context, userID, id string) (*model.Learning, error) {
	return s.own(ctx, userID, id)
}

func (s *LearningService) Update(ctx context.Context, userID, id string, in LearningInput) (*model.Learning, error) {
	l, err := s.own(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := applyLearning(l, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateLearning(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LearningService) Delete(ctx context.Context, userID, id string) error {
	l, err := s.own(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.store.DeleteLearning(ctx, l.ID)
}

// own loads an entry for its creator. Anyone else gets a 404, not a 403, so
// entries cannot be probed.
func (s *LearningService) own(ctx context.Context, userID, id string) (*model.Learning, error) {
	l, err := s.store.GetLearning(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if l.CreatedBy != userID {
		return nil, apperror.NotFound("learning", id)
	}
	if _, _, err := loadProject(ctx, s.store, l.ProjectID, userID, model.RoleMember); err != nil {
		return nil, err
	}
	return l, nil
}

func applyLearning(l *model.Learning, in LearningInput) error {
	var err error
	if in.Topic != nil {
		if l.Topic, err = requireText("topic", "Topic", *in.Topic, MaxTitleLength); err != nil {
			return err
		}
	}
	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		if err := checkLength("notes", "Notes", notes, MaxCodeLength); err != nil {
			return err
		}
		l.Notes = notes
	}
	if in.Status != nil {
		switch st := strings.ToLower(strings.TrimSpace(*in.Status)); st {
		case LearningPlanned, LearningInProgress, LearningDone:
			l.Status = st
		default:
			return apperror.ValidationFailed("status", "Status must be planned, in-progress or done")
		}
	}
	if in.Resources != nil {
		if l.Resources, err = cleanTags(*in.Resources); err != nil {
			return apperror.ValidationFailed("resources", "Too many resources")
		}
	}
	if in.Tags != nil {
		if l.Tags, err = cleanTags(*in.Tags); err != nil {
			return err
		}
	}
	return nil
}
