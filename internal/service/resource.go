package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/repository"
	"github.com/sakif/unityboard/internal/storage"
)

// ResourceStore is what ResourceService needs from the repository layer.
type ResourceStore interface {
	repository.ResourceRepository
	repository.ProjectRepository
}

// ResourceService shares links and uploaded files inside a project.
type ResourceService struct {
	store  ResourceStore
	files  storage.Store
	logger *slog.Logger
}

func NewResourceService(store ResourceStore, files storage.Store, logger *slog.Logger) *ResourceService {
	return &ResourceService{store: store, files: files, logger: logger}
}

// UploadInput is one file from a multipart form.
type UploadInput struct {
	Title    string
	FileName string
	MimeType string
	Body     io.Reader
}

// AddLink shares an external http(s) link.
func (s *ResourceService) AddLink(ctx context.Context, userID, projectID, title, link string) (*model.Resource, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	link = strings.TrimSpace(link)
	if !isWebURL(link) {
		return nil, apperror.ValidationFailed("url", "A valid http(s) URL is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = link
	}
	if err := checkLength("title", "Title", title, MaxTitleLength); err != nil {
		return nil, err
	}

	res := &model.Resource{
		ProjectID:  p.ID,
		UploadedBy: userID,
		Title:      title,
		Provider:   model.ProviderExternal,
		URL:        link,
	}
	if err := s.store.CreateResource(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Upload stores the file and records it. The membership check runs before
// any bytes are written.
func (s *ResourceService) Upload(ctx context.Context, userID, projectID string, in UploadInput) (*model.Resource, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, apperror.ValidationFailed("file", "File is required")
	}
	name := filepath.Base(strings.TrimSpace(in.FileName))
	if name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = name
	}
	if err := checkLength("title", "Title", title, MaxTitleLength); err != nil {
		return nil, err
	}
	mime := in.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}

	stored, err := s.files.Save(ctx, name, in.Body)
	if err != nil {
		return nil, err
	}

	res := &model.Resource{
		ProjectID:  p.ID,
		UploadedBy: userID,
		Title:      title,
		Provider:   model.ProviderLocal,
		URL:        stored.URL,
		StorageKey: stored.Key,
		MimeType:   mime,
		Size:       stored.Size,
		FileName:   name,
	}
	if err := s.store.CreateResource(ctx, res); err != nil {
		if rmErr := s.files.Remove(ctx, stored.Key); rmErr != nil {
			s.logger.Warn("orphaned upload", slog.String("key", stored.Key), slog.String("error", rmErr.Error()))
		}
		return nil, err
	}
	s.logger.Info("file uploaded",
		slog.String("project_id", p.ID), slog.String("key", stored.Key), slog.Int64("size", stored.Size))
	return res, nil
}

func (s *ResourceService) List(ctx context.Context, userID, projectID string) ([]model.Resource, error) {
	p, _, err := loadProject(ctx, s.store, projectID, userID, model.RoleMember)
	if err != nil {
		return nil, err
	}
	return s.store.ListResources(ctx, p.ID)
}

// Delete is allowed to the uploader and privileged members.
func (s *ResourceService) Delete(ctx context.Context, userID, resourceID string) error {
	res, err := s.store.GetResource(ctx, strings.TrimSpace(resourceID))
	if err != nil {
		return err
	}
	_, d, err := loadProject(ctx, s.store, res.ProjectID, userID, model.RoleMember)
	if err != nil {
		return err
	}
	if !authz.IsAuthorOrPrivileged(d, res.UploadedBy, userID) {
		return apperror.Forbidden("Forbidden")
	}
	if err := s.store.DeleteResource(ctx, res.ID); err != nil {
		return err
	}
	if res.StorageKey != "" {
		if err := s.files.Remove(ctx, res.StorageKey); err != nil {
			s.logger.Warn("uploaded file not removed", slog.String("key", res.StorageKey), slog.String("error", err.Error()))
		}
	}
	return nil
}
