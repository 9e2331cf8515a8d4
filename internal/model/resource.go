package model

import "time"

// ResourceProvider says where a resource's bytes live.
type ResourceProvider string

const (
	ProviderLocal    ResourceProvider = "local"
	ProviderExternal ResourceProvider = "external"
)

// Resource is either an uploaded file or an external link shared in a project.
type Resource struct {
	ID         string           `json:"id"`
	ProjectID  string           `json:"project"`
	UploadedBy string           `json:"uploadedBy"`
	Title      string           `json:"title"`
	Provider   ResourceProvider `json:"provider"`
	URL        string           `json:"url"`
	StorageKey string           `json:"-"`
	MimeType   string           `json:"mime,omitempty"`
	Size       int64            `json:"size,omitempty"`
	FileName   string           `json:"name,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}
