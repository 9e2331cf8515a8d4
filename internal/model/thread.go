package model

import "time"

// DeletedMessagePlaceholder replaces the text of tombstoned messages on read.
const DeletedMessagePlaceholder = "This message was deleted"

// Thread is a discussion topic inside a project.
type Thread struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project"`
	Title          string    `json:"title"`
	Tags           []string  `json:"tags"`
	Pinned         bool      `json:"pinned"`
	Locked         bool      `json:"locked"`
	CreatedBy      string    `json:"createdBy"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Message is a post in a Thread. Deleted messages are tombstoned, not removed.
type Message struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread"`
	ProjectID string     `json:"project"`
	User      string     `json:"user"`
	Text      string     `json:"text"`
	Deleted   bool       `json:"deleted"`
	DeletedBy string     `json:"deletedBy,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Redacted returns a copy of m safe to show: tombstones carry the placeholder text.
func (m Message) Redacted() Message {
	if m.Deleted {
		m.Text = DeletedMessagePlaceholder
	}
	return m
}
