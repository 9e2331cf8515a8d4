// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Users sign up with email + password (PasswordHash is a bcrypt hash) or through
// GitHub, in which case GitHubID is set and PasswordHash may be empty. Users are
// never hard-deleted.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl"`
	GitHubID     int64     `json:"githubId,omitempty"`
	Analytics    Analytics `json:"analytics"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Analytics is the per-user counter bag. Counters are best-effort: they are bumped
// without transactions and may drift under retries.
type Analytics struct {
	ProjectsCreated   int `json:"projectsCreated"`
	TasksCompleted    int `json:"totalTasksCompleted"`
	Contributions     int `json:"contributions"`
	LifetimeSolutions int `json:"lifetimeSolutions"`
}

// AnalyticsField names one counter in Analytics. The value doubles as the column name.
type AnalyticsField string

const (
	StatProjectsCreated   AnalyticsField = "projects_created"
	StatTasksCompleted    AnalyticsField = "tasks_completed"
	StatContributions     AnalyticsField = "contributions"
	StatLifetimeSolutions AnalyticsField = "lifetime_solutions"
)

// Valid reports whether f is one of the known counters.
func (f AnalyticsField) Valid() bool {
	switch f {
	case StatProjectsCreated, StatTasksCompleted, StatContributions, StatLifetimeSolutions:
		return true
	}
	return false
}

// UserSummary is the public slice of a User embedded in other documents.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Summary returns the public profile of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
}
