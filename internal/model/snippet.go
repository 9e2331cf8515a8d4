package model

import "time"

// Snippet is a piece of code shared inside a project. Snippets written in a
// language the sandbox supports can be executed.
type Snippet struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project"`
	CreatedBy   string    `json:"createdBy"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Code        string    `json:"code"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Learning is a personal learning tracker entry. Even inside a shared project
// only its creator can see it.
type Learning struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project"`
	CreatedBy string    `json:"createdBy"`
	Topic     string    `json:"topic"`
	Notes     string    `json:"notes"`
	Status    string    `json:"status"`
	Resources []string  `json:"resources"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Solution is an entry in a project's solution database.
type Solution struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project"`
	CreatedBy       string    `json:"createdBy"`
	Title           string    `json:"title"`
	Problem         string    `json:"problem"`
	Approach        string    `json:"approach"`
	Code            string    `json:"code"`
	Language        string    `json:"language"`
	Difficulty      string    `json:"difficulty"`
	TimeComplexity  string    `json:"timeComplexity"`
	SpaceComplexity string    `json:"spaceComplexity"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
