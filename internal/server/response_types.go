// file: internal/server/response_types.go
// version: 2.0.0
// guid: 7f8a9b0c-1d2e-3f4a-5b6c-7d8e9f0a1b2c

package server

import "github.com/jdfalk/bookmeta/internal/models"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string   `json:"error"`
	Logs  []string `json:"logs"`
}

// BookSearchRequest is the body of POST /books/search.
type BookSearchRequest struct {
	Query string `json:"query"`
}

// BookSearchResponse lists deduplicated search results.
type BookSearchResponse struct {
	BookList []models.Record `json:"bookList"`
	Logs     []string        `json:"logs"`
}

// AudiobookSearchRequest is the body of POST /audiobooks/search.
type AudiobookSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// AudibleRequest is the body of POST /audiobooks/audible.
type AudibleRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// AudiobookResponse wraps audiobook results.
type AudiobookResponse struct {
	Success bool   `json:"success"`
	Source  string `json:"source,omitempty"`
	Data    any    `json:"data"`
}

// DeadlineResponse echoes a stored deadline submission.
type DeadlineResponse struct {
	Success bool             `json:"success"`
	Data    *models.Deadline `json:"data"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status       string `json:"status"`
	Timestamp    int64  `json:"timestamp"`
	Version      string `json:"version"`
	DatabaseType string `json:"database_type,omitempty"`
	IndexedBooks *int   `json:"indexed_books,omitempty"`
}
