// file: internal/models/record.go
// version: 1.1.0
// guid: 80acc94d-4737-41d4-be21-aa0ea9dc9ea7

package models

import "time"

// Format values used by records and deadline submissions.
const (
	FormatPhysical = "physical"
	FormatEbook    = "ebook"
	FormatAudio    = "audio"
)

// Series describes a record's position within a series.
type Series struct {
	Name     string   `json:"name"`
	Position *float64 `json:"position"`
}

// Record is a partially known book or audiobook projection.
//
// A nil pointer or nil slice means the field is unknown. A non-nil empty value
// means the source positively reported it as empty.
type Record struct {
	ID             *string `json:"id"`
	APIID          *string `json:"api_id"`
	GoogleVolumeID *string `json:"google_volume_id"`
	AudiobookID    *string `json:"audiobook_id"`

	Title       *string  `json:"title"`
	Authors     []string `json:"authors"`
	Narrators   []string `json:"narrators"`
	CoverURL    *string  `json:"cover_url"`
	Description *string  `json:"description"`
	Format      *string  `json:"format"`
	PageCount   *int     `json:"page_count"`
	DurationMS  *int64   `json:"duration_ms"`
	Publisher   *string  `json:"publisher"`
	ReleaseDate *string  `json:"release_date"`
	ISBN10      *string  `json:"isbn10"`
	ISBN13      *string  `json:"isbn13"`
	Rating      *float64 `json:"rating"`
	Genres      []string `json:"genres"`
	Series      *Series  `json:"series"`

	Source    *string    `json:"source"`
	SourceURL *string    `json:"source_url"`
	FetchedAt *time.Time `json:"fetched_at"`
}

// PrimaryAuthor returns the first listed author or "".
func (r *Record) PrimaryAuthor() string {
	if r == nil || len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// TitleOrEmpty returns the title or "" when unknown.
func (r *Record) TitleOrEmpty() string {
	if r == nil || r.Title == nil {
		return ""
	}
	return *r.Title
}

// CacheEntry is an audiobook_cache row.
type CacheEntry struct {
	AudiobookID string    `json:"audiobook_id"`
	Data        Record    `json:"data"`
	ExpiresAt   time.Time `json:"expires_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Usable reports whether the entry may still be served at now. An entry
// expiring within buffer of now is not usable.
func (e *CacheEntry) Usable(now time.Time, buffer time.Duration) bool {
	return e != nil && now.Add(buffer).Before(e.ExpiresAt)
}

// Credential is the single cached bearer token for an upstream issuer.
type Credential struct {
	Slot        string        `json:"slot"`
	AccessToken string        `json:"access_token"`
	Lifetime    time.Duration `json:"lifetime"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Deadline is a user submitted reading or listening deadline.
// TotalQuantity is pages for physical/ebook and minutes for audio.
type Deadline struct {
	ID            string    `json:"id"`
	EntityID      string    `json:"entity_id"`
	UserID        string    `json:"user_id"`
	Format        string    `json:"format"`
	TotalQuantity int       `json:"total_quantity"`
	CreatedAt     time.Time `json:"created_at"`
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// Int64 returns a pointer to i.
func Int64(i int64) *int64 { return &i }

// Float64 returns a pointer to f.
func Float64(f float64) *float64 { return &f }

// StringOrNil returns nil for blank strings.
func StringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
