// file: internal/resolver/books.go
// version: 1.0.0
// guid: c9da6c04-c26c-4e49-8aa8-6e03651a8f6a

package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/metadata"
	"github.com/jdfalk/bookmeta/internal/metrics"
	"github.com/jdfalk/bookmeta/internal/models"
)

// VolumeSource resolves books from a catalog volume id or an ISBN.
type VolumeSource interface {
	HasKey() bool
	GetVolume(ctx context.Context, volumeID string) (*models.Record, error)
	LookupISBN(ctx context.Context, isbn string) (*models.Record, error)
}

// PageSource resolves books from the scraped catalog site.
type PageSource interface {
	FetchByID(ctx context.Context, apiID string) (*models.Record, error)
	FetchByISBN(ctx context.Context, isbn string) (*models.Record, error)
}

// Indexer receives resolved books for local search.
type Indexer interface {
	Add(rec *models.Record) error
}

// BookRequest identifies a book by any of its identifiers.
type BookRequest struct {
	APIID          string `json:"api_id"`
	ISBN           string `json:"isbn"`
	GoogleVolumeID string `json:"google_volume_id"`
}

// Identifier renders the request for logs and resolution errors.
func (r BookRequest) Identifier() string {
	var parts []string
	if r.APIID != "" {
		parts = append(parts, "api_id "+r.APIID)
	}
	if r.ISBN != "" {
		parts = append(parts, "isbn "+r.ISBN)
	}
	if r.GoogleVolumeID != "" {
		parts = append(parts, "google_volume_id "+r.GoogleVolumeID)
	}
	return strings.Join(parts, ", ")
}

// BookService resolves and searches books.
type BookService struct {
	Store      database.Store
	Volumes    VolumeSource
	ISBNs      metadata.ISBNLookup
	Pages      PageSource
	Searchers  []metadata.BookSearcher
	Index      Indexer
	Timeout    time.Duration
	Background *Background
}

// Resolve returns the book identified by req, racing the local cache against
// every applicable external source.
func (s *BookService) Resolve(ctx context.Context, req BookRequest) (*models.Record, error) {
	req.APIID = strings.TrimSpace(req.APIID)
	req.GoogleVolumeID = strings.TrimSpace(req.GoogleVolumeID)
	req.ISBN = strings.TrimSpace(req.ISBN)
	if req.APIID == "" && req.ISBN == "" && req.GoogleVolumeID == "" {
		return nil, apperr.Validation("one of api_id, isbn or google_volume_id is required")
	}
	if req.ISBN != "" {
		isbn, ok := metadata.NormalizeISBN(req.ISBN)
		if !ok {
			return nil, apperr.Validation("isbn %q is not a valid ISBN-10 or ISBN-13", req.ISBN)
		}
		req.ISBN = isbn
	}
	hasVolumeKey := s.Volumes != nil && s.Volumes.HasKey()
	if req.GoogleVolumeID != "" && req.APIID == "" && req.ISBN == "" && !hasVolumeKey {
		return nil, apperr.ConfigUnavailable("google_volume_id lookups require a Google Books API key")
	}

	strategies := s.bookStrategies(req, hasVolumeKey)
	out, err := Race(ctx, s.Background, "book_resolve", req.Identifier(), s.Timeout, s.writeBack, strategies...)
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (s *BookService) bookStrategies(req BookRequest, hasVolumeKey bool) []Strategy[*models.Record] {
	var strategies []Strategy[*models.Record]
	if s.Store != nil {
		key := database.BookKey{APIID: req.APIID, GoogleVolumeID: req.GoogleVolumeID}
		switch len(req.ISBN) {
		case 13:
			key.ISBN13 = req.ISBN
		case 10:
			key.ISBN10 = req.ISBN
		}
		strategies = append(strategies, Strategy[*models.Record]{
			Name:   "cache",
			Cached: true,
			Run: func(ctx context.Context) (*models.Record, error) {
				rec, err := s.Store.GetBook(ctx, key)
				if err != nil {
					metrics.IncCacheLookup("book", "miss")
					if errors.Is(err, database.ErrNotFound) {
						return nil, apperr.NotFound("no cached book for %s", key)
					}
					return nil, err
				}
				metrics.IncCacheLookup("book", "hit")
				return rec, nil
			},
		})
	}
	if s.Volumes != nil {
		switch {
		case req.GoogleVolumeID != "" && hasVolumeKey:
			strategies = append(strategies, Strategy[*models.Record]{
				Name: "google_books",
				Run: func(ctx context.Context) (*models.Record, error) {
					return s.Volumes.GetVolume(ctx, req.GoogleVolumeID)
				},
			})
		case req.ISBN != "":
			strategies = append(strategies, Strategy[*models.Record]{
				Name: "google_books",
				Run: func(ctx context.Context) (*models.Record, error) {
					return s.Volumes.LookupISBN(ctx, req.ISBN)
				},
			})
		}
	}
	if s.ISBNs != nil && req.ISBN != "" {
		strategies = append(strategies, Strategy[*models.Record]{
			Name: "open_library",
			Run: func(ctx context.Context) (*models.Record, error) {
				return s.ISBNs.LookupISBN(ctx, req.ISBN)
			},
		})
	}
	if s.Pages != nil && (req.APIID != "" || req.ISBN != "") {
		strategies = append(strategies, Strategy[*models.Record]{
			Name: "bookpage",
			Run: func(ctx context.Context) (*models.Record, error) {
				if req.APIID != "" {
					return s.Pages.FetchByID(ctx, req.APIID)
				}
				return s.Pages.FetchByISBN(ctx, req.ISBN)
			},
		})
	}
	for i := range strategies {
		if !strategies[i].Cached {
			strategies[i].Run = withIdentifiers(req, strategies[i].Run)
		}
	}
	return strategies
}

func withIdentifiers(req BookRequest, run func(context.Context) (*models.Record, error)) func(context.Context) (*models.Record, error) {
	return func(ctx context.Context) (*models.Record, error) {
		rec, err := run(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, apperr.NotFound("no record for %s", req.Identifier())
		}
		fillRequestIdentifiers(rec, req)
		return rec, nil
	}
}

// writeBack stores a freshly resolved book and makes it searchable locally.
func (s *BookService) writeBack(ctx context.Context, rec *models.Record) error {
	if s.Store == nil {
		return nil
	}
	saved, err := s.Store.UpsertBook(ctx, rec)
	if err != nil {
		return err
	}
	if s.Index != nil {
		return s.Index.Add(saved)
	}
	return nil
}

// fillRequestIdentifiers records the identifiers the caller used so later
// lookups by the same key hit the cache.
func fillRequestIdentifiers(rec *models.Record, req BookRequest) {
	if rec == nil {
		return
	}
	if rec.APIID == nil && req.APIID != "" {
		rec.APIID = models.String(req.APIID)
	}
	if rec.GoogleVolumeID == nil && req.GoogleVolumeID != "" {
		rec.GoogleVolumeID = models.String(req.GoogleVolumeID)
	}
	if len(req.ISBN) == 13 && rec.ISBN13 == nil {
		rec.ISBN13 = models.String(req.ISBN)
	}
	if len(req.ISBN) == 10 && rec.ISBN10 == nil {
		rec.ISBN10 = models.String(req.ISBN)
	}
}

// Search runs every configured searcher and returns the deduplicated union.
func (s *BookService) Search(ctx context.Context, query string) ([]models.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	strategies := make([]SearchStrategy, 0, len(s.Searchers))
	for _, searcher := range s.Searchers {
		strategies = append(strategies, SearchStrategy{
			Name: searcher.Name(),
			Run: func(ctx context.Context) ([]models.Record, error) {
				return searcher.SearchBooks(ctx, query)
			},
		})
	}
	return SearchAll(ctx, "book_search", s.Timeout, strategies...), nil
}
