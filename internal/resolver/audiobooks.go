// file: internal/resolver/audiobooks.go
// version: 1.1.0
// guid: 056cff63-d156-44b5-ba9d-3f4b651f4c59

package resolver

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/matcher"
	"github.com/jdfalk/bookmeta/internal/metadata"
	"github.com/jdfalk/bookmeta/internal/metrics"
	"github.com/jdfalk/bookmeta/internal/models"
)

// Audiobook lookup defaults.
const (
	DefaultAudiobookCacheTTL = 7 * 24 * time.Hour
	DefaultCacheSafetyBuffer = 60 * time.Second
	DefaultSearchLimit       = 20
	MaxSearchLimit           = 50
	MinQueryLength           = 2
	candidateLimit           = 5
)

// Result sources for audiobook lookups.
const (
	SourceSpotify   = "spotify"
	SourceCommunity = "community"
	SourceAudible   = "audible"
)

// AudiobookSource searches and fetches audiobooks from a streaming catalog.
type AudiobookSource interface {
	Configured() bool
	SearchAudiobooks(ctx context.Context, query string, limit int) ([]models.Record, error)
	Audiobook(ctx context.Context, id string) (*models.Record, error)
}

// AudibleSource lists storefront search candidates.
type AudibleSource interface {
	SearchAudible(ctx context.Context, title, author string) ([]models.Record, error)
}

// Enricher contributes an extractor that fills gaps in a matched record.
type Enricher interface {
	Extractor(ctx context.Context) metadata.Extractor
}

// AudiobookRequest selects an audiobook by external id, by stored book, or
// by free-text title and author.
type AudiobookRequest struct {
	AudiobookID string `json:"audiobookId"`
	BookID      string `json:"bookId"`
	Title       string `json:"title"`
	Author      string `json:"author"`
}

// AudiobookResult is a resolved audiobook and where it came from.
type AudiobookResult struct {
	Source string `json:"source"`
	Data   any    `json:"data"`
}

// CommunityAudiobook is a listening duration agreed on by submissions.
type CommunityAudiobook struct {
	BookID          string `json:"book_id"`
	DurationMinutes int    `json:"duration_minutes"`
	DurationMS      int64  `json:"duration_ms"`
	Support         int    `json:"support"`
}

// AudibleMatch is a validated Audible candidate.
type AudibleMatch struct {
	*models.Record
	DurationMinutes *int `json:"duration_minutes"`
}

// AudiobookService resolves audiobooks.
type AudiobookService struct {
	Store      database.Store
	Spotify    AudiobookSource
	Audible    AudibleSource
	Enricher   Enricher
	CacheTTL   time.Duration
	Timeout    time.Duration
	Background *Background
	Now        func() time.Time

	// SafetyBuffer is how long before expires_at a cached entry stops being
	// served. Zero means DefaultCacheSafetyBuffer; negative disables it.
	SafetyBuffer time.Duration
}

func (s *AudiobookService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AudiobookService) safetyBuffer() time.Duration {
	switch {
	case s.SafetyBuffer == 0:
		return DefaultCacheSafetyBuffer
	case s.SafetyBuffer < 0:
		return 0
	}
	return s.SafetyBuffer
}

func (s *AudiobookService) spotifyConfigured() bool {
	return s.Spotify != nil && s.Spotify.Configured()
}

// Resolve finds an audiobook for req. An external id races the audiobook
// cache against the catalog. Otherwise the title, taken from the request or
// the stored book, is searched and each candidate must pass match validation
// before it is fetched. When that fails and a book id is known, community
// submissions may still supply a duration.
func (s *AudiobookService) Resolve(ctx context.Context, req AudiobookRequest) (*AudiobookResult, error) {
	req.AudiobookID = strings.TrimSpace(req.AudiobookID)
	req.BookID = strings.TrimSpace(req.BookID)
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if req.AudiobookID == "" && req.BookID == "" && req.Title == "" {
		return nil, apperr.Validation("one of audiobookId, bookId or title is required")
	}

	if req.AudiobookID != "" {
		rec, err := s.ByID(ctx, req.AudiobookID)
		if err != nil {
			return nil, err
		}
		return &AudiobookResult{Source: SourceSpotify, Data: rec}, nil
	}

	trail := logger.TrailFrom(ctx)
	title, author := req.Title, req.Author
	if req.BookID != "" && title == "" && s.Store != nil {
		book, err := s.Store.GetBook(ctx, database.BookKey{ID: req.BookID})
		switch {
		case err == nil:
			title = book.TitleOrEmpty()
			if author == "" {
				author = book.PrimaryAuthor()
			}
		case errors.Is(err, database.ErrNotFound):
			trail.Info("book not found in store", map[string]interface{}{"book_id": req.BookID})
		default:
			trail.Warn("book lookup failed", map[string]interface{}{"book_id": req.BookID, "error": err.Error()})
		}
	}

	switch {
	case !s.spotifyConfigured():
		trail.Info("audiobook catalog not configured, using community data")
	case title == "":
		trail.Info("no title available for catalog search")
	default:
		rec, err := s.matchCatalog(ctx, title, author)
		if err == nil {
			return &AudiobookResult{Source: SourceSpotify, Data: rec}, nil
		}
		trail.Warn("catalog match failed", map[string]interface{}{"title": title, "error": err.Error()})
	}

	if req.BookID != "" {
		fact, ok, err := s.CommunityDuration(ctx, req.BookID)
		if err != nil {
			trail.Warn("community lookup failed", map[string]interface{}{"book_id": req.BookID, "error": err.Error()})
		}
		if ok {
			return &AudiobookResult{Source: SourceCommunity, Data: &CommunityAudiobook{
				BookID:          req.BookID,
				DurationMinutes: fact.Value,
				DurationMS:      int64(fact.Value) * int64(time.Minute/time.Millisecond),
				Support:         fact.Support,
			}}, nil
		}
		trail.Info("no community consensus", map[string]interface{}{"book_id": req.BookID})
	}

	ident := req.Title
	if ident == "" {
		ident = "book " + req.BookID
	}
	return nil, apperr.NotFound("no audiobook found for %s", ident)
}

// ByID races the audiobook cache against the catalog for an external id and
// caches catalog results for CacheTTL. Without a configured catalog only the
// cache is consulted and a miss is a ConfigUnavailable error.
func (s *AudiobookService) ByID(ctx context.Context, id string) (*models.Record, error) {
	var strategies []Strategy[*models.Record]
	if s.Store != nil {
		strategies = append(strategies, Strategy[*models.Record]{
			Name:   "audiobook_cache",
			Cached: true,
			Run: func(ctx context.Context) (*models.Record, error) {
				entry, err := s.Store.GetAudiobookCache(ctx, id)
				if err != nil {
					metrics.IncCacheLookup("audiobook", "miss")
					if errors.Is(err, database.ErrNotFound) {
						return nil, apperr.NotFound("no cached audiobook %s", id)
					}
					return nil, err
				}
				if !entry.Usable(s.now(), s.safetyBuffer()) {
					metrics.IncCacheLookup("audiobook", "expired")
					return nil, apperr.NotFound("cached audiobook %s expired at %s", id, entry.ExpiresAt.Format(time.RFC3339))
				}
				metrics.IncCacheLookup("audiobook", "hit")
				rec := entry.Data
				return &rec, nil
			},
		})
	}
	if s.spotifyConfigured() {
		strategies = append(strategies, Strategy[*models.Record]{
			Name: "spotify",
			Run: func(ctx context.Context) (*models.Record, error) {
				return s.Spotify.Audiobook(ctx, id)
			},
		})
	}
	out, err := Race(ctx, s.Background, "audiobook_resolve", "audiobook "+id, s.Timeout, s.cacheWriter(id), strategies...)
	if err != nil {
		var rerr *apperr.ResolutionError
		if !s.spotifyConfigured() && errors.As(err, &rerr) {
			logger.TrailFrom(ctx).Warn("audiobook not cached and catalog not configured", map[string]interface{}{"audiobook_id": id})
			return nil, apperr.ConfigUnavailable("audiobook %s is not cached and the audiobook catalog is not configured", id)
		}
		return nil, err
	}
	return out.Value, nil
}

func (s *AudiobookService) cacheWriter(id string) func(context.Context, *models.Record) error {
	return func(ctx context.Context, rec *models.Record) error {
		if s.Store == nil || rec == nil {
			return nil
		}
		ttl := s.CacheTTL
		if ttl <= 0 {
			ttl = DefaultAudiobookCacheTTL
		}
		now := s.now()
		return s.Store.UpsertAudiobookCache(ctx, &models.CacheEntry{
			AudiobookID: id,
			Data:        *rec,
			ExpiresAt:   now.Add(ttl),
			UpdatedAt:   now,
		})
	}
}

// matchCatalog searches the catalog and fetches the first candidate that
// passes match validation.
func (s *AudiobookService) matchCatalog(ctx context.Context, title, author string) (*models.Record, error) {
	trail := logger.TrailFrom(ctx)
	query := title
	if author != "" {
		query += " " + author
	}
	candidates, err := s.Spotify.SearchAudiobooks(ctx, query, candidateLimit)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.AudiobookID == nil {
			continue
		}
		m := matcher.IsGoodMatch(title, c.TitleOrEmpty(), author, matcher.BestAuthorMatch(author, c.Authors))
		if !m.IsMatch {
			trail.Info("candidate rejected", map[string]interface{}{
				"candidate":    c.TitleOrEmpty(),
				"title_score":  m.TitleScore,
				"author_score": m.AuthorScore,
			})
			continue
		}
		return s.ByID(ctx, *c.AudiobookID)
	}
	return nil, apperr.NotFound("no catalog candidate matched %q", title)
}

// Search lists catalog audiobooks for query.
func (s *AudiobookService) Search(ctx context.Context, query string, limit int) ([]models.Record, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return nil, apperr.Validation("query must be at least %d characters", MinQueryLength)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	if !s.spotifyConfigured() {
		return nil, apperr.ConfigUnavailable("audiobook catalog credentials are not configured")
	}
	recs, err := s.Spotify.SearchAudiobooks(ctx, query, limit)
	if err != nil {
		metrics.IncStrategy("audiobook_search", "spotify", "failure")
		return nil, err
	}
	metrics.IncStrategy("audiobook_search", "spotify", "success")
	metrics.ObserveSearchResults("audiobook_search", len(recs))
	return recs, nil
}

// MatchAudible returns the first Audible search candidate that passes match
// validation, enriched by the configured Enricher.
func (s *AudiobookService) MatchAudible(ctx context.Context, title, author string) (*AudibleMatch, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if s.Audible == nil {
		return nil, apperr.ConfigUnavailable("Audible lookups are not configured")
	}
	trail := logger.TrailFrom(ctx)
	candidates, err := s.Audible.SearchAudible(ctx, title, author)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		c := &candidates[i]
		m := matcher.IsGoodMatch(title, c.TitleOrEmpty(), author, matcher.BestAuthorMatch(author, c.Authors))
		if !m.IsMatch {
			trail.Info("candidate rejected", map[string]interface{}{
				"candidate":    c.TitleOrEmpty(),
				"title_score":  m.TitleScore,
				"author_score": m.AuthorScore,
			})
			continue
		}
		if s.Enricher != nil {
			metadata.Merge(ctx, c, s.Enricher.Extractor(ctx))
		}
		match := &AudibleMatch{Record: c}
		if c.DurationMS != nil {
			mins := int(*c.DurationMS / int64(time.Minute/time.Millisecond))
			match.DurationMinutes = &mins
		}
		return match, nil
	}
	return nil, apperr.NotFound("no Audible candidate matched %q", title)
}

// CommunityDuration computes the agreed audio duration in minutes for a book.
func (s *AudiobookService) CommunityDuration(ctx context.Context, bookID string) (ConsensusFact, bool, error) {
	if s.Store == nil {
		return ConsensusFact{}, false, nil
	}
	deadlines, err := s.Store.ListDeadlines(ctx, bookID, models.FormatAudio)
	if err != nil {
		return ConsensusFact{}, false, err
	}
	fact, ok := Consensus(submissionValues(deadlines))
	return fact, ok, nil
}
