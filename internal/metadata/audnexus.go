// file: internal/metadata/audnexus.go
// version: 3.0.0
// guid: c3d4e5f6-a7b8-9c0d-1e2f-a3b4c5d6e7f8

package metadata

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/models"
)

// DefaultAudnexusURL is the Audnexus API root.
const DefaultAudnexusURL = "https://api.audnex.us"

// AudnexusClient fetches audiobook metadata from the Audnexus community API,
// which provides Audible-sourced data including narrator information.
// The API requires an ASIN for book lookups; there is no title search endpoint.
type AudnexusClient struct {
	httpSource
}

// NewAudnexusClient creates a new Audnexus API client.
func NewAudnexusClient(opts ...Option) *AudnexusClient {
	return &AudnexusClient{httpSource: newHTTPSource("Audnexus", DefaultAudnexusURL, opts)}
}

// NewAudnexusClientWithBaseURL creates a client with a custom base URL (for testing).
func NewAudnexusClientWithBaseURL(baseURL string) *AudnexusClient {
	return NewAudnexusClient(WithBaseURL(baseURL))
}

// Name returns the display name for this metadata source.
func (c *AudnexusClient) Name() string {
	return "Audnexus (Audible)"
}

// Audnexus API response types
type audnexusPerson struct {
	ASIN string `json:"asin"`
	Name string `json:"name"`
}

type audnexusSeries struct {
	ASIN     string `json:"asin"`
	Name     string `json:"name"`
	Position string `json:"position"`
}

type audnexusGenre struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type audnexusBook struct {
	ASIN             string           `json:"asin"`
	Title            string           `json:"title"`
	Subtitle         string           `json:"subtitle"`
	Authors          []audnexusPerson `json:"authors"`
	Narrators        []audnexusPerson `json:"narrators"`
	PublisherName    string           `json:"publisherName"`
	ReleaseDate      string           `json:"releaseDate"`
	Image            string           `json:"image"`
	Description      string           `json:"description"`
	Summary          string           `json:"summary"`
	ISBN             string           `json:"isbn"`
	RuntimeLengthMin int              `json:"runtimeLengthMin"`
	Rating           string           `json:"rating"`
	Genres           []audnexusGenre  `json:"genres"`
	SeriesPrimary    *audnexusSeries  `json:"seriesPrimary"`
}

// LookupByASIN fetches a book directly by its Audible ASIN.
func (c *AudnexusClient) LookupByASIN(ctx context.Context, asin string) (*models.Record, error) {
	var book audnexusBook
	if err := c.getJSON(ctx, c.baseURL+"/books/"+url.PathEscape(asin), nil, &book); err != nil {
		return nil, err
	}
	if book.Title == "" {
		return nil, apperr.NotFound("Audnexus has no book for asin %s", asin)
	}
	return book.toRecord(), nil
}

// Extractor adapts an ASIN lookup to the field-fill merger.
func (c *AudnexusClient) Extractor(ctx context.Context) Extractor {
	return Extractor{Name: "audnexus", Extract: func(current *models.Record) (*models.Record, error) {
		if current.AudiobookID == nil || *current.AudiobookID == "" {
			return nil, nil
		}
		rec, err := c.LookupByASIN(ctx, *current.AudiobookID)
		if err != nil {
			return nil, err
		}
		// Identity and provenance stay with the record being enriched.
		rec.Source, rec.SourceURL, rec.FetchedAt = nil, nil, nil
		return rec, nil
	}}
}

func (book *audnexusBook) toRecord() *models.Record {
	rec := &models.Record{
		AudiobookID: models.StringOrNil(book.ASIN),
		Title:       models.String(strings.TrimSpace(book.Title)),
		Publisher:   models.StringOrNil(book.PublisherName),
		ReleaseDate: models.StringOrNil(book.ReleaseDate),
		CoverURL:    models.StringOrNil(book.Image),
		Format:      models.String(models.FormatAudio),
	}

	// Use summary or description
	if book.Summary != "" {
		rec.Description = models.String(stripHTML(book.Summary))
	} else if book.Description != "" {
		rec.Description = models.String(stripHTML(book.Description))
	}

	for _, a := range book.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, a.Name)
		}
	}
	for _, n := range book.Narrators {
		if n.Name != "" {
			rec.Narrators = append(rec.Narrators, n.Name)
		}
	}
	for _, g := range book.Genres {
		if g.Type == "genre" && g.Name != "" {
			rec.Genres = append(rec.Genres, g.Name)
		}
	}
	if book.RuntimeLengthMin > 0 {
		rec.DurationMS = models.Int64(int64(book.RuntimeLengthMin) * 60 * 1000)
	}
	if r, err := strconv.ParseFloat(book.Rating, 64); err == nil && r > 0 {
		rec.Rating = models.Float64(r)
	}
	setISBN(rec, book.ISBN)

	if book.SeriesPrimary != nil && book.SeriesPrimary.Name != "" {
		rec.Series = &models.Series{Name: book.SeriesPrimary.Name}
		if pos, err := strconv.ParseFloat(book.SeriesPrimary.Position, 64); err == nil {
			rec.Series.Position = models.Float64(pos)
		}
	}
	return stamp(rec, SourceAudnexus, "")
}
