// file: internal/metadata/googlebooks.go
// version: 2.0.0
// guid: b2c3d4e5-f6a7-8b9c-0d1e-f2a3b4c5d6e7

package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/models"
)

// DefaultGoogleBooksURL is the Google Books Volume API root.
const DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1"

// googleSearchLimit is the number of volumes requested per search.
const googleSearchLimit = 20

// GoogleBooksClient fetches metadata from the Google Books Volume API.
// Searches and ISBN lookups work without a key; volume lookups require one.
type GoogleBooksClient struct {
	httpSource
	apiKey string
}

// NewGoogleBooksClient creates a new Google Books API client.
func NewGoogleBooksClient(apiKey string, opts ...Option) *GoogleBooksClient {
	return &GoogleBooksClient{
		httpSource: newHTTPSource("Google Books", DefaultGoogleBooksURL, opts),
		apiKey:     apiKey,
	}
}

// NewGoogleBooksClientWithBaseURL creates a client with a custom base URL (for testing).
func NewGoogleBooksClientWithBaseURL(baseURL, apiKey string) *GoogleBooksClient {
	return NewGoogleBooksClient(apiKey, WithBaseURL(baseURL))
}

// Name returns the display name for this metadata source.
func (c *GoogleBooksClient) Name() string {
	return "Google Books"
}

// HasKey reports whether an API key is configured.
func (c *GoogleBooksClient) HasKey() bool {
	return c != nil && c.apiKey != ""
}

type googleBooksResponse struct {
	TotalItems int              `json:"totalItems"`
	Items      []googleBooksVol `json:"items"`
}

type googleBooksVol struct {
	ID         string                `json:"id"`
	SelfLink   string                `json:"selfLink"`
	VolumeInfo googleBooksVolumeInfo `json:"volumeInfo"`
}

type googleBooksVolumeInfo struct {
	Title               string                  `json:"title"`
	Subtitle            string                  `json:"subtitle"`
	Authors             []string                `json:"authors"`
	Publisher           string                  `json:"publisher"`
	PublishedDate       string                  `json:"publishedDate"`
	Description         string                  `json:"description"`
	IndustryIdentifiers []googleBooksIndustryID `json:"industryIdentifiers"`
	PageCount           int                     `json:"pageCount"`
	PrintType           string                  `json:"printType"`
	Categories          []string                `json:"categories"`
	AverageRating       float64                 `json:"averageRating"`
	ImageLinks          *googleBooksImageLinks  `json:"imageLinks"`
	Language            string                  `json:"language"`
	InfoLink            string                  `json:"infoLink"`
}

type googleBooksIndustryID struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type googleBooksImageLinks struct {
	ExtraLarge     string `json:"extraLarge"`
	Large          string `json:"large"`
	Medium         string `json:"medium"`
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
}

func (l *googleBooksImageLinks) best() string {
	if l == nil {
		return ""
	}
	for _, u := range []string{l.ExtraLarge, l.Large, l.Medium, l.Thumbnail, l.SmallThumbnail} {
		if u != "" {
			return secureURL(u)
		}
	}
	return ""
}

func (c *GoogleBooksClient) endpoint(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// GetVolume fetches a single volume by its Google Books id.
func (c *GoogleBooksClient) GetVolume(ctx context.Context, volumeID string) (*models.Record, error) {
	if !c.HasKey() {
		return nil, apperr.ConfigUnavailable("Google Books API key is not configured")
	}
	var vol googleBooksVol
	if err := c.getJSON(ctx, c.endpoint("/volumes/"+url.PathEscape(volumeID), nil), nil, &vol); err != nil {
		return nil, err
	}
	if vol.VolumeInfo.Title == "" {
		return nil, apperr.NotFound("Google Books volume %s has no title", volumeID)
	}
	return vol.toRecord(), nil
}

// LookupISBN returns the first volume matching isbn.
func (c *GoogleBooksClient) LookupISBN(ctx context.Context, isbn string) (*models.Record, error) {
	recs, err := c.search(ctx, "isbn:"+isbn, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.NotFound("Google Books has no volume for isbn %s", isbn)
	}
	return &recs[0], nil
}

// SearchBooks runs a free-text volume search.
func (c *GoogleBooksClient) SearchBooks(ctx context.Context, query string) ([]models.Record, error) {
	return c.search(ctx, query, googleSearchLimit)
}

func (c *GoogleBooksClient) search(ctx context.Context, query string, limit int) ([]models.Record, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", fmt.Sprint(limit))
	var resp googleBooksResponse
	if err := c.getJSON(ctx, c.endpoint("/volumes", q), nil, &resp); err != nil {
		return nil, err
	}
	results := make([]models.Record, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.VolumeInfo.Title == "" {
			continue
		}
		results = append(results, *item.toRecord())
	}
	return results, nil
}

func (v *googleBooksVol) toRecord() *models.Record {
	vi := v.VolumeInfo
	rec := &models.Record{
		GoogleVolumeID: models.StringOrNil(v.ID),
		Title:          models.String(strings.TrimSpace(vi.Title)),
		Authors:        nonEmpty(vi.Authors),
		Description:    models.StringOrNil(vi.Description),
		Publisher:      models.StringOrNil(vi.Publisher),
		ReleaseDate:    models.StringOrNil(vi.PublishedDate),
		CoverURL:       models.StringOrNil(vi.ImageLinks.best()),
		Genres:         nonEmpty(vi.Categories),
	}
	if vi.PageCount > 0 {
		rec.PageCount = models.Int(vi.PageCount)
	}
	if vi.AverageRating > 0 {
		rec.Rating = models.Float64(vi.AverageRating)
	}
	if strings.EqualFold(vi.PrintType, "BOOK") {
		rec.Format = models.String(models.FormatPhysical)
	}
	for _, id := range vi.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13", "ISBN_10":
			setISBN(rec, id.Identifier)
		}
	}
	return stamp(rec, SourceGoogleBooks, vi.InfoLink)
}
