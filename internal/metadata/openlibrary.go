// file: internal/metadata/openlibrary.go
// version: 2.0.0
// guid: 1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d

package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/models"
)

// DefaultOpenLibraryURL is the Open Library site root.
const DefaultOpenLibraryURL = "https://openlibrary.org"

const (
	openLibraryCoverURL    = "https://covers.openlibrary.org/b/id/%d-L.jpg"
	openLibrarySearchLimit = 20
)

// OpenLibraryClient handles metadata fetching from the Open Library API.
type OpenLibraryClient struct {
	httpSource
}

// NewOpenLibraryClient creates a new Open Library API client.
func NewOpenLibraryClient(opts ...Option) *OpenLibraryClient {
	return &OpenLibraryClient{httpSource: newHTTPSource("Open Library", DefaultOpenLibraryURL, opts)}
}

// NewOpenLibraryClientWithBaseURL creates a client with a custom base URL.
func NewOpenLibraryClientWithBaseURL(baseURL string) *OpenLibraryClient {
	return NewOpenLibraryClient(WithBaseURL(baseURL))
}

// Name returns the display name for this metadata source.
func (c *OpenLibraryClient) Name() string {
	return "Open Library"
}

type olNamed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// olBook is one entry of the /api/books jscmd=data response.
type olBook struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle"`
	Authors       []olNamed `json:"authors"`
	Publishers    []olNamed `json:"publishers"`
	PublishDate   string    `json:"publish_date"`
	NumberOfPages int       `json:"number_of_pages"`
	Subjects      []olNamed `json:"subjects"`
	Identifiers   struct {
		ISBN10 []string `json:"isbn_10"`
		ISBN13 []string `json:"isbn_13"`
	} `json:"identifiers"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Notes any `json:"notes"`
}

// olSearchDoc is one document of the search.json response.
type olSearchDoc struct {
	Key               string   `json:"key"`
	Title             string   `json:"title"`
	AuthorName        []string `json:"author_name"`
	FirstPublishYear  int      `json:"first_publish_year"`
	ISBN              []string `json:"isbn"`
	Publisher         []string `json:"publisher"`
	CoverI            int      `json:"cover_i"`
	NumberOfPages     int      `json:"number_of_pages_median"`
	RatingsAverage    float64  `json:"ratings_average"`
	Subject           []string `json:"subject"`
	EditionCount      int      `json:"edition_count"`
}

type olSearchResponse struct {
	NumFound int           `json:"numFound"`
	Start    int           `json:"start"`
	Docs     []olSearchDoc `json:"docs"`
}

// LookupISBN fetches the edition for isbn through the books API.
func (c *OpenLibraryClient) LookupISBN(ctx context.Context, isbn string) (*models.Record, error) {
	bibkey := "ISBN:" + isbn
	q := url.Values{}
	q.Set("bibkeys", bibkey)
	q.Set("format", "json")
	q.Set("jscmd", "data")

	var resp map[string]olBook
	if err := c.getJSON(ctx, c.baseURL+"/api/books?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	book, ok := resp[bibkey]
	if !ok || book.Title == "" {
		return nil, apperr.NotFound("Open Library has no edition for isbn %s", isbn)
	}
	rec := book.toRecord()
	setISBN(rec, isbn)
	return rec, nil
}

// SearchBooks runs a free-text search.
func (c *OpenLibraryClient) SearchBooks(ctx context.Context, query string) ([]models.Record, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", fmt.Sprint(openLibrarySearchLimit))

	var resp olSearchResponse
	if err := c.getJSON(ctx, c.baseURL+"/search.json?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	results := make([]models.Record, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		if doc.Title == "" {
			continue
		}
		results = append(results, *c.docToRecord(&doc))
	}
	return results, nil
}

func (b *olBook) toRecord() *models.Record {
	title := strings.TrimSpace(b.Title)
	if b.Subtitle != "" {
		title += ": " + strings.TrimSpace(b.Subtitle)
	}
	rec := &models.Record{
		Title:       models.String(title),
		ReleaseDate: models.StringOrNil(b.PublishDate),
	}
	for _, a := range b.Authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			rec.Authors = append(rec.Authors, n)
		}
	}
	if len(b.Publishers) > 0 {
		rec.Publisher = models.StringOrNil(b.Publishers[0].Name)
	}
	for _, s := range b.Subjects {
		if n := strings.TrimSpace(s.Name); n != "" {
			rec.Genres = append(rec.Genres, n)
		}
	}
	if b.NumberOfPages > 0 {
		rec.PageCount = models.Int(b.NumberOfPages)
	}
	for _, u := range []string{b.Cover.Large, b.Cover.Medium, b.Cover.Small} {
		if u != "" {
			rec.CoverURL = models.String(secureURL(u))
			break
		}
	}
	if notes, ok := b.Notes.(string); ok {
		rec.Description = models.StringOrNil(notes)
	}
	for _, isbn := range b.Identifiers.ISBN13 {
		setISBN(rec, isbn)
	}
	for _, isbn := range b.Identifiers.ISBN10 {
		setISBN(rec, isbn)
	}
	return stamp(rec, SourceOpenLibrary, b.URL)
}

func (c *OpenLibraryClient) docToRecord(doc *olSearchDoc) *models.Record {
	rec := &models.Record{
		Title:   models.String(strings.TrimSpace(doc.Title)),
		Authors: nonEmpty(doc.AuthorName),
	}
	if doc.FirstPublishYear > 0 {
		rec.ReleaseDate = models.String(fmt.Sprint(doc.FirstPublishYear))
	}
	if len(doc.Publisher) > 0 {
		rec.Publisher = models.StringOrNil(doc.Publisher[0])
	}
	if doc.CoverI > 0 {
		rec.CoverURL = models.String(fmt.Sprintf(openLibraryCoverURL, doc.CoverI))
	}
	if doc.NumberOfPages > 0 {
		rec.PageCount = models.Int(doc.NumberOfPages)
	}
	if doc.RatingsAverage > 0 {
		rec.Rating = models.Float64(doc.RatingsAverage)
	}
	if len(doc.Subject) > 0 {
		n := len(doc.Subject)
		if n > 5 {
			n = 5
		}
		rec.Genres = nonEmpty(doc.Subject[:n])
	}
	for _, isbn := range doc.ISBN {
		setISBN(rec, isbn)
		if rec.ISBN10 != nil && rec.ISBN13 != nil {
			break
		}
	}
	sourceURL := ""
	if doc.Key != "" {
		sourceURL = c.baseURL + doc.Key
	}
	return stamp(rec, SourceOpenLibrary, sourceURL)
}
