// file: internal/metadata/bookpage.go
// version: 1.0.0
// guid: 89d59166-7fc2-437d-8be4-8314f67d29eb

package metadata

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/models"
	"github.com/jdfalk/bookmeta/internal/scrape"
)

// DefaultBookPageURL is the root of the scraped book catalog site.
const DefaultBookPageURL = "https://www.goodreads.com"

// BookPageScraper reads book pages of a community catalog site and merges the
// embedded application state, the JSON-LD block and the visible markup.
type BookPageScraper struct {
	httpSource
	catalog *scrape.Catalog
}

// NewBookPageScraper creates a scraper using the selector catalog.
func NewBookPageScraper(catalog *scrape.Catalog, opts ...Option) *BookPageScraper {
	if catalog == nil {
		catalog = scrape.DefaultCatalog()
	}
	return &BookPageScraper{
		httpSource: newHTTPSource("Book page", DefaultBookPageURL, opts),
		catalog:    catalog,
	}
}

// NewBookPageScraperWithBaseURL creates a scraper with a custom base URL (for testing).
func NewBookPageScraperWithBaseURL(baseURL string) *BookPageScraper {
	return NewBookPageScraper(nil, WithBaseURL(baseURL))
}

// Name returns the display name for this metadata source.
func (s *BookPageScraper) Name() string {
	return "Book page"
}

// FetchByID loads the book page for a site id.
func (s *BookPageScraper) FetchByID(ctx context.Context, apiID string) (*models.Record, error) {
	rec, err := s.fetch(ctx, s.baseURL+"/book/show/"+url.PathEscape(apiID))
	if err != nil {
		return nil, err
	}
	if rec.APIID == nil {
		rec.APIID = models.String(apiID)
	}
	return rec, nil
}

// FetchByISBN loads the book page the site associates with isbn.
func (s *BookPageScraper) FetchByISBN(ctx context.Context, isbn string) (*models.Record, error) {
	rec, err := s.fetch(ctx, s.baseURL+"/book/isbn/"+url.PathEscape(isbn))
	if err != nil {
		return nil, err
	}
	setISBN(rec, isbn)
	return rec, nil
}

func (s *BookPageScraper) fetch(ctx context.Context, pageURL string) (*models.Record, error) {
	body, err := s.get(ctx, pageURL, http.Header{"Accept": []string{"text/html"}})
	if err != nil {
		return nil, err
	}
	doc, err := scrape.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Transient(err, "failed to parse book page")
	}
	rec := ParsePage(ctx, doc, s.catalog.Site("bookpage"))
	if rec.Title == nil || *rec.Title == "" {
		return nil, apperr.NotFound("book page %s has no recognizable book", pageURL)
	}
	if rec.SourceURL != nil {
		pageURL = *rec.SourceURL
	}
	return stamp(rec, SourceBookPage, pageURL), nil
}

// ParsePage merges every extractor over doc in priority order.
func ParsePage(ctx context.Context, doc *scrape.Document, site scrape.SiteSelectors) *models.Record {
	return Merge(ctx, &models.Record{},
		NextDataExtractor(doc),
		JSONLDExtractor(doc),
		SelectorExtractor(doc, site),
		SeriesFromTitleExtractor(),
	)
}
