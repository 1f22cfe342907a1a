// file: internal/metadata/audible.go
// version: 1.0.0
// guid: 18e9c310-549f-4ea2-a419-5a9005e510ac

package metadata

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/models"
	"github.com/jdfalk/bookmeta/internal/scrape"
)

// DefaultAudibleURL is the Audible storefront root.
const DefaultAudibleURL = "https://www.audible.com"

// audibleMaxItems bounds how many search results are parsed.
const audibleMaxItems = 10

var (
	hoursRe      = regexp.MustCompile(`(?i)(\d+)\s*(?:hrs?|hours?)\b`)
	minutesRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:mins?|minutes?)\b`)
	labelRe      = regexp.MustCompile(`^[^:]{1,40}:\s*`)
	asinInPathRe = regexp.MustCompile(`/([A-Z0-9]{10})(?:[/?]|$)`)
)

// AudibleScraper reads the Audible search page.
type AudibleScraper struct {
	httpSource
	catalog *scrape.Catalog
}

// NewAudibleScraper creates a scraper using the selector catalog.
func NewAudibleScraper(catalog *scrape.Catalog, opts ...Option) *AudibleScraper {
	if catalog == nil {
		catalog = scrape.DefaultCatalog()
	}
	return &AudibleScraper{
		httpSource: newHTTPSource("Audible", DefaultAudibleURL, opts),
		catalog:    catalog,
	}
}

// NewAudibleScraperWithBaseURL creates a scraper with a custom base URL (for testing).
func NewAudibleScraperWithBaseURL(baseURL string) *AudibleScraper {
	return NewAudibleScraper(nil, WithBaseURL(baseURL))
}

// Name returns the display name for this metadata source.
func (s *AudibleScraper) Name() string {
	return "Audible"
}

// SearchAudible returns the candidates listed on the search page for title
// and author, in page order.
func (s *AudibleScraper) SearchAudible(ctx context.Context, title, author string) ([]models.Record, error) {
	q := url.Values{}
	q.Set("title", title)
	if author != "" {
		q.Set("author_author", author)
	}
	q.Set("ipRedirectOverride", "true")
	body, err := s.get(ctx, s.baseURL+"/search?"+q.Encode(), http.Header{"Accept": []string{"text/html"}})
	if err != nil {
		return nil, err
	}
	doc, err := scrape.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Transient(err, "failed to parse Audible search page")
	}
	return s.parseResults(doc), nil
}

func (s *AudibleScraper) parseResults(doc *scrape.Document) []models.Record {
	site := s.catalog.Site("audible")
	var out []models.Record
	for _, item := range doc.FindAll(site["item"], audibleMaxItems) {
		title, ok := item.FindFirst(site["title"])
		if !ok {
			continue
		}
		rec := models.Record{
			Title:  models.String(title),
			Format: models.String(models.FormatAudio),
		}
		rec.Authors = texts(item.FindAll(site["author"], 0))
		rec.Narrators = texts(item.FindAll(site["narrator"], 0))
		if v, ok := item.FindFirst(site["runtime"]); ok {
			if mins, ok := ParseRuntimeMinutes(v); ok {
				rec.DurationMS = models.Int64(int64(mins) * 60 * 1000)
			}
		}
		if v, ok := item.FindFirst(site["release"]); ok {
			rec.ReleaseDate = models.String(labelRe.ReplaceAllString(v, ""))
		}
		if v, ok := item.FindFirst(site["cover"]); ok {
			rec.CoverURL = models.String(v)
		}
		link, _ := item.FindFirst(site["link"])
		if link != "" {
			link = s.absolute(link)
		}
		asin, _ := item.FindFirst(site["asin"])
		if asin == "" {
			if m := asinInPathRe.FindStringSubmatch(link); m != nil {
				asin = m[1]
			}
		}
		rec.AudiobookID = models.StringOrNil(asin)
		out = append(out, *stamp(&rec, SourceAudible, link))
	}
	return out
}

func (s *AudibleScraper) absolute(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.IsAbs() {
		return link
	}
	base, err := url.Parse(s.baseURL + "/")
	if err != nil {
		return link
	}
	return base.ResolveReference(u).String()
}

// ParseRuntimeMinutes converts runtime text such as "Length: 10 hrs and 5
// mins" into minutes.
func ParseRuntimeMinutes(s string) (int, bool) {
	total := 0
	found := false
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
		found = true
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		total += mins
		found = true
	}
	return total, found && total > 0
}

func texts(nodes []scrape.Node) []string {
	var out []string
	for _, n := range nodes {
		t := strings.TrimSpace(labelRe.ReplaceAllString(n.Text(), ""))
		if t != "" && !contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
