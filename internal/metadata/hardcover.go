// file: internal/metadata/hardcover.go
// version: 2.0.0
// guid: e7e02554-8931-49ba-9528-d3d51279da1d

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/models"
)

// DefaultHardcoverURL is the Hardcover GraphQL endpoint.
const DefaultHardcoverURL = "https://api.hardcover.app/v1/graphql"

const hardcoverSearchLimit = 10

const hardcoverSearchQuery = `query SearchBooks($query: String!, $limit: Int!) {
  search_books(query: $query, limit: $limit) {
    results {
      hits {
        document {
          title author_names image { url } description release_year
          slug isbns pages rating series_names
        }
      }
    }
  }
}`

// HardcoverClient searches the Hardcover.app GraphQL API.
// Requires a Bearer token for authentication.
type HardcoverClient struct {
	httpSource
	apiToken string
	gql      *graphql.Client
}

// headerAddingTransport adds the Hardcover authentication headers.
type headerAddingTransport struct {
	token string
	rt    http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface.
func (t *headerAddingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return t.rt.RoundTrip(req)
}

// NewHardcoverClient creates a new Hardcover API client with the given token.
func NewHardcoverClient(apiToken string, opts ...Option) *HardcoverClient {
	c := &HardcoverClient{
		httpSource: newHTTPSource("Hardcover", DefaultHardcoverURL, opts),
		apiToken:   apiToken,
	}
	rt := c.client.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	authClient := &http.Client{
		Timeout:   c.client.Timeout,
		Transport: &headerAddingTransport{token: apiToken, rt: rt},
	}
	c.gql = graphql.NewClient(c.baseURL, authClient)
	return c
}

// NewHardcoverClientWithBaseURL creates a client with a custom base URL (for testing).
func NewHardcoverClientWithBaseURL(baseURL, apiToken string) *HardcoverClient {
	return NewHardcoverClient(apiToken, WithBaseURL(baseURL))
}

// Name returns the display name for this metadata source.
func (c *HardcoverClient) Name() string {
	return "Hardcover"
}

// Configured reports whether an API token is set.
func (c *HardcoverClient) Configured() bool {
	return c != nil && c.apiToken != ""
}

type hardcoverData struct {
	SearchBooks *struct {
		Results *struct {
			Hits []struct {
				Document hardcoverDocument `json:"document"`
			} `json:"hits"`
		} `json:"results"`
	} `json:"search_books"`
}

type hardcoverDocument struct {
	Title       string   `json:"title"`
	AuthorNames []string `json:"author_names"`
	Image       *struct {
		URL string `json:"url"`
	} `json:"image"`
	Description string   `json:"description"`
	ReleaseYear int      `json:"release_year"`
	Slug        string   `json:"slug"`
	ISBNs       []string `json:"isbns"`
	Pages       int      `json:"pages"`
	Rating      float64  `json:"rating"`
	SeriesNames []string `json:"series_names"`
}

// SearchBooks searches Hardcover by free text.
func (c *HardcoverClient) SearchBooks(ctx context.Context, query string) ([]models.Record, error) {
	if !c.Configured() {
		return nil, apperr.ConfigUnavailable("Hardcover API token is not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperr.Transient(err, "Hardcover rate limiter")
		}
	}

	raw, err := c.gql.ExecRaw(ctx, hardcoverSearchQuery, map[string]any{
		"query": query,
		"limit": hardcoverSearchLimit,
	})
	if err != nil {
		return nil, apperr.Transient(err, "Hardcover search failed")
	}
	var data hardcoverData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperr.Transient(err, "failed to decode Hardcover response")
	}
	if data.SearchBooks == nil || data.SearchBooks.Results == nil {
		return nil, nil
	}

	hits := data.SearchBooks.Results.Hits
	results := make([]models.Record, 0, len(hits))
	for _, hit := range hits {
		if hit.Document.Title == "" {
			continue
		}
		results = append(results, *hit.Document.toRecord())
	}
	return results, nil
}

func (d *hardcoverDocument) toRecord() *models.Record {
	rec := &models.Record{
		Title:       models.String(strings.TrimSpace(d.Title)),
		Authors:     nonEmpty(d.AuthorNames),
		Description: models.StringOrNil(d.Description),
	}
	if d.Image != nil {
		rec.CoverURL = models.StringOrNil(d.Image.URL)
	}
	if d.ReleaseYear > 0 {
		rec.ReleaseDate = models.String(fmt.Sprint(d.ReleaseYear))
	}
	if d.Pages > 0 {
		rec.PageCount = models.Int(d.Pages)
	}
	if d.Rating > 0 {
		rec.Rating = models.Float64(d.Rating)
	}
	if len(d.SeriesNames) > 0 && d.SeriesNames[0] != "" {
		rec.Series = &models.Series{Name: d.SeriesNames[0]}
	}
	for _, isbn := range d.ISBNs {
		setISBN(rec, isbn)
	}
	sourceURL := ""
	if d.Slug != "" {
		sourceURL = "https://hardcover.app/books/" + d.Slug
	}
	return stamp(rec, SourceHardcover, sourceURL)
}
