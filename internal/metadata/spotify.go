// file: internal/metadata/spotify.go
// version: 1.0.0
// guid: 67501d6e-d4b7-4e45-bdd1-0c89d6500387

package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/models"
	"github.com/jdfalk/bookmeta/internal/paginate"
)

// DefaultSpotifyURL is the Spotify Web API root.
const DefaultSpotifyURL = "https://api.spotify.com/v1"

// DefaultSpotifyTokenURL is the Spotify client-credentials token endpoint.
const DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"

// spotifyChapterPage is the page size used when summing chapter durations.
const spotifyChapterPage = 50

// SpotifyClient reads audiobooks from the Spotify Web API using a bearer
// token supplied by a credential cache.
type SpotifyClient struct {
	httpSource
	tokens  paginate.TokenFunc
	market  string
	fetcher *paginate.Fetcher
}

// NewSpotifyClient creates a Spotify client. tokens may be nil, in which case
// the client reports itself as unconfigured.
func NewSpotifyClient(tokens paginate.TokenFunc, market string, opts ...Option) *SpotifyClient {
	if market == "" {
		market = "US"
	}
	c := &SpotifyClient{
		httpSource: newHTTPSource("Spotify", DefaultSpotifyURL, opts),
		tokens:     tokens,
		market:     market,
	}
	c.fetcher = paginate.NewFetcher(c.client, tokens, c.limiter)
	return c
}

// Name returns the display name for this metadata source.
func (c *SpotifyClient) Name() string {
	return "Spotify"
}

// Configured reports whether credentials are available.
func (c *SpotifyClient) Configured() bool {
	return c != nil && c.tokens != nil
}

type spotifyNamed struct {
	Name string `json:"name"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyAudiobook struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Authors       []spotifyNamed `json:"authors"`
	Narrators     []spotifyNamed `json:"narrators"`
	Description   string         `json:"description"`
	Publisher     string         `json:"publisher"`
	Images        []spotifyImage `json:"images"`
	TotalChapters int            `json:"total_chapters"`
	ExternalURLs  struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type spotifyChapter struct {
	ID         string `json:"id"`
	DurationMS int64  `json:"duration_ms"`
}

type spotifySearchResponse struct {
	Audiobooks struct {
		Items []*spotifyAudiobook `json:"items"`
		Total int                 `json:"total"`
	} `json:"audiobooks"`
}

func (c *SpotifyClient) authHeader(ctx context.Context) (http.Header, error) {
	if !c.Configured() {
		return nil, apperr.ConfigUnavailable("Spotify credentials are not configured")
	}
	tok, err := c.tokens(ctx)
	if err != nil {
		return nil, err
	}
	return http.Header{"Authorization": []string{"Bearer " + tok}}, nil
}

// SearchAudiobooks returns up to limit audiobooks matching query.
func (c *SpotifyClient) SearchAudiobooks(ctx context.Context, query string, limit int) ([]models.Record, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "audiobook")
	q.Set("limit", fmt.Sprint(limit))
	q.Set("market", c.market)

	var resp spotifySearchResponse
	if err := c.getJSON(ctx, c.baseURL+"/search?"+q.Encode(), header, &resp); err != nil {
		return nil, err
	}
	results := make([]models.Record, 0, len(resp.Audiobooks.Items))
	for _, item := range resp.Audiobooks.Items {
		// Spotify pads search pages with nulls for unavailable items.
		if item == nil || item.ID == "" {
			continue
		}
		results = append(results, *item.toRecord())
	}
	return results, nil
}

// Audiobook fetches an audiobook and sums the duration of all its chapters.
func (c *SpotifyClient) Audiobook(ctx context.Context, id string) (*models.Record, error) {
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("market", c.market)
	var book spotifyAudiobook
	if err := c.getJSON(ctx, c.baseURL+"/audiobooks/"+url.PathEscape(id)+"?"+q.Encode(), header, &book); err != nil {
		return nil, err
	}
	if book.ID == "" {
		return nil, apperr.NotFound("Spotify audiobook %s not found", id)
	}

	total, err := c.ChapterDuration(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := book.toRecord()
	if total > 0 {
		rec.DurationMS = models.Int64(total)
	}
	return rec, nil
}

// ChapterDuration sums duration_ms over every chapter page of an audiobook.
func (c *SpotifyClient) ChapterDuration(ctx context.Context, id string) (int64, error) {
	first := fmt.Sprintf("%s/audiobooks/%s/chapters?limit=%d&market=%s",
		c.baseURL, url.PathEscape(id), spotifyChapterPage, url.QueryEscape(c.market))
	return paginate.Reduce(ctx, c.fetcher, first, int64(0), func(acc int64, ch spotifyChapter) int64 {
		return acc + ch.DurationMS
	})
}

func (b *spotifyAudiobook) toRecord() *models.Record {
	rec := &models.Record{
		AudiobookID: models.String(b.ID),
		Title:       models.String(strings.TrimSpace(b.Name)),
		Description: models.StringOrNil(stripHTML(b.Description)),
		Publisher:   models.StringOrNil(b.Publisher),
		Format:      models.String(models.FormatAudio),
	}
	for _, a := range b.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, a.Name)
		}
	}
	for _, n := range b.Narrators {
		if n.Name != "" {
			rec.Narrators = append(rec.Narrators, n.Name)
		}
	}
	best := 0
	for _, img := range b.Images {
		if img.URL != "" && (rec.CoverURL == nil || img.Width > best) {
			rec.CoverURL = models.String(img.URL)
			best = img.Width
		}
	}
	return stamp(rec, SourceSpotify, b.ExternalURLs.Spotify)
}

