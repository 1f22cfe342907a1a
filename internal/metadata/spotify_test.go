// file: internal/metadata/spotify_test.go
// version: 1.0.0
// guid: 92a5a154-8ca2-424b-97f5-34500a6da043

package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(tok string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return tok, nil }
}

func newSpotifyServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sp-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "audiobook", r.URL.Query().Get("type"))
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"audiobooks": {"total": 2, "items": [
				{"id": "ab1", "name": "Dune", "authors": [{"name": "Frank Herbert"}],
				 "narrators": [{"name": "Scott Brick"}], "images": [{"url": "https://i.example/s.jpg", "width": 64},
				 {"url": "https://i.example/l.jpg", "width": 640}]},
				null
			]}}`))
		case "/audiobooks/ab1":
			assert.Equal(t, "US", r.URL.Query().Get("market"))
			_, _ = w.Write([]byte(`{"id": "ab1", "name": "Dune", "authors": [{"name": "Frank Herbert"}],
				"publisher": "Macmillan Audio", "external_urls": {"spotify": "https://open.example/ab1"}}`))
		case "/audiobooks/ab1/chapters":
			if r.URL.Query().Get("offset") == "50" {
				_, _ = w.Write([]byte(`{"items": [{"duration_ms": 1000}], "next": null}`))
				return
			}
			items := ""
			for i := 0; i < 50; i++ {
				if i > 0 {
					items += ","
				}
				items += `{"duration_ms": 2000}`
			}
			_, _ = fmt.Fprintf(w, `{"items": [%s], "next": "%s/audiobooks/ab1/chapters?limit=50&offset=50"}`, items, server.URL)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server
}

func TestSpotifyClient_SearchAudiobooks(t *testing.T) {
	server := newSpotifyServer(t)
	defer server.Close()

	c := NewSpotifyClient(staticToken("sp-token"), "", WithBaseURL(server.URL))
	recs, err := c.SearchAudiobooks(context.Background(), "dune", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ab1", *recs[0].AudiobookID)
	assert.Equal(t, []string{"Scott Brick"}, recs[0].Narrators)
	assert.Equal(t, "https://i.example/l.jpg", *recs[0].CoverURL)
	assert.Equal(t, "audio", *recs[0].Format)
}

func TestSpotifyClient_AudiobookSumsChapters(t *testing.T) {
	server := newSpotifyServer(t)
	defer server.Close()

	c := NewSpotifyClient(staticToken("sp-token"), "US", WithBaseURL(server.URL))
	rec, err := c.Audiobook(context.Background(), "ab1")
	require.NoError(t, err)
	assert.Equal(t, int64(50*2000+1000), *rec.DurationMS)
	assert.Equal(t, "Macmillan Audio", *rec.Publisher)
	assert.Equal(t, "https://open.example/ab1", *rec.SourceURL)
}

func TestSpotifyClient_Unconfigured(t *testing.T) {
	c := NewSpotifyClient(nil, "US")
	assert.False(t, c.Configured())
	_, err := c.SearchAudiobooks(context.Background(), "dune", 5)
	assert.Equal(t, apperr.KindConfigUnavailable, apperr.KindOf(err))
}

func TestSpotifyClient_TokenFailure(t *testing.T) {
	boom := apperr.UpstreamAuth(errors.New("invalid_client"), "credential exchange failed")
	c := NewSpotifyClient(func(context.Context) (string, error) { return "", boom }, "US")
	_, err := c.Audiobook(context.Background(), "ab1")
	assert.Equal(t, apperr.KindUpstreamAuth, apperr.KindOf(err))
}

func TestSpotifyClient_ChapterPageFailure(t *testing.T) {
	server := newSpotifyServer(t)
	defer server.Close()

	c := NewSpotifyClient(staticToken("wrong"), "US", WithBaseURL(server.URL))
	_, err := c.ChapterDuration(context.Background(), "ab1")
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
}
