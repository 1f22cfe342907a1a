// file: internal/server/server_test.go
// version: 2.1.0
// guid: 9a0b1c2d-3e4f-5a6b-7c8d-9e0f1a2b3c4d

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/auth"
	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/models"
	"github.com/jdfalk/bookmeta/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

type fakeBooks struct {
	resolve func(req resolver.BookRequest) (*models.Record, error)
	search  func(query string) ([]models.Record, error)
}

func (f *fakeBooks) Resolve(_ context.Context, req resolver.BookRequest) (*models.Record, error) {
	return f.resolve(req)
}

func (f *fakeBooks) Search(_ context.Context, query string) ([]models.Record, error) {
	return f.search(query)
}

type fakeAudiobooks struct {
	resolve func(req resolver.AudiobookRequest) (*resolver.AudiobookResult, error)
	search  func(query string, limit int) ([]models.Record, error)
	audible func(title, author string) (*resolver.AudibleMatch, error)
}

func (f *fakeAudiobooks) Resolve(_ context.Context, req resolver.AudiobookRequest) (*resolver.AudiobookResult, error) {
	return f.resolve(req)
}

func (f *fakeAudiobooks) Search(_ context.Context, query string, limit int) ([]models.Record, error) {
	return f.search(query, limit)
}

func (f *fakeAudiobooks) MatchAudible(_ context.Context, title, author string) (*resolver.AudibleMatch, error) {
	return f.audible(title, author)
}

type fixedSize int

func (n fixedSize) Len() int { return int(n) }

func newTestServer(t *testing.T, services Services) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if services.Verifier == nil {
		services.Verifier = auth.StaticVerifier{testToken: "user-1"}
	}
	return NewServer(services, Options{
		RateLimitPerMin: 6000,
		RateLimitBurst:  100,
		DatabaseType:    "memory",
		Logger:          logger.New(logger.Config{Output: io.Discard}),
	})
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthCheck_NoAuth(t *testing.T) {
	srv := newTestServer(t, Services{Index: fixedSize(3)})
	w := doJSON(t, srv, http.MethodGet, "/api/v1/health", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "memory", body.DatabaseType)
	require.NotNil(t, body.IndexedBooks)
	assert.Equal(t, 3, *body.IndexedBooks)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Services{})
	w := doJSON(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Services{})
	w := doJSON(t, srv, http.MethodOptions, "/api/v1/books/resolve", "", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	srv := newTestServer(t, Services{Books: &fakeBooks{}})
	for _, path := range []string{
		"/api/v1/books/resolve",
		"/api/v1/books/search",
		"/api/v1/audiobooks/resolve",
		"/api/v1/audiobooks/search",
		"/api/v1/audiobooks/audible",
		"/api/v1/deadlines",
	} {
		w := doJSON(t, srv, http.MethodPost, path, "", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		w = doJSON(t, srv, http.MethodPost, path, "wrong", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		body := decodeError(t, w)
		assert.NotEmpty(t, body.Logs, path)
	}
}

func TestResolveBook(t *testing.T) {
	var got resolver.BookRequest
	books := &fakeBooks{resolve: func(req resolver.BookRequest) (*models.Record, error) {
		got = req
		if req.ISBN == "0000000000" {
			return nil, &apperr.ResolutionError{Identifier: "isbn 0000000000", Failures: []apperr.StrategyFailure{{Strategy: "cache", Cached: true}, {Strategy: "open_library"}}}
		}
		if req.GoogleVolumeID != "" {
			return nil, apperr.ConfigUnavailable("google_volume_id lookups require a Google Books API key")
		}
		return &models.Record{Title: models.String("Dune"), ISBN13: models.String(req.ISBN)}, nil
	}}
	srv := newTestServer(t, Services{Books: books})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books/resolve", testToken, map[string]string{"isbn": "9780441013593", "api_id": "234225"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9780441013593", got.ISBN)
	assert.Equal(t, "234225", got.APIID)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Dune", rec["title"])
	assert.Contains(t, rec, "narrators")
	assert.Nil(t, rec["narrators"])

	w = doJSON(t, srv, http.MethodPost, "/api/v1/books/resolve", testToken, map[string]string{"isbn": "0000000000"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Contains(t, body.Error, "cache and external lookups exhausted")
	assert.NotEmpty(t, body.Logs)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/books/resolve", testToken, map[string]string{"google_volume_id": "abc"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/books/resolve", testToken, "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchBooks(t *testing.T) {
	books := &fakeBooks{search: func(query string) ([]models.Record, error) {
		switch query {
		case "":
			return nil, apperr.Validation("query is required")
		case "nothing":
			return nil, nil
		}
		return []models.Record{{Title: models.String("Dune")}}, nil
	}}
	srv := newTestServer(t, Services{Books: books})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books/search", testToken, BookSearchRequest{Query: "dune"})
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "bookList")
	assert.Contains(t, body, "logs")

	w = doJSON(t, srv, http.MethodPost, "/api/v1/books/search", testToken, BookSearchRequest{Query: "nothing"})
	require.Equal(t, http.StatusOK, w.Code)
	var empty BookSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.NotNil(t, empty.BookList)
	assert.Empty(t, empty.BookList)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/books/search", testToken, BookSearchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAudiobookRoutes(t *testing.T) {
	minutes := 605
	audiobooks := &fakeAudiobooks{
		resolve: func(req resolver.AudiobookRequest) (*resolver.AudiobookResult, error) {
			if req.AudiobookID == "missing" {
				return nil, apperr.NotFound("no audiobook found")
			}
			return &resolver.AudiobookResult{Source: resolver.SourceSpotify, Data: &models.Record{AudiobookID: models.String(req.AudiobookID)}}, nil
		},
		search: func(query string, limit int) ([]models.Record, error) {
			if len(query) < 2 {
				return nil, apperr.Validation("query must be at least 2 characters")
			}
			return []models.Record{{Title: models.String(query)}}, nil
		},
		audible: func(title, author string) (*resolver.AudibleMatch, error) {
			return &resolver.AudibleMatch{Record: &models.Record{Title: models.String(title)}, DurationMinutes: &minutes}, nil
		},
	}
	srv := newTestServer(t, Services{Audiobooks: audiobooks})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/audiobooks/resolve", testToken, resolver.AudiobookRequest{AudiobookID: "sp1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resolved struct {
		Success bool           `json:"success"`
		Source  string         `json:"source"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.True(t, resolved.Success)
	assert.Equal(t, "spotify", resolved.Source)
	assert.Equal(t, "sp1", resolved.Data["audiobook_id"])

	w = doJSON(t, srv, http.MethodPost, "/api/v1/audiobooks/resolve", testToken, resolver.AudiobookRequest{AudiobookID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/audiobooks/search", testToken, AudiobookSearchRequest{Query: "d"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/audiobooks/search", testToken, AudiobookSearchRequest{Query: "dune", Limit: 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/audiobooks/audible", testToken, AudibleRequest{Title: "Dune", Author: "Frank Herbert"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"audible"`)
	assert.Contains(t, w.Body.String(), `"duration_minutes":605`)
}

func TestUnconfiguredServices(t *testing.T) {
	srv := newTestServer(t, Services{})
	w := doJSON(t, srv, http.MethodPost, "/api/v1/books/resolve", testToken, map[string]string{"isbn": "9780441013593"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = doJSON(t, srv, http.MethodPost, "/api/v1/deadlines", testToken, map[string]string{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// The community path end to end: two users agree on an audio duration and
// the audiobook resolver reports it when no catalog is configured.
func TestDeadlinesFeedCommunityConsensus(t *testing.T) {
	store := database.NewMemoryStore()
	book, err := store.UpsertBook(context.Background(), &models.Record{
		Title:   models.String("Project Hail Mary"),
		Authors: []string{"Andy Weir"},
		ISBN13:  models.String("9780593135204"),
	})
	require.NoError(t, err)

	bg := resolver.NewBackground(time.Second)
	srv := newTestServer(t, Services{
		Books:      &resolver.BookService{Store: store, Background: bg, Timeout: time.Second},
		Audiobooks: &resolver.AudiobookService{Store: store, Background: bg, Timeout: time.Second},
		Deadlines:  &resolver.DeadlineService{Store: store},
		Verifier:   auth.StaticVerifier{"alice": "u-alice", "bob": "u-bob"},
	})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/books/resolve", "alice", map[string]string{"isbn": "978-0-593-13520-4"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Project Hail Mary")

	req := map[string]any{"entity_id": *book.ID, "format": "audio", "total_quantity": 970}
	w = doJSON(t, srv, http.MethodPost, "/api/v1/deadlines", "alice", req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u-alice"`)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/audiobooks/resolve", "alice", resolver.AudiobookRequest{BookID: *book.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/deadlines", "bob", req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/audiobooks/resolve", "alice", resolver.AudiobookRequest{BookID: *book.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Source string                      `json:"source"`
		Data   resolver.CommunityAudiobook `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "community", body.Source)
	assert.Equal(t, 970, body.Data.DurationMinutes)
	assert.Equal(t, 2, body.Data.Support)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/deadlines", "bob", map[string]any{"entity_id": *book.ID, "format": "vinyl", "total_quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bg.Wait()
}
