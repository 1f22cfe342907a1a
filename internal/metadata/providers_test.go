// file: internal/metadata/providers_test.go
// version: 1.0.0
// guid: 74440663-22a4-4772-970a-f37f1e4d2eb4

package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"978-0-441-17271-9", "9780441172719", true},
		{"0 441 17271 7", "0441172717", true},
		{"080442957x", "080442957X", true},
		{"12345", "", false},
		{"97804411727X9", "", false},
		{"isbn:9780441172719", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeISBN(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestGoogleBooksClient_LookupISBN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, "isbn:9780441172719", r.URL.Query().Get("q"))
		assert.Empty(t, r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"totalItems": 1,
			"items": [{
				"id": "B1hSG45JCX4C",
				"volumeInfo": {
					"title": "Dune",
					"authors": ["Frank Herbert"],
					"publisher": "Ace",
					"publishedDate": "1990-09-01",
					"pageCount": 535,
					"printType": "BOOK",
					"averageRating": 4.5,
					"categories": ["Fiction"],
					"industryIdentifiers": [
						{"type": "ISBN_10", "identifier": "0441172717"},
						{"type": "ISBN_13", "identifier": "9780441172719"}
					],
					"imageLinks": {"thumbnail": "http://books.example/dune.jpg"},
					"infoLink": "https://books.example/dune"
				}
			}]
		}`))
	}))
	defer server.Close()

	client := NewGoogleBooksClientWithBaseURL(server.URL, "")
	rec, err := client.LookupISBN(context.Background(), "9780441172719")
	require.NoError(t, err)
	assert.Equal(t, "Dune", *rec.Title)
	assert.Equal(t, []string{"Frank Herbert"}, rec.Authors)
	assert.Equal(t, "B1hSG45JCX4C", *rec.GoogleVolumeID)
	assert.Equal(t, "9780441172719", *rec.ISBN13)
	assert.Equal(t, "0441172717", *rec.ISBN10)
	assert.Equal(t, 535, *rec.PageCount)
	assert.Equal(t, "https://books.example/dune.jpg", *rec.CoverURL)
	assert.Equal(t, SourceGoogleBooks, *rec.Source)
	assert.Nil(t, rec.Narrators)
}

func TestGoogleBooksClient_GetVolumeRequiresKey(t *testing.T) {
	client := NewGoogleBooksClientWithBaseURL("http://127.0.0.1:1", "")
	_, err := client.GetVolume(context.Background(), "abc")
	assert.Equal(t, apperr.KindConfigUnavailable, apperr.KindOf(err))
}

func TestGoogleBooksClient_GetVolume(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes/abc", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"id":"abc","volumeInfo":{"title":"Dune Messiah","authors":["Frank Herbert"]}}`))
	}))
	defer server.Close()

	rec, err := NewGoogleBooksClientWithBaseURL(server.URL, "secret").GetVolume(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", *rec.Title)
	assert.Nil(t, rec.PageCount)
}

func TestGoogleBooksClient_NotFoundAndTransient(t *testing.T) {
	status := http.StatusNotFound
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	client := NewGoogleBooksClientWithBaseURL(server.URL, "k")
	_, err := client.GetVolume(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	status = http.StatusServiceUnavailable
	_, err = client.GetVolume(context.Background(), "missing")
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
}

func TestGoogleBooksClient_EmptyLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer server.Close()

	_, err := NewGoogleBooksClientWithBaseURL(server.URL, "").LookupISBN(context.Background(), "0000000000")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOpenLibraryClient_LookupISBN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "ISBN:9780441172719", r.URL.Query().Get("bibkeys"))
		assert.Equal(t, "data", r.URL.Query().Get("jscmd"))
		_, _ = w.Write([]byte(`{"ISBN:9780441172719": {
			"url": "https://openlibrary.org/books/OL1M/Dune",
			"title": "Dune",
			"authors": [{"name": "Frank Herbert"}],
			"publishers": [{"name": "Ace Books"}],
			"publish_date": "1990",
			"number_of_pages": 535,
			"subjects": [{"name": "Science fiction"}],
			"identifiers": {"isbn_10": ["0441172717"]},
			"cover": {"medium": "https://covers.example/m.jpg", "large": "https://covers.example/l.jpg"}
		}}`))
	}))
	defer server.Close()

	rec, err := NewOpenLibraryClientWithBaseURL(server.URL).LookupISBN(context.Background(), "9780441172719")
	require.NoError(t, err)
	assert.Equal(t, "Dune", *rec.Title)
	assert.Equal(t, "Ace Books", *rec.Publisher)
	assert.Equal(t, "https://covers.example/l.jpg", *rec.CoverURL)
	assert.Equal(t, "9780441172719", *rec.ISBN13)
	assert.Equal(t, "0441172717", *rec.ISBN10)
	assert.Equal(t, []string{"Science fiction"}, rec.Genres)
	assert.Nil(t, rec.Description)
}

func TestOpenLibraryClient_LookupISBNMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewOpenLibraryClientWithBaseURL(server.URL).LookupISBN(context.Background(), "9780000000000")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOpenLibraryClient_SearchBooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "dune herbert", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"numFound": 2, "docs": [
			{"key": "/works/OL1W", "title": "Dune", "author_name": ["Frank Herbert"], "first_publish_year": 1965,
			 "isbn": ["9780441172719", "0441172717"], "cover_i": 42, "ratings_average": 4.2},
			{"title": ""}
		]}`))
	}))
	defer server.Close()

	recs, err := NewOpenLibraryClientWithBaseURL(server.URL).SearchBooks(context.Background(), "dune herbert")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1965", *recs[0].ReleaseDate)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/42-L.jpg", *recs[0].CoverURL)
	assert.Equal(t, server.URL+"/works/OL1W", *recs[0].SourceURL)
	assert.InDelta(t, 4.2, *recs[0].Rating, 0.001)
}

func TestHardcoverClient_SearchBooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hc-token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Contains(t, req.Query, "search_books")
		assert.Equal(t, "dune", req.Variables["query"])
		_, _ = w.Write([]byte(`{"data": {"search_books": {"results": {"hits": [
			{"document": {"title": "Dune", "author_names": ["Frank Herbert"], "image": {"url": "https://hc.example/d.jpg"},
			 "release_year": 1965, "slug": "dune", "rating": 4.3, "pages": 658, "series_names": ["Dune"]}}
		]}}}}`))
	}))
	defer server.Close()

	recs, err := NewHardcoverClientWithBaseURL(server.URL, "hc-token").SearchBooks(context.Background(), "dune")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Dune", *recs[0].Title)
	assert.Equal(t, "https://hardcover.app/books/dune", *recs[0].SourceURL)
	assert.Equal(t, "Dune", recs[0].Series.Name)
	assert.Equal(t, SourceHardcover, *recs[0].Source)
}

func TestHardcoverClient_Unconfigured(t *testing.T) {
	_, err := NewHardcoverClientWithBaseURL("http://127.0.0.1:1", "").SearchBooks(context.Background(), "dune")
	assert.Equal(t, apperr.KindConfigUnavailable, apperr.KindOf(err))
}

func TestAudnexusClient_LookupByASIN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/B002V1OF70", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"asin": "B002V1OF70", "title": "Dune",
			"authors": [{"name": "Frank Herbert"}],
			"narrators": [{"name": "Scott Brick"}, {"name": "Orlagh Cassidy"}],
			"summary": "<p>Set on the desert planet <b>Arrakis</b></p>",
			"runtimeLengthMin": 1263,
			"rating": "4.6",
			"seriesPrimary": {"name": "Dune", "position": "1"}
		}`))
	}))
	defer server.Close()

	rec, err := NewAudnexusClientWithBaseURL(server.URL).LookupByASIN(context.Background(), "B002V1OF70")
	require.NoError(t, err)
	assert.Equal(t, []string{"Scott Brick", "Orlagh Cassidy"}, rec.Narrators)
	assert.Equal(t, "Set on the desert planet Arrakis", *rec.Description)
	assert.Equal(t, int64(1263*60*1000), *rec.DurationMS)
	assert.Equal(t, 1.0, *rec.Series.Position)
}
