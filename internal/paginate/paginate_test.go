// file: internal/paginate/paginate_test.go
// version: 1.0.0
// guid: 976d0348-daa6-45b9-ac7a-3301621859b0

package paginate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/bookmeta/internal/apperr"
)

type chapter struct {
	DurationMS int64 `json:"duration_ms"`
}

func sumDuration(acc int64, c chapter) int64 { return acc + c.DurationMS }

// pagedServer serves pages of the given sizes, each item lasting 1000ms.
func pagedServer(t *testing.T, sizes []int, failPage int) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if n == failPage {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if n >= len(sizes) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		page := Page[chapter]{Items: make([]chapter, sizes[n])}
		for i := range page.Items {
			page.Items[i].DurationMS = 1000
		}
		if n+1 < len(sizes) {
			next := fmt.Sprintf("%s/chapters?page=%d", srv.URL, n+1)
			page.Next = &next
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReduce_SumsAcrossPages(t *testing.T) {
	srv := pagedServer(t, []int{50, 50, 10}, -1)
	total, err := Reduce(context.Background(), NewFetcher(srv.Client(), nil, nil), srv.URL+"/chapters?page=0", int64(0), sumDuration)
	require.NoError(t, err)
	assert.Equal(t, int64(110000), total)

	single := pagedServer(t, []int{110}, -1)
	one, err := Reduce(context.Background(), NewFetcher(single.Client(), nil, nil), single.URL+"/chapters?page=0", int64(0), sumDuration)
	require.NoError(t, err)
	assert.Equal(t, total, one)
}

func TestReduce_ZeroPages(t *testing.T) {
	total, err := Reduce(context.Background(), NewFetcher(nil, nil, nil), "", int64(7), sumDuration)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	srv := pagedServer(t, []int{0}, -1)
	total, err = Reduce(context.Background(), NewFetcher(srv.Client(), nil, nil), srv.URL+"/chapters?page=0", int64(0), sumDuration)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestReduce_FailedPageDiscardsPartialSum(t *testing.T) {
	srv := pagedServer(t, []int{50, 50, 10}, 2)
	total, err := Reduce(context.Background(), NewFetcher(srv.Client(), nil, nil), srv.URL+"/chapters?page=0", int64(0), sumDuration)
	require.Error(t, err)
	assert.Equal(t, int64(0), total)
	assert.True(t, apperr.Is(err, apperr.KindTransient))
}

func TestReduce_SendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"items":[{"duration_ms":5}],"next":null}`))
	}))
	defer srv.Close()

	token := func(context.Context) (string, error) { return "abc", nil }
	total, err := Reduce(context.Background(), NewFetcher(srv.Client(), token, nil), srv.URL, int64(0), sumDuration)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, "Bearer abc", auth)
}

func TestReduce_RepeatedCursorAborts(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"items":[{"duration_ms":1}],"next":%q}`, srv.URL+"/loop")
	}))
	defer srv.Close()

	_, err := Reduce(context.Background(), NewFetcher(srv.Client(), nil, nil), srv.URL+"/loop", int64(0), sumDuration)
	assert.Error(t, err)
}
