// file: internal/paginate/paginate.go
// version: 1.0.0
// guid: 6f651d48-c961-4aca-88e2-39a0f7c4d300

package paginate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jdfalk/bookmeta/internal/apperr"
)

// MaxPages bounds a single walk so a misbehaving cursor cannot loop forever.
const MaxPages = 500

// Page is one response of a cursor-paginated listing.
type Page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
}

// TokenFunc returns the bearer token to send, or "" for none.
type TokenFunc func(ctx context.Context) (string, error)

// Fetcher performs authenticated GETs for page walks.
type Fetcher struct {
	client  *http.Client
	token   TokenFunc
	limiter *rate.Limiter
}

// NewFetcher creates a page fetcher. token and limiter may be nil.
func NewFetcher(client *http.Client, token TokenFunc, limiter *rate.Limiter) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, token: token, limiter: limiter}
}

func (f *Fetcher) get(ctx context.Context, url string, out any) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return apperr.Transient(err, "rate limiter")
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create page request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != nil {
		tok, err := f.token(ctx)
		if err != nil {
			return err
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return apperr.Transient(err, "page request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return apperr.Transient(nil, "page request returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Transient(err, "failed to decode page")
	}
	return nil
}

// Reduce walks the listing starting at firstURL, following next until it is
// null, folding fn over every item. An empty firstURL or an empty first page
// yields identity. Any failed page aborts the walk and discards the partial
// result.
func Reduce[T, A any](ctx context.Context, f *Fetcher, firstURL string, identity A, fn func(A, T) A) (A, error) {
	acc := identity
	seen := make(map[string]bool)
	next := firstURL
	for pages := 0; next != ""; pages++ {
		if pages >= MaxPages {
			return identity, apperr.Transient(nil, "pagination exceeded %d pages", MaxPages)
		}
		if seen[next] {
			return identity, apperr.Transient(nil, "pagination cursor repeated %s", next)
		}
		seen[next] = true

		var page Page[T]
		if err := f.get(ctx, next, &page); err != nil {
			return identity, err
		}
		for _, item := range page.Items {
			acc = fn(acc, item)
		}
		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}
	return acc, nil
}
