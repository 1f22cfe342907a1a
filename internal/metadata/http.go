// file: internal/metadata/http.go
// version: 1.0.0
// guid: 41345113-f176-424f-a277-9dec86e2be49

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jdfalk/bookmeta/internal/apperr"
)

// DefaultTimeout is the per-request timeout of provider HTTP clients.
const DefaultTimeout = 12 * time.Second

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// userAgent is sent with every outbound request.
const userAgent = "bookmeta/1.0 (+https://github.com/jdfalk/bookmeta)"

// Option configures a provider client.
type Option func(*httpSource)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpSource) {
		if c != nil {
			h.client = c
		}
	}
}

// WithBaseURL overrides the provider's base URL.
func WithBaseURL(u string) Option {
	return func(h *httpSource) {
		if u != "" {
			h.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit limits outbound requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *httpSource) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// httpSource is the shared transport of every provider client.
type httpSource struct {
	name    string
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

func newHTTPSource(name, baseURL string, opts []Option) httpSource {
	h := httpSource{
		name:    name,
		client:  &http.Client{Timeout: DefaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// get performs a GET and returns the body of a 2xx response. A 404 becomes
// apperr.KindNotFound; every other failure is apperr.KindTransient.
func (h *httpSource) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, apperr.Transient(err, "%s rate limiter", h.name)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", h.name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperr.Transient(err, "%s request failed", h.name)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Transient(err, "failed to read %s response", h.name)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.NotFound("%s returned status 404", h.name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, apperr.Transient(nil, "%s returned status %d", h.name, resp.StatusCode)
	}
	return body, nil
}

// getJSON performs a GET and decodes a JSON response into out.
func (h *httpSource) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")
	body, err := h.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Transient(err, "failed to decode %s response", h.name)
	}
	return nil
}
