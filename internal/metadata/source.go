// file: internal/metadata/source.go
// version: 2.0.0
// guid: a1b2c3d4-e5f6-7a8b-9c0d-e1f2a3b4c5d6

package metadata

import (
	"context"
	"strings"
	"time"

	"github.com/jdfalk/bookmeta/internal/models"
)

// Source names recorded on resolved records.
const (
	SourceGoogleBooks = "google_books"
	SourceOpenLibrary = "open_library"
	SourceHardcover   = "hardcover"
	SourceBookPage    = "bookpage"
	SourceSpotify     = "spotify"
	SourceAudible     = "audible"
	SourceAudnexus    = "audnexus"
	SourceIndex       = "index"
)

// BookSearcher is a pluggable free-text book search provider.
type BookSearcher interface {
	Name() string
	SearchBooks(ctx context.Context, query string) ([]models.Record, error)
}

// ISBNLookup resolves a single record from an ISBN.
type ISBNLookup interface {
	LookupISBN(ctx context.Context, isbn string) (*models.Record, error)
}

// NormalizeISBN strips separators and reports whether the result is a
// well-formed ISBN-10 or ISBN-13.
func NormalizeISBN(s string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteByte('X')
		case r == '-' || r == ' ':
		default:
			return "", false
		}
	}
	isbn := b.String()
	switch {
	case len(isbn) == 10 && !strings.Contains(isbn[:9], "X"):
		return isbn, true
	case len(isbn) == 13 && !strings.Contains(isbn, "X"):
		return isbn, true
	}
	return "", false
}

// setISBN stores isbn on the matching field of rec.
func setISBN(rec *models.Record, isbn string) {
	n, ok := NormalizeISBN(isbn)
	if !ok {
		return
	}
	if len(n) == 13 && rec.ISBN13 == nil {
		rec.ISBN13 = models.String(n)
	}
	if len(n) == 10 && rec.ISBN10 == nil {
		rec.ISBN10 = models.String(n)
	}
}

// stamp records provenance on rec.
func stamp(rec *models.Record, source, sourceURL string) *models.Record {
	now := time.Now().UTC()
	rec.Source = models.String(source)
	rec.SourceURL = models.StringOrNil(sourceURL)
	rec.FetchedAt = &now
	return rec
}

// secureURL upgrades plain http image links.
func secureURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// nonEmpty returns the non-blank entries of in, or nil when there are none.
func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
