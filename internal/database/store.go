// file: internal/database/store.go
// version: 3.0.0
// guid: 49a488b5-4f11-4288-9f4f-1aa43bdfb89d

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jdfalk/bookmeta/internal/models"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("record not found")

// BookKey selects a stored book by any of its identifiers. The first
// non-empty field in declaration order is used.
type BookKey struct {
	ID             string
	APIID          string
	ISBN13         string
	ISBN10         string
	GoogleVolumeID string
}

// IsZero reports whether no identifier is set.
func (k BookKey) IsZero() bool {
	return k.ID == "" && k.APIID == "" && k.ISBN13 == "" && k.ISBN10 == "" && k.GoogleVolumeID == ""
}

// String renders the key for logs and error messages.
func (k BookKey) String() string {
	var parts []string
	add := func(name, v string) {
		if v != "" {
			parts = append(parts, name+" "+v)
		}
	}
	add("id", k.ID)
	add("api_id", k.APIID)
	add("isbn13", k.ISBN13)
	add("isbn10", k.ISBN10)
	add("google_volume_id", k.GoogleVolumeID)
	if len(parts) == 0 {
		return "empty key"
	}
	return strings.Join(parts, ", ")
}

// KeyFromRecord collects every identifier present on rec.
func KeyFromRecord(rec *models.Record) BookKey {
	var k BookKey
	if rec == nil {
		return k
	}
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	k.ID = deref(rec.ID)
	k.APIID = deref(rec.APIID)
	k.ISBN13 = deref(rec.ISBN13)
	k.ISBN10 = deref(rec.ISBN10)
	k.GoogleVolumeID = deref(rec.GoogleVolumeID)
	return k
}

// Store is the narrow read/upsert contract over the key/value collaborator.
// Every write is an idempotent upsert; concurrent writers converge to
// last-write-wins.
type Store interface {
	Close() error

	// books
	GetBook(ctx context.Context, key BookKey) (*models.Record, error)
	UpsertBook(ctx context.Context, rec *models.Record) (*models.Record, error)
	ListBooks(ctx context.Context, limit int) ([]models.Record, error)

	// audiobook_cache
	GetAudiobookCache(ctx context.Context, audiobookID string) (*models.CacheEntry, error)
	UpsertAudiobookCache(ctx context.Context, entry *models.CacheEntry) error

	// single-slot credentials
	GetCredential(ctx context.Context, slot string) (*models.Credential, error)
	UpsertCredential(ctx context.Context, cred *models.Credential) error

	// deadlines
	AddDeadline(ctx context.Context, d *models.Deadline) (*models.Deadline, error)
	ListDeadlines(ctx context.Context, entityID, format string) ([]models.Deadline, error)
}

// Open returns a Store for the configured backend: "pebble" (default) or "memory".
func Open(storeType, path string) (Store, error) {
	switch strings.ToLower(storeType) {
	case "", "pebble":
		if path == "" {
			return nil, fmt.Errorf("pebble store requires a path")
		}
		return NewPebbleStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", storeType)
	}
}

// Key schema shared by the pebble and memory backends:
//
//	book:id:<id>                 -> Record JSON
//	book:idx:<kind>:<value>      -> book id
//	audiobook_cache:<id>         -> CacheEntry JSON
//	credential:<slot>            -> Credential JSON
//	deadline:<entity>:<format>:<ulid> -> Deadline JSON
const (
	prefixBook       = "book:id:"
	prefixBookIndex  = "book:idx:"
	prefixAudiobook  = "audiobook_cache:"
	prefixCredential = "credential:"
	prefixDeadline   = "deadline:"
)

func bookKey(id string) []byte { return []byte(prefixBook + id) }

func bookIndexKeys(k BookKey) [][]byte {
	var keys [][]byte
	if k.APIID != "" {
		keys = append(keys, []byte(prefixBookIndex+"api:"+k.APIID))
	}
	if k.ISBN13 != "" {
		keys = append(keys, []byte(prefixBookIndex+"isbn13:"+k.ISBN13))
	}
	if k.ISBN10 != "" {
		keys = append(keys, []byte(prefixBookIndex+"isbn10:"+k.ISBN10))
	}
	if k.GoogleVolumeID != "" {
		keys = append(keys, []byte(prefixBookIndex+"gvid:"+k.GoogleVolumeID))
	}
	return keys
}

func audiobookKey(id string) []byte { return []byte(prefixAudiobook + id) }

func credentialKey(slot string) []byte { return []byte(prefixCredential + slot) }

func deadlinePrefix(entityID, format string) string {
	return prefixDeadline + entityID + ":" + format + ":"
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
