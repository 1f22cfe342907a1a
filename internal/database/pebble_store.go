// file: internal/database/pebble_store.go
// version: 3.0.0
// guid: 8faf6b9c-7fb5-43c6-84a2-201b77346075

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble/v2"
	ulid "github.com/oklog/ulid/v2"

	"github.com/jdfalk/bookmeta/internal/models"
)

// PebbleStore implements Store on a local PebbleDB.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens or creates a PebbleDB at path.
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{
		FormatMajorVersion: pebble.FormatNewest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func (p *PebbleStore) getJSON(key []byte, out any) error {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(value, out)
}

func (p *PebbleStore) getString(key []byte) (string, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(value), nil
}

func (p *PebbleStore) resolveBookID(key BookKey) (string, error) {
	if key.ID != "" {
		return key.ID, nil
	}
	for _, idx := range bookIndexKeys(key) {
		id, err := p.getString(idx)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", ErrNotFound
}

// GetBook loads a book by any identifier in key.
func (p *PebbleStore) GetBook(ctx context.Context, key BookKey) (*models.Record, error) {
	if key.IsZero() {
		return nil, ErrNotFound
	}
	id, err := p.resolveBookID(key)
	if err != nil {
		return nil, err
	}
	var rec models.Record
	if err := p.getJSON(bookKey(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertBook writes rec and its identifier indexes. A record without an id
// reuses the id of any existing book sharing an identifier, else gets a ULID.
func (p *PebbleStore) UpsertBook(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil book record")
	}
	out := *rec
	key := KeyFromRecord(&out)
	if key.ID == "" {
		id, err := p.resolveBookID(key)
		switch {
		case err == nil:
			out.ID = models.String(id)
		case errors.Is(err, ErrNotFound):
			out.ID = models.String(ulid.Make().String())
		default:
			return nil, err
		}
		key.ID = *out.ID
	}

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode book: %w", err)
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(bookKey(key.ID), data, nil); err != nil {
		return nil, err
	}
	for _, idx := range bookIndexKeys(key) {
		if err := batch.Set(idx, []byte(key.ID), nil); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to commit book: %w", err)
	}
	return &out, nil
}

// ListBooks returns up to limit stored books in id order. limit <= 0 means all.
func (p *PebbleStore) ListBooks(ctx context.Context, limit int) ([]models.Record, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixBook),
		UpperBound: prefixUpperBound(prefixBook),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var books []models.Record
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec models.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", iter.Key(), err)
		}
		books = append(books, rec)
		if limit > 0 && len(books) >= limit {
			break
		}
	}
	return books, iter.Error()
}

// GetAudiobookCache loads a cached audiobook regardless of expiry.
func (p *PebbleStore) GetAudiobookCache(ctx context.Context, audiobookID string) (*models.CacheEntry, error) {
	var e models.CacheEntry
	if err := p.getJSON(audiobookKey(audiobookID), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertAudiobookCache replaces the cached entry for entry.AudiobookID.
func (p *PebbleStore) UpsertAudiobookCache(ctx context.Context, entry *models.CacheEntry) error {
	if entry == nil || entry.AudiobookID == "" {
		return fmt.Errorf("audiobook cache entry requires an id")
	}
	e := *entry
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return p.db.Set(audiobookKey(e.AudiobookID), data, pebble.Sync)
}

// GetCredential loads the credential in slot.
func (p *PebbleStore) GetCredential(ctx context.Context, slot string) (*models.Credential, error) {
	var c models.Credential
	if err := p.getJSON(credentialKey(slot), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCredential replaces the credential in cred.Slot.
func (p *PebbleStore) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	if cred == nil || cred.Slot == "" {
		return fmt.Errorf("credential requires a slot")
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return p.db.Set(credentialKey(cred.Slot), data, pebble.Sync)
}

// AddDeadline stores a new deadline submission with a fresh ULID.
func (p *PebbleStore) AddDeadline(ctx context.Context, d *models.Deadline) (*models.Deadline, error) {
	out, err := prepareDeadline(d)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	key := []byte(deadlinePrefix(out.EntityID, out.Format) + out.ID)
	if err := p.db.Set(key, data, pebble.Sync); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDeadlines returns the submissions for entityID and format in creation order.
func (p *PebbleStore) ListDeadlines(ctx context.Context, entityID, format string) ([]models.Deadline, error) {
	prefix := deadlinePrefix(entityID, format)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Deadline
	for iter.First(); iter.Valid(); iter.Next() {
		var d models.Deadline
		if err := json.Unmarshal(iter.Value(), &d); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", iter.Key(), err)
		}
		out = append(out, d)
	}
	return out, iter.Error()
}

func prepareDeadline(d *models.Deadline) (*models.Deadline, error) {
	if d == nil || strings.TrimSpace(d.EntityID) == "" || strings.TrimSpace(d.Format) == "" {
		return nil, fmt.Errorf("deadline requires entity id and format")
	}
	if strings.Contains(d.EntityID, ":") || strings.Contains(d.Format, ":") {
		return nil, fmt.Errorf("deadline entity id and format must not contain ':'")
	}
	out := *d
	out.ID = ulid.Make().String()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	return &out, nil
}
