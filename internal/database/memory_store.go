// file: internal/database/memory_store.go
// version: 1.0.0
// guid: c0d567fe-2806-473f-aafc-0d5cb5680e18

package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	ulid "github.com/oklog/ulid/v2"

	"github.com/jdfalk/bookmeta/internal/cache"
	"github.com/jdfalk/bookmeta/internal/models"
)

// MemoryStore implements Store in process, using the same key schema and JSON
// encoding as PebbleStore. Intended for tests and throwaway runs.
type MemoryStore struct {
	mu sync.Mutex
	kv *cache.Cache[[]byte]
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: cache.New[[]byte](0)}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) getJSON(key []byte, out any) error {
	v, ok := m.kv.Get(string(key))
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(v, out)
}

func (m *MemoryStore) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.kv.Set(string(key), data)
	return nil
}

func (m *MemoryStore) resolveBookID(key BookKey) (string, error) {
	if key.ID != "" {
		return key.ID, nil
	}
	for _, idx := range bookIndexKeys(key) {
		if v, ok := m.kv.Get(string(idx)); ok {
			return string(v), nil
		}
	}
	return "", ErrNotFound
}

// GetBook loads a book by any identifier in key.
func (m *MemoryStore) GetBook(ctx context.Context, key BookKey) (*models.Record, error) {
	if key.IsZero() {
		return nil, ErrNotFound
	}
	id, err := m.resolveBookID(key)
	if err != nil {
		return nil, err
	}
	var rec models.Record
	if err := m.getJSON(bookKey(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertBook writes rec and its identifier indexes.
func (m *MemoryStore) UpsertBook(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil book record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *rec
	key := KeyFromRecord(&out)
	if key.ID == "" {
		if id, err := m.resolveBookID(key); err == nil {
			out.ID = models.String(id)
		} else {
			out.ID = models.String(ulid.Make().String())
		}
		key.ID = *out.ID
	}
	if err := m.setJSON(bookKey(key.ID), &out); err != nil {
		return nil, err
	}
	for _, idx := range bookIndexKeys(key) {
		m.kv.Set(string(idx), []byte(key.ID))
	}
	return &out, nil
}

// ListBooks returns up to limit stored books in id order.
func (m *MemoryStore) ListBooks(ctx context.Context, limit int) ([]models.Record, error) {
	var out []models.Record
	for _, k := range m.kv.Keys(prefixBook) {
		var rec models.Record
		if err := m.getJSON([]byte(k), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetAudiobookCache loads a cached audiobook regardless of expiry.
func (m *MemoryStore) GetAudiobookCache(ctx context.Context, audiobookID string) (*models.CacheEntry, error) {
	var e models.CacheEntry
	if err := m.getJSON(audiobookKey(audiobookID), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertAudiobookCache replaces the cached entry for entry.AudiobookID.
func (m *MemoryStore) UpsertAudiobookCache(ctx context.Context, entry *models.CacheEntry) error {
	if entry == nil || entry.AudiobookID == "" {
		return fmt.Errorf("audiobook cache entry requires an id")
	}
	return m.setJSON(audiobookKey(entry.AudiobookID), entry)
}

// GetCredential loads the credential in slot.
func (m *MemoryStore) GetCredential(ctx context.Context, slot string) (*models.Credential, error) {
	var c models.Credential
	if err := m.getJSON(credentialKey(slot), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCredential replaces the credential in cred.Slot.
func (m *MemoryStore) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	if cred == nil || cred.Slot == "" {
		return fmt.Errorf("credential requires a slot")
	}
	return m.setJSON(credentialKey(cred.Slot), cred)
}

// AddDeadline stores a new deadline submission.
func (m *MemoryStore) AddDeadline(ctx context.Context, d *models.Deadline) (*models.Deadline, error) {
	out, err := prepareDeadline(d)
	if err != nil {
		return nil, err
	}
	if err := m.setJSON([]byte(deadlinePrefix(out.EntityID, out.Format)+out.ID), out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDeadlines returns the submissions for entityID and format in creation order.
func (m *MemoryStore) ListDeadlines(ctx context.Context, entityID, format string) ([]models.Deadline, error) {
	var out []models.Deadline
	for _, k := range m.kv.Keys(deadlinePrefix(entityID, format)) {
		var d models.Deadline
		if err := m.getJSON([]byte(k), &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
