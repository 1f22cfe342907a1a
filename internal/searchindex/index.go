// file: internal/searchindex/index.go
// version: 1.0.0
// guid: 8a225b1a-7342-4ba8-840c-8a9a80faff7f

// Package searchindex keeps an in-memory full-text index of cached books so
// that book searches can include records the service has already resolved.
package searchindex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/models"
)

// DefaultLimit is the number of hits returned per search.
const DefaultLimit = 10

// Index is a bleve memory-only index over book records.
type Index struct {
	mu      sync.RWMutex
	idx     bleve.Index
	records map[string]models.Record
	limit   int
}

// New creates an empty index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{idx: idx, records: make(map[string]models.Record), limit: DefaultLimit}, nil
}

// Name returns the display name for this search source.
func (i *Index) Name() string {
	return "Local index"
}

func docID(rec *models.Record) string {
	if rec.ID != nil && *rec.ID != "" {
		return *rec.ID
	}
	return strings.ToLower(rec.TitleOrEmpty() + "|" + rec.PrimaryAuthor())
}

// Add indexes rec, replacing any previous version with the same id.
func (i *Index) Add(rec *models.Record) error {
	if rec == nil || rec.TitleOrEmpty() == "" {
		return nil
	}
	doc := map[string]interface{}{
		"title":   rec.TitleOrEmpty(),
		"authors": strings.Join(rec.Authors, " "),
	}
	if rec.Series != nil {
		doc["series"] = rec.Series.Name
	}
	id := docID(rec)

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.idx.Index(id, doc); err != nil {
		return fmt.Errorf("failed to index %s: %w", id, err)
	}
	i.records[id] = *rec
	return nil
}

// Load indexes up to limit books from store. limit <= 0 loads all.
func (i *Index) Load(ctx context.Context, store database.Store, limit int) (int, error) {
	books, err := store.ListBooks(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list cached books: %w", err)
	}
	n := 0
	for k := range books {
		if err := i.Add(&books[k]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Len returns the number of indexed records.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// SearchBooks matches text against titles, authors and series names,
// tolerating one-character typos.
func (i *Index) SearchBooks(ctx context.Context, text string) ([]models.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	fields := map[string]float64{"title": 2, "authors": 1, "series": 1}
	var queries []query.Query
	for field, boost := range fields {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(field)
		mq.SetFuzziness(1)
		mq.SetBoost(boost)
		queries = append(queries, mq)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(queries...), i.limit, 0, false)

	i.mu.RLock()
	defer i.mu.RUnlock()
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	out := make([]models.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if rec, ok := i.records[hit.ID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.idx.Close()
}
