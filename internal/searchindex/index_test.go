// file: internal/searchindex/index_test.go
// version: 1.0.0
// guid: 3c38d9dd-49ad-47fd-8144-9358c99b2b16

package searchindex

import (
	"context"
	"testing"

	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_SearchBooks(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add(&models.Record{ID: models.String("1"), Title: models.String("Dune"), Authors: []string{"Frank Herbert"}}))
	require.NoError(t, idx.Add(&models.Record{ID: models.String("2"), Title: models.String("Neuromancer"), Authors: []string{"William Gibson"}}))
	require.NoError(t, idx.Add(&models.Record{Title: models.String("")}))
	assert.Equal(t, 2, idx.Len())

	ctx := context.Background()
	recs, err := idx.SearchBooks(ctx, "dune")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1", *recs[0].ID)

	recs, err = idx.SearchBooks(ctx, "gibsen")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Neuromancer", *recs[0].Title)

	recs, err = idx.SearchBooks(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestIndex_AddReplaces(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add(&models.Record{ID: models.String("1"), Title: models.String("Dune")}))
	require.NoError(t, idx.Add(&models.Record{ID: models.String("1"), Title: models.String("Dune"), PageCount: models.Int(412)}))
	assert.Equal(t, 1, idx.Len())

	recs, err := idx.SearchBooks(context.Background(), "dune")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 412, *recs[0].PageCount)
}

func TestIndex_Load(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	_, err := store.UpsertBook(ctx, &models.Record{Title: models.String("Hyperion"), Authors: []string{"Dan Simmons"}})
	require.NoError(t, err)

	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Load(ctx, store, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := idx.SearchBooks(ctx, "simmons")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
