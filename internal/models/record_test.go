// file: internal/models/record_test.go
// version: 1.1.0
// guid: 65de768c-7cc6-4a71-af70-45530e91356a

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_UnsetFieldsSerializeAsNull(t *testing.T) {
	rec := Record{Title: String("Dune")}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Dune", out["title"])
	v, ok := out["cover_url"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRecord_PrimaryAuthor(t *testing.T) {
	var nilRec *Record
	assert.Equal(t, "", nilRec.PrimaryAuthor())
	assert.Equal(t, "", (&Record{}).PrimaryAuthor())
	assert.Equal(t, "Frank Herbert", (&Record{Authors: []string{"Frank Herbert", "Brian Herbert"}}).PrimaryAuthor())
}

func TestCacheEntry_Usable(t *testing.T) {
	now := time.Now()
	assert.True(t, (&CacheEntry{ExpiresAt: now.Add(time.Minute)}).Usable(now, 0))
	assert.False(t, (&CacheEntry{ExpiresAt: now}).Usable(now, 0))
	assert.True(t, (&CacheEntry{ExpiresAt: now.Add(2 * time.Minute)}).Usable(now, time.Minute))
	assert.False(t, (&CacheEntry{ExpiresAt: now.Add(time.Second)}).Usable(now, time.Minute))
	assert.False(t, (&CacheEntry{ExpiresAt: now.Add(time.Minute)}).Usable(now, time.Minute))
	var missing *CacheEntry
	assert.False(t, missing.Usable(now, 0))
}

func TestStringOrNil(t *testing.T) {
	assert.Nil(t, StringOrNil(""))
	assert.Equal(t, "x", *StringOrNil("x"))
}
