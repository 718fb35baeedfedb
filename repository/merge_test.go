package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	base := Document{
		"profile": map[string]any{
			"name":     "Acme",
			"industry": "food",
			"products": []any{"jam"},
		},
		"export_journey": map[string]any{"stage": "exploration"},
	}

	t.Run("nested maps merge key by key", func(t *testing.T) {
		out := Merge(base, Document{"profile": map[string]any{"industry": "textiles"}})

		profile := out["profile"].(map[string]any)
		assert.Equal(t, "Acme", profile["name"])
		assert.Equal(t, "textiles", profile["industry"])
		assert.Equal(t, []any{"jam"}, profile["products"])
		assert.Equal(t, map[string]any{"stage": "exploration"}, out["export_journey"])
	})

	t.Run("arrays replace wholesale", func(t *testing.T) {
		out := Merge(base, Document{"profile": map[string]any{"products": []any{"tea", "coffee"}}})
		assert.Equal(t, []any{"tea", "coffee"}, out["profile"].(map[string]any)["products"])
	})

	t.Run("scalar replaces map", func(t *testing.T) {
		out := Merge(base, Document{"export_journey": "done"})
		assert.Equal(t, "done", out["export_journey"])
	})

	t.Run("base is not mutated", func(t *testing.T) {
		_ = Merge(base, Document{"profile": map[string]any{"name": "Other"}})
		assert.Equal(t, "Acme", base["profile"].(map[string]any)["name"])
	})
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{"b": "c"},
		"list": []any{
			map[string]any{"id": "x"},
		},
	}

	v, ok := Lookup(doc, "a.b")
	require.True(t, ok)
	assert.Equal(t, "c", v)

	v, ok = Lookup(doc, "list.0.id")
	require.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = Lookup(doc, "list.3.id")
	assert.False(t, ok)

	_, ok = Lookup(doc, "a.missing")
	assert.False(t, ok)
}

func TestMatches(t *testing.T) {
	doc := Document{"business_id": "b1", "read": false, "profile": map[string]any{"industry": "food"}}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty filter", filter: Filter{}, want: true},
		{name: "top level", filter: Filter{"business_id": "b1"}, want: true},
		{name: "dotted path", filter: Filter{"profile.industry": "food"}, want: true},
		{name: "bool", filter: Filter{"read": false}, want: true},
		{name: "mismatch", filter: Filter{"business_id": "b2"}, want: false},
		{name: "missing path", filter: Filter{"missing": "x"}, want: false},
		{name: "nil matches missing", filter: Filter{"missing": nil}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, err := NormalizeFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Matches(doc, normalized))
		})
	}
}

func TestExpand(t *testing.T) {
	out := Expand(Filter{"a.b": "x", "a.c": 1.0, "d": true})
	assert.Equal(t, Document{
		"a": map[string]any{"b": "x", "c": 1.0},
		"d": true,
	}, out)
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"_id": "a", "n": 2.0, "at": "2025-01-01T10:00:00.5Z"},
		{"_id": "b", "n": 3.0, "at": "2025-01-01T10:00:00Z"},
		{"_id": "c", "n": 1.0, "at": "2025-01-01T10:00:01Z"},
	}

	SortDocuments(docs, []Sort{{Field: "n", Order: Descending}})
	assert.Equal(t, []string{"b", "a", "c"}, ids(docs))

	SortDocuments(docs, []Sort{{Field: "at", Order: Ascending}})
	assert.Equal(t, []string{"b", "a", "c"}, ids(docs))
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}
