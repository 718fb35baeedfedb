package repository

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Merge deep-merges patch into base and returns a new Document. Nested objects merge
// key by key; scalars and arrays in patch replace the base value. Keys absent from
// patch are never dropped.
func Merge(base, patch Document) Document {
	out := cloneMap(base)
	for k, pv := range patch {
		pm, patchIsMap := asMap(pv)
		bm, baseIsMap := asMap(out[k])
		if patchIsMap && baseIsMap {
			out[k] = map[string]any(Merge(bm, pm))
			continue
		}
		out[k] = cloneValue(pv)
	}
	return out
}

// Lookup resolves a dotted path such as "profile.industry" or "tasks.0.id".
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case Document:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, ok := parseIndex(part)
			if !ok || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Matches reports whether every filter path equals the document value. The filter must
// already be normalized (see Normalize) so numeric types line up.
func Matches(doc Document, filter Filter) bool {
	for path, want := range filter {
		got, ok := Lookup(doc, path)
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// NormalizeFilter converts filter values into their stored JSON shape.
func NormalizeFilter(filter Filter) (Filter, error) {
	out := make(Filter, len(filter))
	for k, v := range filter {
		nv, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

// Expand turns dotted filter keys into nested objects: {"a.b": 1} -> {"a": {"b": 1}}.
func Expand(filter Filter) Document {
	out := Document{}
	for path, v := range filter {
		parts := strings.Split(path, ".")
		node := map[string]any(out)
		for _, p := range parts[:len(parts)-1] {
			next, ok := node[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[p] = next
			}
			node = next
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// SortDocuments orders docs in place by the given fields.
func SortDocuments(docs []Document, fields []Sort) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			a, _ := Lookup(docs[i], f.Field)
			b, _ := Lookup(docs[j], f.Field)
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if f.Order == Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return typeRank(a) - typeRank(b)
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv, ok := b.(string)
		if !ok {
			return typeRank(a) - typeRank(b)
		}
		// RFC3339 strings with trimmed fractions do not sort lexically.
		at, aErr := time.Parse(time.RFC3339Nano, av)
		bt, bErr := time.Parse(time.RFC3339Nano, bv)
		if aErr == nil && bErr == nil {
			return at.Compare(bt)
		}
		return strings.Compare(av, bv)
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return typeRank(a) - typeRank(b)
		}
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	}
	return typeRank(a) - typeRank(b)
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	default:
		return 4
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return map[string]any(m), true
	}
	return nil, false
}

func cloneMap(m map[string]any) Document {
	out := make(Document, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(cloneMap(t))
	case Document:
		return map[string]any(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}
	return v
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
