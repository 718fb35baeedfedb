// Package render substitutes {{path}} tokens in notification templates.
//
// Values come from a Context. A token whose path cannot be resolved to a scalar
// is left in the output untouched, so a half-filled template is visible rather
// than silently blank.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is used for time.Time values.
const DateLayout = "2006-01-02"

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+(?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

// Context resolves a dotted path to its display string.
type Context interface {
	Lookup(path string) (string, bool)
}

// Fields is a flat, typed accessor map: each key is a full path.
type Fields map[string]string

func (f Fields) Lookup(path string) (string, bool) {
	v, ok := f[path]
	return v, ok
}

// Data resolves paths by walking nested maps and slices.
type Data map[string]any

func (d Data) Lookup(path string) (string, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return "", false
			}
			cur = v
		case Data:
			v, ok := node[part]
			if !ok {
				return "", false
			}
			cur = v
		case map[string]string:
			v, ok := node[part]
			if !ok {
				return "", false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}
			cur = node[idx]
		case []string:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}
			cur = node[idx]
		default:
			return "", false
		}
	}
	return scalar(cur)
}

// Render replaces every resolvable token in tmpl.
func Render(tmpl string, ctx Context) string {
	if ctx == nil || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]
		if v, ok := ctx.Lookup(path); ok {
			return v
		}
		return token
	})
}

// RenderValue renders strings and walks maps and slices; other values are returned as is.
func RenderValue(v any, ctx Context) any {
	switch t := v.(type) {
	case string:
		return Render(t, ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = RenderValue(val, ctx)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = RenderValue(val, ctx)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = Render(val, ctx)
		}
		return out
	}
	return v
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case time.Time:
		return t.Format(DateLayout), true
	case *time.Time:
		if t == nil {
			return "", false
		}
		return t.Format(DateLayout), true
	case fmt.Stringer:
		return t.String(), true
	}
	return "", false
}
