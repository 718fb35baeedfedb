package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	data := Data{
		"name": "ISO9001",
		"date": "2025-01-01",
		"cert": map[string]any{
			"days":   14,
			"expiry": time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC),
		},
		"markets": []any{"DE", "FR"},
		"ratio":   0.25,
		"empty":   nil,
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "title", tmpl: "{{name}} expiring", want: "ISO9001 expiring"},
		{name: "message", tmpl: "{{name}} expires on {{date}}", want: "ISO9001 expires on 2025-01-01"},
		{name: "nested path", tmpl: "{{cert.days}} days left", want: "14 days left"},
		{name: "time formatting", tmpl: "until {{ cert.expiry }}", want: "until 2025-06-30"},
		{name: "slice index", tmpl: "{{markets.1}}", want: "FR"},
		{name: "float", tmpl: "{{ratio}}", want: "0.25"},
		{name: "missing path stays literal", tmpl: "hello {{owner.name}}", want: "hello {{owner.name}}"},
		{name: "nil stays literal", tmpl: "{{empty}}", want: "{{empty}}"},
		{name: "non scalar stays literal", tmpl: "{{cert}}", want: "{{cert}}"},
		{name: "no tokens", tmpl: "plain text", want: "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.tmpl, data))
		})
	}
}

func TestRenderWithFields(t *testing.T) {
	ctx := Fields{"certification.name": "HACCP"}
	assert.Equal(t, "HACCP renewal", Render("{{certification.name}} renewal", ctx))
	assert.Equal(t, "{{x}}", Render("{{x}}", ctx))
	assert.Equal(t, "{{x}}", Render("{{x}}", nil))
}

func TestRenderValue(t *testing.T) {
	data := Data{"id": "cert-1", "country": "DE"}
	in := map[string]any{
		"certification_id": "{{id}}",
		"count":            3,
		"nested":           map[string]any{"market": "{{country}}"},
		"list":             []any{"{{country}}", 1},
	}

	out := RenderValue(in, data).(map[string]any)
	assert.Equal(t, "cert-1", out["certification_id"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, map[string]any{"market": "DE"}, out["nested"])
	assert.Equal(t, []any{"DE", 1}, out["list"])
	assert.Equal(t, "{{id}}", in["certification_id"])
}
