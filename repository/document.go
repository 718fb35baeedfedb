package repository

import (
	"context"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/fastygo/exportflow/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reserved document fields managed by the stores.
const (
	IDField      = "_id"
	VersionField = "_version"
	SortField    = "sort_key"
)

// Document is a JSON-shaped record. Numbers decode as float64.
type Document map[string]any

// Filter matches documents by equality on dotted field paths, e.g. {"profile.industry": "food"}.
type Filter map[string]any

type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

type Sort struct {
	Field string
	Order SortOrder
}

type FindOptions struct {
	Sort  []Sort
	Limit int
}

// UpdateOptions controls UpdateOne. ExpectVersion, when set, rejects the write with
// domain.ErrVersionConflict unless the stored _version matches (0 means "must not exist").
// Inserts are written in the same transaction as the update: either all land or none do.
type UpdateOptions struct {
	Upsert        bool
	ExpectVersion *int64
	Inserts       []Insert
}

// Insert is a new document that commits together with an update.
type Insert struct {
	Collection string
	Doc        Document
}

// DocumentStore is the persistence collaborator consumed by the core.
type DocumentStore interface {
	InsertOne(ctx context.Context, collection string, doc Document) error
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)
	FindMany(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error)
	UpdateOne(ctx context.Context, collection string, filter Filter, patch Document, opts UpdateOptions) error
	Distinct(ctx context.Context, collection string, field string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// ToDocument converts a JSON-tagged value into a Document.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrInvalidPayload
	}
	return doc, nil
}

// FromDocument decodes a Document into a JSON-tagged value. Reserved fields are ignored.
func FromDocument(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Normalize round-trips v through JSON so Go values compare equal to stored ones.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeMap is Normalize for maps; a nil map normalizes to an empty Document.
func NormalizeMap(m map[string]any) (Document, error) {
	if m == nil {
		return Document{}, nil
	}
	out, err := ToDocument(m)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PrepareInsert normalizes doc for a first write: it gets an _id when it has none and
// _version 1.
func PrepareInsert(doc Document) (Document, error) {
	if doc == nil {
		return nil, domain.ErrInvalidPayload
	}
	normalized, err := NormalizeMap(doc)
	if err != nil {
		return nil, err
	}
	if normalized.ID() == "" {
		normalized[IDField] = uuid.NewString()
	}
	normalized[VersionField] = float64(1)
	return normalized, nil
}

// Version reads the store-managed version, 0 when absent.
func (d Document) Version() int64 {
	switch v := d[VersionField].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// ID reads the document key.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Int64 returns a pointer to v, handy for UpdateOptions.ExpectVersion.
func Int64(v int64) *int64 {
	return &v
}
