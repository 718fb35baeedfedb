package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	tableDocuments = "documents"

	colCollection = "collection"
	colID         = "id"
	colBody       = "body"
	colVersion    = "version"
	colUpdatedAt  = "updated_at"
)

var dialect = goqu.Dialect("postgres")

// DocumentStore keeps every collection in one jsonb table keyed by (collection, id).
// The body carries _id and _version as well, so documents read back the same as from Bolt.
type DocumentStore struct {
	pool *pgxpool.Pool
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) InsertOne(ctx context.Context, collection string, doc repository.Document) error {
	normalized, err := repository.PrepareInsert(doc)
	if err != nil {
		return err
	}
	err = s.insert(ctx, s.pool, collection, normalized, 1)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateKey
	}
	return err
}

func (s *DocumentStore) FindOne(ctx context.Context, collection string, filter repository.Filter) (repository.Document, error) {
	docs, err := s.FindMany(ctx, collection, filter, repository.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return docs[0], nil
}

func (s *DocumentStore) FindMany(ctx context.Context, collection string, filter repository.Filter, opts repository.FindOptions) ([]repository.Document, error) {
	where, err := conditions(collection, filter)
	if err != nil {
		return nil, err
	}
	query := dialect.From(tableDocuments).Select(colBody).Where(where...)
	for _, srt := range opts.Sort {
		key := goqu.L(colBody+" #> ?::text[]", jsonPath(srt.Field))
		if srt.Order == repository.Descending {
			query = query.OrderAppend(key.Desc())
		} else {
			query = query.OrderAppend(key.Asc())
		}
	}
	if opts.Limit > 0 {
		query = query.Limit(uint(opts.Limit))
	}

	sql, args, err := query.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []repository.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc repository.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateOne locks the first matching row, merges patch in Go and writes it back in the
// same transaction as opts.Inserts. A racing upsert that loses the insert is retried once
// as an update.
func (s *DocumentStore) UpdateOne(ctx context.Context, collection string, filter repository.Filter, patch repository.Document, opts repository.UpdateOptions) error {
	normalizedFilter, err := repository.NormalizeFilter(filter)
	if err != nil {
		return err
	}
	normalizedPatch, err := repository.NormalizeMap(patch)
	if err != nil {
		return err
	}
	delete(normalizedPatch, repository.VersionField)
	inserts := make([]repository.Insert, 0, len(opts.Inserts))
	for _, in := range opts.Inserts {
		doc, err := repository.PrepareInsert(in.Doc)
		if err != nil {
			return err
		}
		inserts = append(inserts, repository.Insert{Collection: in.Collection, Doc: doc})
	}

	for attempt := 0; ; attempt++ {
		// updateTx drops _id from the patch it is given, so each attempt gets a copy.
		patchCopy := repository.Merge(repository.Document{}, normalizedPatch)
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if err := s.updateTx(ctx, tx, collection, normalizedFilter, patchCopy, opts); err != nil {
				return err
			}
			for _, in := range inserts {
				if err := s.insert(ctx, tx, in.Collection, in.Doc, 1); err != nil {
					return err
				}
			}
			return nil
		})
		if !isUniqueViolation(err) {
			return err
		}
		if opts.ExpectVersion != nil {
			return domain.ErrVersionConflict
		}
		if attempt > 0 {
			return domain.ErrDuplicateKey
		}
	}
}

func (s *DocumentStore) updateTx(ctx context.Context, tx pgx.Tx, collection string, filter repository.Filter, patch repository.Document, opts repository.UpdateOptions) error {
	where, err := conditions(collection, filter)
	if err != nil {
		return err
	}
	sql, args, err := dialect.From(tableDocuments).
		Select(colBody).
		Where(where...).
		Limit(1).
		ForUpdate(exp.Wait).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build lock query: %w", err)
	}

	var current repository.Document
	var raw []byte
	err = tx.QueryRow(ctx, sql, args...).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}
	}

	var version int64
	if current != nil {
		version = current.Version()
	}
	if opts.ExpectVersion != nil && *opts.ExpectVersion != version {
		return domain.ErrVersionConflict
	}

	if current == nil {
		if !opts.Upsert {
			return domain.ErrDocumentNotFound
		}
		seed := repository.Expand(filter)
		if id := patch.ID(); id != "" {
			seed[repository.IDField] = id
		}
		if seed.ID() == "" {
			seed[repository.IDField] = uuid.NewString()
		}
		merged := repository.Merge(seed, patch)
		merged[repository.VersionField] = float64(1)
		return s.insert(ctx, tx, collection, merged, 1)
	}

	delete(patch, repository.IDField)
	merged := repository.Merge(current, patch)
	merged[repository.VersionField] = float64(version + 1)
	body, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	sql, args, err = dialect.Update(tableDocuments).
		Set(goqu.Record{
			colBody:      string(body),
			colVersion:   version + 1,
			colUpdatedAt: goqu.L("NOW()"),
		}).
		Where(goqu.C(colCollection).Eq(collection), goqu.C(colID).Eq(current.ID())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}
	_, err = tx.Exec(ctx, sql, args...)
	return err
}

func (s *DocumentStore) Distinct(ctx context.Context, collection string, field string) ([]string, error) {
	value := goqu.L(colBody+" #>> ?::text[]", jsonPath(field))
	sql, args, err := dialect.From(tableDocuments).
		Select(value).
		Distinct().
		Where(
			goqu.C(colCollection).Eq(collection),
			goqu.L(colBody+" #>> ?::text[] <> ''", jsonPath(field)),
			goqu.L("jsonb_typeof("+colBody+" #> ?::text[]) = 'string'", jsonPath(field)),
		).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build distinct query: %w", err)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres pool is not initialized")
	}
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool belongs to the caller.
func (s *DocumentStore) Close() error {
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *DocumentStore) insert(ctx context.Context, db execer, collection string, doc repository.Document, version int64) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	sql, args, err := dialect.Insert(tableDocuments).
		Rows(goqu.Record{
			colCollection: collection,
			colID:         doc.ID(),
			colBody:       string(body),
			colVersion:    version,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	_, err = db.Exec(ctx, sql, args...)
	return err
}

// conditions translates an equality filter into jsonb containment, one clause per path.
// A nil value matches a missing or null field.
func conditions(collection string, filter repository.Filter) ([]exp.Expression, error) {
	normalized, err := repository.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	where := []exp.Expression{goqu.C(colCollection).Eq(collection)}
	for path, want := range normalized {
		if path == repository.IDField {
			if id, ok := want.(string); ok {
				where = append(where, goqu.C(colID).Eq(id))
				continue
			}
		}
		if want == nil {
			where = append(where, goqu.L("COALESCE("+colBody+" #> ?::text[], 'null'::jsonb) = 'null'::jsonb", jsonPath(path)))
			continue
		}
		fragment, err := json.Marshal(repository.Expand(repository.Filter{path: want}))
		if err != nil {
			return nil, err
		}
		where = append(where, goqu.L(colBody+" @> ?::jsonb", string(fragment)))
	}
	return where, nil
}
