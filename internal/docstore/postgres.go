package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Postgres implements Store on a single jsonb documents table. Field queries
// compare against `doc->>field`, casting to numeric when the value is a
// number, so documents stay schemaless while remaining queryable.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the documents table when missing.
func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	id text NOT NULL,
	doc jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`)
	if err != nil {
		return &shared.RemoteError{Op: "migrate", Err: err}
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_documents_doc ON documents USING gin (doc)`)
	if err != nil {
		return &shared.RemoteError{Op: "migrate", Err: err}
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, collection, id string, dest any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return &shared.RemoteError{Op: "get", Err: err}
	}
	return json.Unmarshal(raw, dest)
}

func (s *Postgres) Put(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO documents (collection, id, doc) VALUES ($1,$2,$3)
ON CONFLICT (collection, id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=now()`, collection, id, raw)
	if err != nil {
		return &shared.RemoteError{Op: "put", Err: err}
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return &shared.RemoteError{Op: "delete", Err: err}
	}
	return nil
}

func (s *Postgres) Query(ctx context.Context, collection string, conds ...Where) ([]json.RawMessage, error) {
	sql := `SELECT doc FROM documents WHERE collection=$1`
	args := []any{collection}
	for _, cond := range conds {
		clause, arg, err := whereClause(cond, len(args)+1)
		if err != nil {
			return nil, err
		}
		sql += " AND " + clause
		args = append(args, arg)
	}
	sql += ` ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &shared.RemoteError{Op: "query", Err: err}
	}
	defer rows.Close()
	var out []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, &shared.RemoteError{Op: "query", Err: err}
		}
		out = append(out, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, &shared.RemoteError{Op: "query", Err: err}
	}
	return out, nil
}

func (s *Postgres) Batch() Batch {
	return &postgresBatch{store: s}
}

var sqlOps = map[Op]string{
	OpEqual:          "=",
	OpNotEqual:       "<>",
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpGreater:        ">",
	OpGreaterOrEqual: ">=",
}

func whereClause(cond Where, argPos int) (string, any, error) {
	sqlOp, ok := sqlOps[cond.Op]
	if !ok {
		return "", nil, fmt.Errorf("docstore: unknown operator %q", cond.Op)
	}
	field := quoteField(cond.Field)
	if n, ok := toFloat(cond.Value); ok {
		return fmt.Sprintf("(doc->>%s)::numeric %s $%d", field, sqlOp, argPos), n, nil
	}
	if b, ok := cond.Value.(bool); ok {
		return fmt.Sprintf("(doc->>%s)::boolean %s $%d", field, sqlOp, argPos), b, nil
	}
	return fmt.Sprintf("doc->>%s %s $%d", field, sqlOp, argPos), cond.Value, nil
}

// quoteField embeds the field name as a SQL string literal. Field names come
// from code, not callers, but escaping keeps the store safe regardless.
func quoteField(field string) string {
	out := make([]rune, 0, len(field)+2)
	out = append(out, '\'')
	for _, r := range field {
		if r == '\'' {
			out = append(out, '\'')
		}
		out = append(out, r)
	}
	out = append(out, '\'')
	return string(out)
}

type postgresBatch struct {
	store *Postgres
	ops   []batchOp
	err   error
}

func (b *postgresBatch) Set(collection, id string, doc any) {
	raw, err := json.Marshal(doc)
	if err != nil {
		b.err = err
		return
	}
	b.ops = append(b.ops, batchOp{kind: "set", collection: collection, id: id, doc: raw})
}

func (b *postgresBatch) Update(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: "update", collection: collection, id: id, fields: fields})
}

func (b *postgresBatch) Increment(collection, id, field string, delta float64) {
	b.ops = append(b.ops, batchOp{kind: "increment", collection: collection, id: id, field: field, delta: delta})
}

func (b *postgresBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: "delete", collection: collection, id: id})
}

// Commit runs every operation inside one transaction so the batch is
// all-or-nothing, matching the remote store contract.
func (b *postgresBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	tx, err := b.store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &shared.RemoteError{Op: "batch", Err: err}
	}
	for _, op := range b.ops {
		if err := applyOp(ctx, tx, op); err != nil {
			_ = tx.Rollback(ctx)
			return &shared.RemoteError{Op: "batch", Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &shared.RemoteError{Op: "batch", Err: err}
	}
	return nil
}

func applyOp(ctx context.Context, tx pgx.Tx, op batchOp) error {
	switch op.kind {
	case "set":
		_, err := tx.Exec(ctx, `INSERT INTO documents (collection, id, doc) VALUES ($1,$2,$3)
ON CONFLICT (collection, id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=now()`, op.collection, op.id, op.doc)
		return err
	case "update":
		patch, err := json.Marshal(op.fields)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO documents (collection, id, doc) VALUES ($1,$2,$3)
ON CONFLICT (collection, id) DO UPDATE SET doc=documents.doc || EXCLUDED.doc, updated_at=now()`, op.collection, op.id, patch)
		return err
	case "increment":
		seed, err := json.Marshal(map[string]any{op.field: op.delta})
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO documents (collection, id, doc) VALUES ($1,$2,$3)
ON CONFLICT (collection, id) DO UPDATE SET
	doc = jsonb_set(documents.doc, ARRAY[$4], to_jsonb(COALESCE((documents.doc->>$4)::float8, 0) + $5), true),
	updated_at = now()`, op.collection, op.id, seed, op.field, op.delta)
		return err
	case "delete":
		_, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, op.collection, op.id)
		return err
	default:
		return fmt.Errorf("docstore: unknown batch op %q", op.kind)
	}
}
