// Package docstore defines the document store contract the ledger core is
// written against: keyed get/put/delete, query-by-field, and an all-or-nothing
// batch primitive with a field-level atomic increment.
package docstore

import (
	"context"
	"encoding/json"
)

// Op enumerates the comparison operators supported by Query.
type Op string

const (
	OpEqual          Op = "=="
	OpNotEqual       Op = "!="
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
	OpGreater        Op = ">"
	OpGreaterOrEqual Op = ">="
)

// Where is a single field comparison applied by Query.
type Where struct {
	Field string
	Op    Op
	Value any
}

// Eq is shorthand for an equality condition.
func Eq(field string, value any) Where {
	return Where{Field: field, Op: OpEqual, Value: value}
}

// Store is the remote document store contract. Documents are JSON objects
// addressed by (collection, id). Put is an upsert; Get fills dest via JSON
// decoding and returns shared.ErrNotFound for a missing document.
type Store interface {
	Get(ctx context.Context, collection, id string, dest any) error
	Put(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, conds ...Where) ([]json.RawMessage, error)
	Batch() Batch
}

// Batch accumulates writes that Commit applies atomically. Set replaces the
// whole document, Update merges the given fields (creating the document when
// missing), and Increment atomically adds delta to a numeric field, treating
// a missing document or field as zero.
type Batch interface {
	Set(collection, id string, doc any)
	Update(collection, id string, fields map[string]any)
	Increment(collection, id, field string, delta float64)
	Delete(collection, id string)
	Commit(ctx context.Context) error
}

// DecodeAll unmarshals every raw query result into T, skipping nothing.
func DecodeAll[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
