package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Memory is an in-process Store used by tests and as the local fallback when
// no remote store is reachable. All operations are safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]json.RawMessage)}
}

func (m *Memory) Get(ctx context.Context, collection, id string, dest any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.collections[collection][id]
	if !ok {
		return shared.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *Memory) Put(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, raw)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, conds ...Where) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.collections[collection]))
	for id := range m.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []json.RawMessage
	for _, id := range ids {
		raw := m.collections[collection][id]
		match, err := matches(raw, conds)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (m *Memory) Batch() Batch {
	return &memoryBatch{store: m}
}

// put assumes m.mu is held.
func (m *Memory) put(collection, id string, raw json.RawMessage) {
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]json.RawMessage)
	}
	m.collections[collection][id] = raw
}

func matches(raw json.RawMessage, conds []Where) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, err
	}
	for _, cond := range conds {
		ok, err := compare(doc[cond.Field], cond.Op, cond.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compare(have any, op Op, want any) (bool, error) {
	if hn, wn, ok := bothNumeric(have, want); ok {
		return compareOrdered(hn, wn, op)
	}
	hs, hOK := have.(string)
	ws, wOK := want.(string)
	if hOK && wOK {
		return compareOrdered(float64(strings.Compare(hs, ws)), 0, op)
	}
	switch op {
	case OpEqual:
		return have == want, nil
	case OpNotEqual:
		return have != want, nil
	default:
		return false, fmt.Errorf("docstore: operator %q unsupported for %T", op, have)
	}
}

func compareOrdered(have, want float64, op Op) (bool, error) {
	switch op {
	case OpEqual:
		return have == want, nil
	case OpNotEqual:
		return have != want, nil
	case OpLess:
		return have < want, nil
	case OpLessOrEqual:
		return have <= want, nil
	case OpGreater:
		return have > want, nil
	case OpGreaterOrEqual:
		return have >= want, nil
	default:
		return false, fmt.Errorf("docstore: unknown operator %q", op)
	}
}

func bothNumeric(have, want any) (float64, float64, bool) {
	hn, hOK := toFloat(have)
	wn, wOK := toFloat(want)
	return hn, wn, hOK && wOK
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

type batchOp struct {
	kind       string // set, update, increment, delete
	collection string
	id         string
	doc        json.RawMessage
	fields     map[string]any
	field      string
	delta      float64
}

type memoryBatch struct {
	store *Memory
	ops   []batchOp
	err   error
}

func (b *memoryBatch) Set(collection, id string, doc any) {
	raw, err := json.Marshal(doc)
	if err != nil {
		b.err = err
		return
	}
	b.ops = append(b.ops, batchOp{kind: "set", collection: collection, id: id, doc: raw})
}

func (b *memoryBatch) Update(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: "update", collection: collection, id: id, fields: fields})
}

func (b *memoryBatch) Increment(collection, id, field string, delta float64) {
	b.ops = append(b.ops, batchOp{kind: "increment", collection: collection, id: id, field: field, delta: delta})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: "delete", collection: collection, id: id})
}

// Commit applies all recorded operations under a single lock, so readers see
// either none or all of the batch.
func (b *memoryBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	// Stage against copies first so a mid-batch failure leaves the store untouched.
	staged := make(map[string]map[string]json.RawMessage)
	read := func(collection, id string) (map[string]any, bool, error) {
		raw, ok := staged[collection][id]
		if !ok {
			raw, ok = b.store.collections[collection][id]
		}
		if !ok || raw == nil {
			return nil, false, nil
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, false, err
		}
		return doc, true, nil
	}
	write := func(collection, id string, raw json.RawMessage) {
		if staged[collection] == nil {
			staged[collection] = make(map[string]json.RawMessage)
		}
		staged[collection][id] = raw
	}
	for _, op := range b.ops {
		switch op.kind {
		case "set":
			write(op.collection, op.id, op.doc)
		case "update":
			doc, ok, err := read(op.collection, op.id)
			if err != nil {
				return err
			}
			if !ok {
				doc = make(map[string]any)
			}
			for k, v := range op.fields {
				doc[k] = v
			}
			raw, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			write(op.collection, op.id, raw)
		case "increment":
			doc, ok, err := read(op.collection, op.id)
			if err != nil {
				return err
			}
			if !ok {
				doc = make(map[string]any)
			}
			current, _ := toFloat(doc[op.field])
			doc[op.field] = current + op.delta
			raw, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			write(op.collection, op.id, raw)
		case "delete":
			write(op.collection, op.id, nil)
		}
	}
	for collection, docs := range staged {
		for id, raw := range docs {
			if raw == nil {
				delete(b.store.collections[collection], id)
				continue
			}
			b.store.put(collection, id, raw)
		}
	}
	return nil
}
