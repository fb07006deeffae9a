package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Backend. Transactions are serialised and roll back
// by restoring a snapshot of every table.
type Memory struct {
	mu       sync.Mutex
	tables   map[string][]Record
	bus      Bus
	registry *Registry
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory(bus Bus, registry *Registry) *Memory {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Memory{
		tables:   make(map[string][]Record),
		bus:      bus,
		registry: registry,
	}
}

// Registry returns the function registry used by InvokeFunction.
func (m *Memory) Registry() *Registry {
	return m.registry
}

func (m *Memory) Query(ctx context.Context, table string, filter Filter, opts ...QueryOption) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return queryTable(m.tables, table, filter, buildOptions(opts))
}

func (m *Memory) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	m.mu.Lock()
	out, err := insertRow(m.tables, table, rec)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	m.publish(ctx, Change{Table: table, Type: ChangeInsert, Record: out})
	return out, nil
}

func (m *Memory) Update(ctx context.Context, table string, filter Filter, patch Record) ([]Record, error) {
	m.mu.Lock()
	out, err := updateRows(m.tables, table, filter, patch)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, rec := range out {
		m.publish(ctx, Change{Table: table, Type: ChangeUpdate, Record: rec})
	}
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, table string, filter Filter, onChange func(Change)) (func(), error) {
	return subscribe(ctx, m.bus, table, filter, onChange)
}

func (m *Memory) InvokeFunction(ctx context.Context, name string, payload Record) (Record, error) {
	fn, err := m.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	var out Record
	err = m.WithinTx(ctx, func(tx Backend) error {
		var err error
		out, err = fn(ctx, tx, payload)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}
	return out, nil
}

// WithinTx holds the store lock for the whole of fn. fn must only use the
// Backend it is given.
func (m *Memory) WithinTx(ctx context.Context, fn func(tx Backend) error) error {
	m.mu.Lock()
	snapshot := cloneTables(m.tables)
	tx := &memoryTx{parent: m, tables: m.tables}

	if err := fn(tx); err != nil {
		m.tables = snapshot
		m.mu.Unlock()
		return err
	}
	m.tables = tx.tables
	m.mu.Unlock()

	for _, change := range tx.pending {
		m.publish(ctx, change)
	}
	return nil
}

func (m *Memory) publish(ctx context.Context, change Change) {
	if m.bus == nil {
		return
	}
	// Delivery is best effort, as with the Postgres backend.
	_ = m.bus.Publish(ctx, change)
}

// memoryTx is the Backend handed to transactional callbacks. The parent lock
// is already held.
type memoryTx struct {
	parent  *Memory
	tables  map[string][]Record
	pending []Change
}

func (t *memoryTx) Query(ctx context.Context, table string, filter Filter, opts ...QueryOption) ([]Record, error) {
	return queryTable(t.tables, table, filter, buildOptions(opts))
}

func (t *memoryTx) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	out, err := insertRow(t.tables, table, rec)
	if err != nil {
		return nil, err
	}
	t.pending = append(t.pending, Change{Table: table, Type: ChangeInsert, Record: out})
	return out, nil
}

func (t *memoryTx) Update(ctx context.Context, table string, filter Filter, patch Record) ([]Record, error) {
	out, err := updateRows(t.tables, table, filter, patch)
	if err != nil {
		return nil, err
	}
	for _, rec := range out {
		t.pending = append(t.pending, Change{Table: table, Type: ChangeUpdate, Record: rec})
	}
	return out, nil
}

func (t *memoryTx) Subscribe(ctx context.Context, table string, filter Filter, onChange func(Change)) (func(), error) {
	return subscribe(ctx, t.parent.bus, table, filter, onChange)
}

func (t *memoryTx) InvokeFunction(ctx context.Context, name string, payload Record) (Record, error) {
	fn, err := t.parent.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return fn(ctx, t, payload)
}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(tx Backend) error) error {
	return fn(t)
}

func queryTable(tables map[string][]Record, table string, filter Filter, o QueryOptions) ([]Record, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	if err := validateColumns(filter); err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range tables[table] {
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}

	if o.OrderBy != "" {
		if err := validateIdentifier(o.OrderBy); err != nil {
			return nil, err
		}
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i][o.OrderBy], out[j][o.OrderBy])
			if o.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if o.Limit > 0 && uint64(len(out)) > o.Limit {
		out = out[:o.Limit]
	}
	return out, nil
}

func insertRow(tables map[string][]Record, table string, rec Record) (Record, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	if err := validateColumns(rec); err != nil {
		return nil, err
	}

	row := normalizeRecord(rec)
	if row.IsNull("id") {
		row["id"] = uuid.NewString()
	}
	id := row.String("id")
	for _, existing := range tables[table] {
		if existing.String("id") == id {
			return nil, fmt.Errorf("%s: %w: duplicate id %s", table, ErrConflict, id)
		}
	}

	tables[table] = append(tables[table], row)
	return row.Clone(), nil
}

func updateRows(tables map[string][]Record, table string, filter Filter, patch Record) ([]Record, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	if err := validateColumns(filter); err != nil {
		return nil, err
	}
	if err := validateColumns(patch); err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return nil, fmt.Errorf("update %s: empty filter", table)
	}

	set := normalizeRecord(patch)
	rows := tables[table]
	var out []Record
	for i, rec := range rows {
		if !filter.Matches(rec) {
			continue
		}
		updated := rec.Clone()
		for k, v := range set {
			updated[k] = v
		}
		rows[i] = updated
		out = append(out, updated.Clone())
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func cloneTables(tables map[string][]Record) map[string][]Record {
	out := make(map[string][]Record, len(tables))
	for name, rows := range tables {
		copied := make([]Record, len(rows))
		copy(copied, rows)
		out[name] = copied
	}
	return out
}
