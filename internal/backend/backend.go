// Package backend is the narrow gateway the services use for persistence,
// realtime change feeds and privileged server-side functions.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned when an update or function matched no rows.
	ErrNotFound = errors.New("backend: no matching rows")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("backend: conflicting record")

	// ErrUnknownFunction is returned by InvokeFunction for unregistered names.
	ErrUnknownFunction = errors.New("backend: unknown function")

	// ErrInvalidIdentifier is returned for table or column names that are not plain identifiers.
	ErrInvalidIdentifier = errors.New("backend: invalid identifier")
)

// ChangeType is the kind of write that produced a change event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// Change is a realtime event emitted after a committed write.
type Change struct {
	Table  string     `json:"table"`
	Type   ChangeType `json:"type"`
	Record Record     `json:"record"`
}

// Filter selects rows by column equality. A slice value matches any of its elements.
type Filter map[string]any

// Bus carries change events between writers and subscribers.
type Bus interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, table string) (<-chan Change, func(), error)
}

// Function is a privileged server-side operation. It always runs inside a
// transaction and receives the transactional backend.
type Function func(ctx context.Context, tx Backend, payload Record) (Record, error)

// Backend is the gateway contract shared by the Postgres and in-memory stores.
type Backend interface {
	// Query returns the rows of table matching filter.
	Query(ctx context.Context, table string, filter Filter, opts ...QueryOption) ([]Record, error)

	// Insert stores rec and returns the stored row.
	Insert(ctx context.Context, table string, rec Record) (Record, error)

	// Update applies patch to every row matching filter and returns the
	// updated rows. It returns ErrNotFound when nothing matched.
	Update(ctx context.Context, table string, filter Filter, patch Record) ([]Record, error)

	// Subscribe calls onChange for every change to table whose record matches
	// filter, until the returned unsubscribe func is called or ctx ends.
	Subscribe(ctx context.Context, table string, filter Filter, onChange func(Change)) (func(), error)

	// InvokeFunction runs a registered function by name.
	InvokeFunction(ctx context.Context, name string, payload Record) (Record, error)

	// WithinTx runs fn in a transaction. Nested calls reuse the outer transaction.
	WithinTx(ctx context.Context, fn func(tx Backend) error) error
}

// QueryOptions are the optional parts of a query.
type QueryOptions struct {
	OrderBy   string
	Desc      bool
	Limit     uint64
	ForUpdate bool
}

// QueryOption configures a query.
type QueryOption func(*QueryOptions)

// OrderBy sorts results by column.
func OrderBy(column string, desc bool) QueryOption {
	return func(o *QueryOptions) {
		o.OrderBy = column
		o.Desc = desc
	}
}

// Limit caps the number of returned rows.
func Limit(n uint64) QueryOption {
	return func(o *QueryOptions) { o.Limit = n }
}

// ForUpdate locks the selected rows until the surrounding transaction ends.
func ForUpdate() QueryOption {
	return func(o *QueryOptions) { o.ForUpdate = true }
}

func buildOptions(opts []QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Registry holds the named functions a backend can invoke.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

// NewRegistry creates an empty function registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Function)}
}

// Register adds fn under name, replacing any previous registration.
func (r *Registry) Register(name string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return fn, nil
}

// subscribe adapts a bus channel to a filtered callback.
func subscribe(ctx context.Context, bus Bus, table string, filter Filter, onChange func(Change)) (func(), error) {
	if bus == nil {
		return nil, errors.New("backend: realtime bus not configured")
	}
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch, unsubscribe, err := bus.Subscribe(subCtx, table)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to %s: %w", table, err)
	}

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case change, ok := <-ch:
				if !ok {
					return
				}
				if filter.Matches(change.Record) {
					onChange(change)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			unsubscribe()
		})
	}, nil
}
