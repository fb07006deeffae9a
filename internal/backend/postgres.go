package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Postgres implements Backend over database/sql.
type Postgres struct {
	db       *sql.DB
	q        Querier
	builder  sq.StatementBuilderType
	bus      Bus
	registry *Registry
	logger   *zap.Logger

	// pending collects changes made inside a transaction; nil outside one.
	pending *[]Change
}

var _ Backend = (*Postgres)(nil)

// NewPostgres creates a Postgres backend. bus may be nil, in which case
// changes are not published and Subscribe fails.
func NewPostgres(db *sql.DB, bus Bus, registry *Registry, logger *zap.Logger) *Postgres {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{
		db:       db,
		q:        db,
		builder:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		bus:      bus,
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the function registry used by InvokeFunction.
func (p *Postgres) Registry() *Registry {
	return p.registry
}

// Query selects rows from table.
func (p *Postgres) Query(ctx context.Context, table string, filter Filter, opts ...QueryOption) ([]Record, error) {
	stmt, err := p.selectStatement(table, filter, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select on %s: %w", table, err)
	}

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (p *Postgres) selectStatement(table string, filter Filter, o QueryOptions) (sq.SelectBuilder, error) {
	if err := validateIdentifier(table); err != nil {
		return sq.SelectBuilder{}, err
	}
	if err := validateColumns(filter); err != nil {
		return sq.SelectBuilder{}, err
	}

	stmt := p.builder.Select("*").From(table)
	if len(filter) > 0 {
		stmt = stmt.Where(eq(filter))
	}
	if o.OrderBy != "" {
		if err := validateIdentifier(o.OrderBy); err != nil {
			return sq.SelectBuilder{}, err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		stmt = stmt.OrderBy(o.OrderBy + " " + dir)
	}
	if o.Limit > 0 {
		stmt = stmt.Limit(o.Limit)
	}
	if o.ForUpdate {
		stmt = stmt.Suffix("FOR UPDATE")
	}
	return stmt, nil
}

// Insert stores rec in table and returns the stored row.
func (p *Postgres) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	stmt, err := p.insertStatement(table, rec)
	if err != nil {
		return nil, err
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert on %s: %w", table, err)
	}

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError(table, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, mapWriteError(table, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}

	p.emit(ctx, Change{Table: table, Type: ChangeInsert, Record: records[0]})
	return records[0], nil
}

func (p *Postgres) insertStatement(table string, rec Record) (sq.InsertBuilder, error) {
	if err := validateIdentifier(table); err != nil {
		return sq.InsertBuilder{}, err
	}
	if err := validateColumns(rec); err != nil {
		return sq.InsertBuilder{}, err
	}
	if len(rec) == 0 {
		return sq.InsertBuilder{}, fmt.Errorf("insert into %s: empty record", table)
	}

	cols := sortedKeys(rec)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = normalize(rec[c])
	}
	return p.builder.Insert(table).Columns(cols...).Values(vals...).Suffix("RETURNING *"), nil
}

// Update patches the rows of table matching filter.
func (p *Postgres) Update(ctx context.Context, table string, filter Filter, patch Record) ([]Record, error) {
	stmt, err := p.updateStatement(table, filter, patch)
	if err != nil {
		return nil, err
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update on %s: %w", table, err)
	}

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError(table, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, mapWriteError(table, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	for _, rec := range records {
		p.emit(ctx, Change{Table: table, Type: ChangeUpdate, Record: rec})
	}
	return records, nil
}

func (p *Postgres) updateStatement(table string, filter Filter, patch Record) (sq.UpdateBuilder, error) {
	if err := validateIdentifier(table); err != nil {
		return sq.UpdateBuilder{}, err
	}
	if err := validateColumns(filter); err != nil {
		return sq.UpdateBuilder{}, err
	}
	if err := validateColumns(patch); err != nil {
		return sq.UpdateBuilder{}, err
	}
	if len(patch) == 0 {
		return sq.UpdateBuilder{}, fmt.Errorf("update %s: empty patch", table)
	}
	// An unfiltered update is almost always a bug in the caller.
	if len(filter) == 0 {
		return sq.UpdateBuilder{}, fmt.Errorf("update %s: empty filter", table)
	}

	set := make(map[string]any, len(patch))
	for k, v := range patch {
		set[k] = normalize(v)
	}
	return p.builder.Update(table).SetMap(set).Where(eq(filter)).Suffix("RETURNING *"), nil
}

// Subscribe delivers committed changes to table that match filter.
func (p *Postgres) Subscribe(ctx context.Context, table string, filter Filter, onChange func(Change)) (func(), error) {
	return subscribe(ctx, p.bus, table, filter, onChange)
}

// InvokeFunction runs a registered function inside a transaction.
func (p *Postgres) InvokeFunction(ctx context.Context, name string, payload Record) (Record, error) {
	fn, err := p.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	var out Record
	err = p.WithinTx(ctx, func(tx Backend) error {
		var err error
		out, err = fn(ctx, tx, payload)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}
	return out, nil
}

// WithinTx runs fn in a database transaction. Change events are published
// only after a successful commit.
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx Backend) error) error {
	if p.pending != nil {
		return fn(p)
	}

	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	var pending []Change
	txBackend := &Postgres{
		db:       p.db,
		q:        sqlTx,
		builder:  p.builder,
		bus:      p.bus,
		registry: p.registry,
		logger:   p.logger,
		pending:  &pending,
	}

	if err := fn(txBackend); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			p.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, change := range pending {
		p.publish(ctx, change)
	}
	return nil
}

func (p *Postgres) emit(ctx context.Context, change Change) {
	if p.pending != nil {
		*p.pending = append(*p.pending, change)
		return
	}
	p.publish(ctx, change)
}

func (p *Postgres) publish(ctx context.Context, change Change) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, change); err != nil {
		p.logger.Warn("failed to publish change",
			zap.String("table", change.Table),
			zap.String("type", string(change.Type)),
			zap.Error(err))
	}
}

// eq converts a Filter into a squirrel condition. Slice values become IN lists.
func eq(filter Filter) sq.Eq {
	cond := make(sq.Eq, len(filter))
	for k, v := range filter {
		if vals, ok := v.([]string); ok {
			cond[k] = vals
			continue
		}
		cond[k] = normalize(v)
	}
	return cond
}

func mapWriteError(table string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
		return fmt.Errorf("%s: %w: %s", table, ErrConflict, pqErr.Constraint)
	}
	return fmt.Errorf("write %s: %w", table, err)
}

// scanRecords reads every row into a Record keyed by column name.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(Record, len(cols))
		for i, c := range cols {
			rec[c] = normalize(values[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
