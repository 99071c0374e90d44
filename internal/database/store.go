package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Store runs generic CRUD statements against one table. The table name is
// fixed at construction and every column name is validated before it is
// interpolated; values are always bound as parameters.
type Store struct {
	src        source
	table      string
	columns    map[string]struct{}
	timestamps bool
	now        func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithColumns restricts the store to the given columns.
func WithColumns(cols ...string) StoreOption {
	return func(s *Store) {
		if s.columns == nil {
			s.columns = make(map[string]struct{}, len(cols))
		}
		for _, c := range cols {
			s.columns[c] = struct{}{}
		}
	}
}

// WithTimestamps stamps created_at on insert and updated_at on every write.
func WithTimestamps() StoreOption {
	return func(s *Store) {
		s.timestamps = true
	}
}

// NewStore creates a store for table on top of m.
func NewStore(m *Manager, table string, opts ...StoreOption) (*Store, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("%w: table name %q", ErrInvalidColumn, table)
	}
	s := &Store{
		src:   m,
		table: table,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	for c := range s.columns {
		if !validIdent(c) {
			return nil, fmt.Errorf("%w: %q in allowlist for %s", ErrInvalidColumn, c, table)
		}
	}
	if s.timestamps && s.columns != nil {
		s.columns["created_at"] = struct{}{}
		s.columns["updated_at"] = struct{}{}
	}
	return s, nil
}

func mustStore(m *Manager, table string, opts ...StoreOption) *Store {
	s, err := NewStore(m, table, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// WithTx returns a copy of the store that runs its statements inside tx.
func (s *Store) WithTx(tx *Tx) *Store {
	cp := *s
	cp.src = tx
	return &cp
}

func (s *Store) checkColumn(col string) error {
	if !validIdent(col) {
		return fmt.Errorf("%w: %q", ErrInvalidColumn, col)
	}
	if s.columns != nil {
		if _, ok := s.columns[col]; !ok {
			return fmt.Errorf("%w: %s has no column %q", ErrInvalidColumn, s.table, col)
		}
	}
	return nil
}

// where renders the filter as a WHERE clause. Keys are sorted so the same
// filter always produces the same statement.
func (s *Store) where(f Filter) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}
	var conds []string
	var args []any
	for _, col := range slices.Sorted(maps.Keys(f)) {
		if err := s.checkColumn(col); err != nil {
			return "", nil, err
		}
		v := f[col]
		if err := checkScalar(col, v); err != nil {
			return "", nil, err
		}
		if v == nil {
			conds = append(conds, quoteIdent(col)+" IS NULL")
			continue
		}
		conds = append(conds, quoteIdent(col)+" = ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// assignments validates rec and returns its columns in sorted order with the
// matching values.
func (s *Store) assignments(rec Record) ([]string, []any, error) {
	if len(rec) == 0 {
		return nil, nil, ErrEmptyRecord
	}
	cols := slices.Sorted(maps.Keys(rec))
	args := make([]any, len(cols))
	for i, col := range cols {
		if err := s.checkColumn(col); err != nil {
			return nil, nil, err
		}
		if err := checkScalar(col, rec[col]); err != nil {
			return nil, nil, err
		}
		args[i] = rec[col]
	}
	return cols, args, nil
}

// All returns the rows matching f, newest first.
func (s *Store) All(ctx context.Context, f Filter, p Page) ([]Record, error) {
	where, args, err := s.where(f)
	if err != nil {
		return nil, err
	}
	q := "SELECT * FROM " + quoteIdent(s.table) + where + " ORDER BY `id` DESC"
	if p.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, max(p.Offset, 0))
	}
	recs, err := s.Query(ctx, q, args...)
	if err != nil {
		return nil, newQueryError("list", s.table, err)
	}
	return recs, nil
}

// Get returns the row with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	q := "SELECT * FROM " + quoteIdent(s.table) + " WHERE `id` = ? LIMIT 1"
	rec, err := s.QueryOne(ctx, q, id)
	if err != nil {
		return nil, newQueryError("get", s.table, err)
	}
	return rec, nil
}

// Create inserts rec and returns the generated primary key.
func (s *Store) Create(ctx context.Context, rec Record) (int64, error) {
	rec = maps.Clone(rec)
	if s.timestamps && len(rec) > 0 {
		now := s.now()
		if _, ok := rec["created_at"]; !ok {
			rec["created_at"] = now
		}
		if _, ok := rec["updated_at"]; !ok {
			rec["updated_at"] = now
		}
	}
	cols, args, err := s.assignments(rec)
	if err != nil {
		return 0, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(s.table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	res, err := s.Exec(ctx, q, args...)
	if err != nil {
		return 0, newQueryError("insert into", s.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, newQueryError("read insert id of", s.table, err)
	}
	return id, nil
}

// Update sets the columns in rec on the row with the given id. Columns not in
// rec are left untouched. The result reports whether a row matched.
func (s *Store) Update(ctx context.Context, id int64, rec Record) (bool, error) {
	if _, ok := rec["id"]; ok {
		return false, fmt.Errorf("%w: id cannot be updated", ErrInvalidColumn)
	}
	rec = maps.Clone(rec)
	if s.timestamps && len(rec) > 0 {
		if _, ok := rec["updated_at"]; !ok {
			rec["updated_at"] = s.now()
		}
	}
	cols, args, err := s.assignments(rec)
	if err != nil {
		return false, err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
	}
	q := "UPDATE " + quoteIdent(s.table) + " SET " + strings.Join(sets, ", ") + " WHERE `id` = ?"
	args = append(args, id)

	res, err := s.Exec(ctx, q, args...)
	if err != nil {
		return false, newQueryError("update", s.table, err)
	}
	return matched(res, s.table)
}

// Delete removes the row with the given id. The result reports whether a row matched.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.Exec(ctx, "DELETE FROM "+quoteIdent(s.table)+" WHERE `id` = ?", id)
	if err != nil {
		return false, newQueryError("delete from", s.table, err)
	}
	return matched(res, s.table)
}

// Count returns the number of rows matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	where, args, err := s.where(f)
	if err != nil {
		return 0, err
	}
	ex, err := s.src.handle(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	q := ex.Rebind("SELECT COUNT(*) FROM " + quoteIdent(s.table) + where)
	if err := ex.QueryRowxContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, newQueryError("count", s.table, err)
	}
	return n, nil
}

// Query runs a raw SELECT and returns every row. Identifiers in q must come
// from code, never from callers.
func (s *Store) Query(ctx context.Context, q string, args ...any) ([]Record, error) {
	ex, err := s.src.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryxContext(ctx, ex.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		recs = append(recs, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// QueryOne runs a raw SELECT and returns its first row or ErrNotFound.
func (s *Store) QueryOne(ctx context.Context, q string, args ...any) (Record, error) {
	ex, err := s.src.handle(ctx)
	if err != nil {
		return nil, err
	}
	row := make(map[string]any)
	if err := ex.QueryRowxContext(ctx, ex.Rebind(q), args...).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return normalize(row), nil
}

// Exec runs a raw statement.
func (s *Store) Exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	ex, err := s.src.handle(ctx)
	if err != nil {
		return nil, err
	}
	return ex.ExecContext(ctx, ex.Rebind(q), args...)
}

func matched(res sql.Result, table string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, newQueryError("read affected rows of", table, err)
	}
	return n > 0, nil
}
