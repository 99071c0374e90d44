package database

import "context"

// Table is a typed view over a Store. T is a struct whose db tags name the
// table's columns; they also form the store's column allowlist.
type Table[T any] struct {
	store *Store
}

// NewTable builds a typed table named name on m.
func NewTable[T any](m *Manager, name string, opts ...StoreOption) *Table[T] {
	opts = append([]StoreOption{WithColumns(columnsOf[T]()...)}, opts...)
	return &Table[T]{store: mustStore(m, name, opts...)}
}

// Store returns the underlying record store.
func (t *Table[T]) Store() *Store {
	return t.store
}

// WithTx returns a copy of the table bound to tx.
func (t *Table[T]) WithTx(tx *Tx) *Table[T] {
	return &Table[T]{store: t.store.WithTx(tx)}
}

func (t *Table[T]) List(ctx context.Context, f Filter, p Page) ([]T, error) {
	recs, err := t.store.All(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return decode[T](recs)
}

func (t *Table[T]) Get(ctx context.Context, id int64) (*T, error) {
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeOne[T](rec)
}

// Insert writes v and returns the new row id.
func (t *Table[T]) Insert(ctx context.Context, v *T) (int64, error) {
	rec, err := toRecord(v)
	if err != nil {
		return 0, err
	}
	return t.store.Create(ctx, rec)
}

// Patch applies the non-nil fields of patch, a struct of pointer fields
// tagged with this table's columns.
func (t *Table[T]) Patch(ctx context.Context, id int64, patch any) (bool, error) {
	rec, err := toRecord(patch)
	if err != nil {
		return false, err
	}
	return t.store.Update(ctx, id, rec)
}

func (t *Table[T]) Delete(ctx context.Context, id int64) (bool, error) {
	return t.store.Delete(ctx, id)
}

func (t *Table[T]) Count(ctx context.Context, f Filter) (int64, error) {
	return t.store.Count(ctx, f)
}

// Select runs a raw SELECT and decodes the rows into T.
func (t *Table[T]) Select(ctx context.Context, q string, args ...any) ([]T, error) {
	recs, err := t.store.Query(ctx, q, args...)
	if err != nil {
		return nil, newQueryError("query", t.store.table, err)
	}
	return decode[T](recs)
}

// SelectOne runs a raw SELECT and decodes its first row, or returns ErrNotFound.
func (t *Table[T]) SelectOne(ctx context.Context, q string, args ...any) (*T, error) {
	rec, err := t.store.QueryOne(ctx, q, args...)
	if err != nil {
		return nil, newQueryError("query", t.store.table, err)
	}
	return decodeOne[T](rec)
}
