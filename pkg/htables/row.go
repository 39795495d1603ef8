package htables

import (
	"context"
	"maps"
)

// Row is one stored document: a string→string field map plus its id.
// An ID of zero means the row has never been saved.
type Row struct {
	ID     int64
	Fields map[string]string

	kind  RowKind
	table *Table
}

// Kind returns the row's variant tag.
func (r *Row) Kind() RowKind {
	return r.kind
}

// Persisted reports whether the row has been saved at least once.
func (r *Row) Persisted() bool {
	return r.ID != 0
}

// Get returns the value of key, or "" when absent.
func (r *Row) Get(key string) string {
	return r.Fields[key]
}

// Lookup returns the value of key and whether it is present.
func (r *Row) Lookup(key string) (string, bool) {
	v, ok := r.Fields[key]

	return v, ok
}

// Set assigns key. Changes reach the database on the next Save.
func (r *Row) Set(key, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}

	r.Fields[key] = value
}

// Unset removes key.
func (r *Row) Unset(key string) {
	delete(r.Fields, key)
}

// Equal reports whether r holds exactly the given fields.
func (r *Row) Equal(fields map[string]string) bool {
	return maps.Equal(r.Fields, fields)
}

// Save writes the row through the table that produced it.
func (r *Row) Save(ctx context.Context) error {
	if r.table == nil {
		return ErrDetachedRow
	}

	return r.table.Save(ctx, r)
}

// Delete removes the row from its table. The in-memory row keeps its now
// stale ID.
func (r *Row) Delete(ctx context.Context) error {
	if r.table == nil {
		return ErrDetachedRow
	}

	if !r.Persisted() {
		return ErrNotPersisted
	}

	return r.table.Delete(ctx, r.ID)
}
