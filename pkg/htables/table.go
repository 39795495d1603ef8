package htables

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/inovacc/htables/internal/storage"
)

// Table is the accessor for one named row collection within a session.
// It holds no state of its own and is cheap to obtain.
type Table struct {
	kind    RowKind
	session *Session
}

func (t *Table) Name() string {
	return t.kind.Table
}

func (t *Table) Kind() RowKind {
	return t.kind
}

// Create creates the backing table unless it already exists.
func (t *Table) Create(ctx context.Context) error {
	conn, err := t.session.storage()
	if err != nil {
		return err
	}

	return conn.CreateTable(ctx, t.kind.Table)
}

// Drop drops the backing table if it exists.
func (t *Table) Drop(ctx context.Context) error {
	conn, err := t.session.storage()
	if err != nil {
		return err
	}

	return conn.DropTable(ctx, t.kind.Table)
}

func (t *Table) row(id int64, fields map[string]string) *Row {
	return &Row{ID: id, Fields: fields, kind: t.kind, table: t}
}

// Row builds an unsaved row bound to t. fields is copied.
func (t *Table) Row(fields map[string]string) *Row {
	return t.row(0, storage.Clone(fields))
}

// New builds a row from fields, saves it and returns it with its id set.
func (t *Table) New(ctx context.Context, fields map[string]string) (*Row, error) {
	row := t.Row(fields)
	if err := t.Save(ctx, row); err != nil {
		return nil, err
	}

	return row, nil
}

// Save inserts row when it has no id, assigning the new id, and otherwise
// overwrites the stored fields of that id.
func (t *Table) Save(ctx context.Context, row *Row) error {
	conn, err := t.session.storage()
	if err != nil {
		return err
	}

	switch {
	case row.table == nil:
		row.kind, row.table = t.kind, t
	case row.kind.Table != t.kind.Table:
		return fmt.Errorf("row of table %q cannot be saved in %q", row.kind.Table, t.kind.Table)
	}

	if t.session.debug {
		if checker, ok := conn.(storage.FieldChecker); ok {
			if err := checker.CheckFields(row.Fields); err != nil {
				return err
			}
		}
	}

	if row.ID != 0 {
		return conn.Update(ctx, t.kind.Table, row.ID, row.Fields)
	}

	id, err := conn.Insert(ctx, t.kind.Table, row.Fields)
	if err != nil {
		return err
	}

	row.ID = id
	t.session.logger.Debug("row inserted", "table", t.kind.Table, "id", id)

	return nil
}

// Get fetches the row with the given id.
func (t *Table) Get(ctx context.Context, id int64) (*Row, error) {
	conn, err := t.session.storage()
	if err != nil {
		return nil, err
	}

	fields, err := conn.SelectByID(ctx, t.kind.Table, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return nil, &NotFoundError{Table: t.kind.Table, ID: id}
		}

		return nil, err
	}

	return t.row(id, fields), nil
}

// Delete removes the row with the given id. Deleting an id that does not
// exist is not an error.
func (t *Table) Delete(ctx context.Context, id int64) error {
	conn, err := t.session.storage()
	if err != nil {
		return err
	}

	return conn.Delete(ctx, t.kind.Table, id)
}

// Find yields, in id order, every row whose fields equal all pairs of
// filter. The whole table is read and filtered in process. The sequence
// can be ranged over once.
func (t *Table) Find(ctx context.Context, filter map[string]string) iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		conn, err := t.session.storage()
		if err != nil {
			yield(nil, err)

			return
		}

		records, err := conn.SelectAll(ctx, t.kind.Table)
		if err != nil {
			yield(nil, err)

			return
		}

		for _, rec := range records {
			if !matches(rec.Fields, filter) {
				continue
			}

			if !yield(t.row(rec.ID, rec.Fields), nil) {
				return
			}
		}
	}
}

// All yields every row of the table.
func (t *Table) All(ctx context.Context) iter.Seq2[*Row, error] {
	return t.Find(ctx, nil)
}

// FindFirst returns the first row Find yields.
func (t *Table) FindFirst(ctx context.Context, filter map[string]string) (*Row, error) {
	for row, err := range t.Find(ctx, filter) {
		if err != nil {
			return nil, err
		}

		return row, nil
	}

	return nil, &NotFoundError{Table: t.kind.Table, Filter: filter}
}

// FindSingle returns the only row matching filter.
func (t *Table) FindSingle(ctx context.Context, filter map[string]string) (*Row, error) {
	var found *Row

	for row, err := range t.Find(ctx, filter) {
		if err != nil {
			return nil, err
		}

		if found != nil {
			return nil, &MultipleResultsError{Table: t.kind.Table, Filter: filter}
		}

		found = row
	}

	if found == nil {
		return nil, &NotFoundError{Table: t.kind.Table, Filter: filter}
	}

	return found, nil
}

func matches(fields, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := fields[k]
		if !ok || got != want {
			return false
		}
	}

	return true
}
