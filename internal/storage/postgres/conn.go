package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"

	"github.com/inovacc/htables/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type conn struct {
	pc *pgxpool.Conn
	tx pgx.Tx
}

var (
	_ storage.Conn         = (*conn)(nil)
	_ storage.FieldChecker = (*conn)(nil)
)

func quote(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

// begin returns the connection's open transaction, starting one if needed.
func (c *conn) begin(ctx context.Context) (pgx.Tx, error) {
	if c.tx != nil {
		return c.tx, nil
	}

	tx, err := c.pc.Begin(ctx)
	if err != nil {
		return nil, err
	}

	c.tx = tx

	return tx, nil
}

// CheckFields enforces what an hstore column can hold.
func (c *conn) CheckFields(fields map[string]string) error {
	return storage.CheckText(fields)
}

func (c *conn) CreateTable(ctx context.Context, table string) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+quote(table)+" (id SERIAL PRIMARY KEY, data HSTORE)")

	return err
}

func (c *conn) DropTable(ctx context.Context, table string) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "DROP TABLE IF EXISTS "+quote(table))

	return err
}

// Insert reads the new id back with currval. The sequence value is
// session-local in PostgreSQL and this connection is owned by a single
// htables session, so no other insert can run in between.
func (c *conn) Insert(ctx context.Context, table string, fields map[string]string) (int64, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, "INSERT INTO "+quote(table)+" (data) VALUES ($1)", toHstore(fields)); err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRow(ctx, "SELECT currval(pg_get_serial_sequence($1, 'id'))", quote(table)).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

func (c *conn) SelectByID(ctx context.Context, table string, id int64) (map[string]string, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	var h pgtype.Hstore
	if err := tx.QueryRow(ctx, "SELECT data FROM "+quote(table)+" WHERE id = $1", id).Scan(&h); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNoRows
		}

		return nil, err
	}

	return fromHstore(h), nil
}

func (c *conn) SelectAll(ctx context.Context, table string) ([]storage.Record, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, "SELECT id, data FROM "+quote(table)+" ORDER BY id")
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Record, error) {
		var (
			id int64
			h  pgtype.Hstore
		)

		if err := row.Scan(&id, &h); err != nil {
			return storage.Record{}, err
		}

		return storage.Record{ID: id, Fields: fromHstore(h)}, nil
	})
}

func (c *conn) Update(ctx context.Context, table string, id int64, fields map[string]string) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "UPDATE "+quote(table)+" SET data = $1 WHERE id = $2", toHstore(fields), id)

	return err
}

func (c *conn) Delete(ctx context.Context, table string, id int64) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "DELETE FROM "+quote(table)+" WHERE id = $1", id)

	return err
}

func (c *conn) CreateFile(ctx context.Context) (int64, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}

	lo := tx.LargeObjects()

	oid, err := lo.Create(ctx, 0)
	if err != nil {
		return 0, err
	}

	return int64(oid), nil
}

// WriteFile replaces the object's content with everything read from r.
func (c *conn) WriteFile(ctx context.Context, id int64, r io.Reader) (err error) {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	lo := tx.LargeObjects()

	obj, err := lo.Open(ctx, oid, pgx.LargeObjectModeWrite)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := obj.Close(); err == nil {
			err = cerr
		}
	}()

	if err := obj.Truncate(0); err != nil {
		return err
	}

	buf := make([]byte, storage.ChunkSize)

	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := obj.Write(buf[:n]); err != nil {
				return err
			}
		}

		if errors.Is(rerr, io.EOF) {
			return nil
		}

		if rerr != nil {
			return rerr
		}
	}
}

// ReadFile streams the object in chunks. The object is closed when the
// sequence is exhausted or the caller stops early.
func (c *conn) ReadFile(ctx context.Context, id int64) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		oid, err := objectID(id)
		if err != nil {
			yield(nil, err)

			return
		}

		tx, err := c.begin(ctx)
		if err != nil {
			yield(nil, err)

			return
		}

		lo := tx.LargeObjects()

		obj, err := lo.Open(ctx, oid, pgx.LargeObjectModeRead)
		if err != nil {
			yield(nil, err)

			return
		}
		defer func() {
			_ = obj.Close()
		}()

		for {
			buf := make([]byte, storage.ChunkSize)

			n, err := obj.Read(buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}

			if errors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				yield(nil, err)

				return
			}

			if n == 0 {
				return
			}
		}
	}
}

func (c *conn) UnlinkFile(ctx context.Context, id int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	lo := tx.LargeObjects()

	return lo.Unlink(ctx, oid)
}

// objectID converts a db file id to a large-object oid. Ids outside the
// oid range cannot name an object.
func objectID(id int64) (uint32, error) {
	if id < 0 || id > math.MaxUint32 {
		return 0, fmt.Errorf("%w: id %d out of range", storage.ErrFileNotFound, id)
	}

	return uint32(id), nil
}

// PurgeFiles unlinks every large object in the database, not only those
// referenced by htables tables.
func (c *conn) PurgeFiles(ctx context.Context) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, "SELECT oid FROM pg_largeobject_metadata")
	if err != nil {
		return err
	}

	oids, err := pgx.CollectRows(rows, pgx.RowTo[uint32])
	if err != nil {
		return err
	}

	lo := tx.LargeObjects()
	for _, oid := range oids {
		if err := lo.Unlink(ctx, oid); err != nil {
			return err
		}
	}

	return nil
}

func (c *conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}

	err := c.tx.Commit(ctx)
	c.tx = nil

	return err
}

func (c *conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}

	err := c.tx.Rollback(ctx)
	c.tx = nil

	return err
}

// Release rolls back and hands the connection back to pgxpool, which
// discards it if the rollback did not leave it idle.
func (c *conn) Release(ctx context.Context) error {
	err := c.Rollback(context.WithoutCancel(ctx))
	c.pc.Release()

	return err
}
