package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inovacc/htables/internal/storage"
)

type conn struct {
	pool *Pool
	c    *sql.Conn
	tx   *sql.Tx

	// Large-object changes not yet applied to the pool's file store.
	staged   map[int64]*stagedFile
	purge    bool
	reserved []int64
}

var _ storage.Conn = (*conn)(nil)

func quote(table string) string {
	return `"` + table + `"`
}

// begin returns the connection's open transaction, starting one if needed.
func (c *conn) begin(ctx context.Context) (*sql.Tx, error) {
	if c.tx != nil {
		return c.tx, nil
	}

	// database/sql rolls a transaction back when its context ends; the
	// transaction must outlive the context of the statement that opened it.
	tx, err := c.c.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, err
	}

	c.tx = tx

	return tx, nil
}

func (c *conn) CreateTable(ctx context.Context, table string) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+quote(table)+" (id INTEGER PRIMARY KEY, data BLOB)")

	return err
}

func (c *conn) DropTable(ctx context.Context, table string) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table))

	return err
}

func (c *conn) Insert(ctx context.Context, table string, fields map[string]string) (int64, error) {
	data, err := c.pool.codec.Marshal(fields)
	if err != nil {
		return 0, err
	}

	tx, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO "+quote(table)+" (data) VALUES (?)", data)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (c *conn) SelectByID(ctx context.Context, table string, id int64) (map[string]string, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	var data []byte
	if err := tx.QueryRowContext(ctx, "SELECT data FROM "+quote(table)+" WHERE id = ?", id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNoRows
		}

		return nil, err
	}

	return c.pool.codec.Unmarshal(data)
}

func (c *conn) SelectAll(ctx context.Context, table string) ([]storage.Record, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, data FROM "+quote(table)+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []storage.Record

	for rows.Next() {
		var (
			id   int64
			data []byte
		)

		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}

		fields, err := c.pool.codec.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", id, err)
		}

		records = append(records, storage.Record{ID: id, Fields: fields})
	}

	return records, rows.Err()
}

func (c *conn) Update(ctx context.Context, table string, id int64, fields map[string]string) error {
	data, err := c.pool.codec.Marshal(fields)
	if err != nil {
		return err
	}

	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "UPDATE "+quote(table)+" SET data = ? WHERE id = ?", data, id)

	return err
}

func (c *conn) Delete(ctx context.Context, table string, id int64) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM "+quote(table)+" WHERE id = ?", id)

	return err
}

func (c *conn) Commit(ctx context.Context) error {
	if c.tx != nil {
		err := c.tx.Commit()
		c.tx = nil

		if err != nil {
			c.resetFiles()

			return err
		}
	}

	return c.applyFiles()
}

func (c *conn) Rollback(ctx context.Context) error {
	c.resetFiles()

	if c.tx == nil {
		return nil
	}

	err := c.tx.Rollback()
	c.tx = nil

	return err
}

func (c *conn) Release(ctx context.Context) error {
	rbErr := c.Rollback(ctx)

	return errors.Join(rbErr, c.c.Close())
}
