// Package postgres implements the full-server htables backend on
// PostgreSQL using pgx.
//
// Each table is (id SERIAL PRIMARY KEY, data HSTORE) and large objects use
// the server's native large-object facility. pgx types do not leave this
// package: rows cross the storage boundary as map[string]string.
package postgres

import (
	"context"
	"fmt"

	"github.com/inovacc/htables/internal/connuri"
	"github.com/inovacc/htables/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options configures a Pool.
type Options struct {
	Params   connuri.Params
	MinConns int32
	MaxConns int32

	// CreateExtension runs CREATE EXTENSION IF NOT EXISTS hstore on every
	// new connection before the type is registered.
	CreateExtension bool
}

// Pool wraps a pgxpool.Pool whose connections know the hstore type.
type Pool struct {
	pool *pgxpool.Pool
}

var _ storage.Pool = (*Pool)(nil)

// Open creates the connection pool. Connections are established lazily
// unless MinConns is positive.
func Open(ctx context.Context, opts Options) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(opts.Params.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	cfg.MinConns = opts.MinConns
	cfg.MaxConns = opts.MaxConns
	cfg.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		return registerHstore(ctx, c, opts.CreateExtension)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return &Pool{pool: pool}, nil
}

// registerHstore teaches the connection's type map about hstore, whose oid
// differs between databases.
func registerHstore(ctx context.Context, c *pgx.Conn, createExtension bool) error {
	if createExtension {
		if _, err := c.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS hstore"); err != nil {
			return fmt.Errorf("creating hstore extension: %w", err)
		}
	}

	var oid uint32
	if err := c.QueryRow(ctx, "SELECT 'hstore'::regtype::oid").Scan(&oid); err != nil {
		return fmt.Errorf("looking up hstore type: %w", err)
	}

	c.TypeMap().RegisterType(&pgtype.Type{Name: "hstore", OID: oid, Codec: pgtype.HstoreCodec{}})

	return nil
}

// Acquire checks out a connection, waiting while all are in use.
func (p *Pool) Acquire(ctx context.Context) (storage.Conn, error) {
	pc, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &conn{pc: pc}, nil
}

// Close closes every connection.
func (p *Pool) Close() {
	p.pool.Close()
}

// Stat exposes pgxpool statistics.
func (p *Pool) Stat() *pgxpool.Stat {
	return p.pool.Stat()
}

func toHstore(fields map[string]string) pgtype.Hstore {
	h := make(pgtype.Hstore, len(fields))
	for k, v := range fields {
		h[k] = &v
	}

	return h
}

// fromHstore drops keys holding SQL NULL; htables never writes them.
func fromHstore(h pgtype.Hstore) map[string]string {
	fields := make(map[string]string, len(h))
	for k, v := range h {
		if v != nil {
			fields[k] = *v
		}
	}

	return fields
}
