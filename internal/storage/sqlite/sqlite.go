// Package sqlite implements the embedded htables backend on SQLite.
//
// Each table is (id INTEGER PRIMARY KEY, data BLOB) where data holds the
// row's field map encoded by a codec. Large objects do not live in the
// database: they are kept in a caller-supplied storage.FileStore, with
// writes staged per connection until Commit so Rollback discards them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/inovacc/htables/internal/codec"
	"github.com/inovacc/htables/internal/storage"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Options configures a Pool.
type Options struct {
	Path     string
	MinConns int
	MaxConns int
	Codec    codec.Codec
	Files    storage.FileStore
}

// Pool is a bounded set of connections to one SQLite database file.
type Pool struct {
	db    *sql.DB
	codec codec.Codec
	files storage.FileStore

	// Ids handed out by CreateFile and not yet committed or rolled back.
	mu       sync.Mutex
	reserved map[int64]struct{}
}

var _ storage.Pool = (*Pool)(nil)

// Open opens the database file at opts.Path, creating it if needed.
func Open(ctx context.Context, opts Options) (*Pool, error) {
	if opts.Codec == nil {
		opts.Codec = codec.JSON{}
	}

	if opts.Files == nil {
		return nil, errors.New("sqlite: a file store is required")
	}

	if opts.MaxConns < 1 {
		return nil, fmt.Errorf("sqlite: invalid max connections %d", opts.MaxConns)
	}

	if err := ValidatePath(opts.Path); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", opts.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxConns)
	db.SetMaxIdleConns(opts.MaxConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := warmUp(ctx, db, opts.MinConns); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Pool{
		db:       db,
		codec:    opts.Codec,
		files:    opts.Files,
		reserved: make(map[int64]struct{}),
	}, nil
}

// ValidatePath rejects paths that are not plain database files. Pragmas are
// appended as a query string, and every pooled connection to an in-memory
// database would see a different database.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return errors.New("sqlite: empty database path")
	case path == ":memory:", strings.HasPrefix(path, "file:"):
		return fmt.Errorf("sqlite: %q is not a database file path", path)
	case strings.Contains(path, "?"):
		return fmt.Errorf("sqlite: database path %q must not carry a query string", path)
	}

	return nil
}

// warmUp opens n connections so they sit idle in the pool.
func warmUp(ctx context.Context, db *sql.DB, n int) error {
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	for range n {
		c, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("opening connection: %w", err)
		}

		conns = append(conns, c)
	}

	if n == 0 {
		return db.PingContext(ctx)
	}

	return nil
}

// Acquire checks out a connection, waiting while all are in use.
func (p *Pool) Acquire(ctx context.Context) (storage.Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &conn{
		pool:   p,
		c:      c,
		staged: make(map[int64]*stagedFile),
	}, nil
}

// Close closes every connection.
func (p *Pool) Close() {
	_ = p.db.Close()
}

// Stats exposes database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}
