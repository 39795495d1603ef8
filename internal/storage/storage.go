// Package storage defines the capability set every htables backend
// implements.
//
// A [Pool] hands out [Conn] values. Each Conn is owned by exactly one
// session for as long as it is checked out; it keeps an implicit
// transaction open from the first statement until Commit or Rollback.
//
// Row data crosses this boundary as plain map[string]string values. How a
// backend stores them (hstore column, serialized blob) is its own concern.
package storage

import (
	"context"
	"errors"
	"io"
	"iter"
)

// ChunkSize bounds the size of each block moved during large-object copies.
const ChunkSize = 1 << 14

var (
	// ErrNoRows is returned by SelectByID when no row has the given id.
	ErrNoRows = errors.New("no rows")

	// ErrFileNotFound is returned by backends whose large objects live in a
	// FileStore when the id is not registered.
	ErrFileNotFound = errors.New("db file not found")
)

// Record is one stored row.
type Record struct {
	ID     int64
	Fields map[string]string
}

// Pool manages the connections of one backend.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// Conn is a checked-out backend connection.
//
//nolint:interfacebloat // the full capability set is required by a session
type Conn interface {
	Rows
	Files

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Release rolls back uncommitted work and returns the connection to its
	// pool. The Conn must not be used afterwards.
	Release(ctx context.Context) error
}

// Rows are the row-collection operations. Table names reaching this layer
// have already been validated as plain identifiers.
type Rows interface {
	CreateTable(ctx context.Context, table string) error
	DropTable(ctx context.Context, table string) error
	Insert(ctx context.Context, table string, fields map[string]string) (int64, error)
	SelectByID(ctx context.Context, table string, id int64) (map[string]string, error)
	SelectAll(ctx context.Context, table string) ([]Record, error)
	Update(ctx context.Context, table string, id int64, fields map[string]string) error
	Delete(ctx context.Context, table string, id int64) error
}

// Files are the large-object operations.
type Files interface {
	CreateFile(ctx context.Context) (int64, error)
	WriteFile(ctx context.Context, id int64, r io.Reader) error
	ReadFile(ctx context.Context, id int64) iter.Seq2[[]byte, error]
	UnlinkFile(ctx context.Context, id int64) error
	PurgeFiles(ctx context.Context) error
}

// FileStore is the id→buffer map an embedded backend keeps its large
// objects in. Implementations must be safe for concurrent use because
// every session of a pool shares one store.
type FileStore interface {
	Has(id int64) (bool, error)
	Get(id int64) ([]byte, error)
	Put(id int64, data []byte) error
	Delete(id int64) error
	Clear() error
}

// Clone copies a field map so callers and backends never share one.
func Clone(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}

	return out
}
