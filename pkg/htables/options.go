package htables

import (
	"log/slog"

	"github.com/inovacc/htables/internal/codec"
	"github.com/inovacc/htables/internal/storage"
	"github.com/inovacc/htables/internal/storage/filestore"
)

const (
	DefaultPoolMin = 0
	DefaultPoolMax = 5
)

// Codec serializes field maps for the SQLite backend's blob column.
type Codec = codec.Codec

// FileStore holds the SQLite backend's large objects.
type FileStore = storage.FileStore

var (
	JSONCodec Codec = codec.JSON{}
	YAMLCodec Codec = codec.YAML{}
)

// CodecByName returns "json" or "yaml".
func CodecByName(name string) (Codec, error) {
	return codec.ByName(name)
}

// NewMemoryFileStore returns a FileStore that lives only in this process.
func NewMemoryFileStore() FileStore {
	return filestore.NewMemory()
}

// BoltFileStore is a FileStore persisted in a bbolt database file.
type BoltFileStore = filestore.Bolt

// OpenBoltFileStore opens or creates a persistent FileStore at path.
func OpenBoltFileStore(path string) (*BoltFileStore, error) {
	return filestore.OpenBolt(path)
}

type options struct {
	poolMin         int
	poolMax         int
	debug           bool
	logger          *slog.Logger
	codec           Codec
	files           FileStore
	createExtension bool
}

// Option configures a SessionPool.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		poolMin: DefaultPoolMin,
		poolMax: DefaultPoolMax,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// WithPoolSize bounds the number of pooled connections.
func WithPoolSize(minConns, maxConns int) Option {
	return func(o *options) {
		o.poolMin = minConns
		o.poolMax = maxConns
	}
}

// WithDebug enables strict field checks on save.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCodec selects the blob codec of the SQLite backend (JSON by default).
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithFileStore supplies the SQLite backend's large-object store. Without
// it every pool gets its own in-memory store.
func WithFileStore(files FileStore) Option {
	return func(o *options) {
		o.files = files
	}
}

// WithHstoreExtension makes every new PostgreSQL connection run
// CREATE EXTENSION IF NOT EXISTS hstore before using the type.
func WithHstoreExtension(create bool) Option {
	return func(o *options) {
		o.createExtension = create
	}
}
