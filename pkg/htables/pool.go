package htables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/inovacc/htables/internal/connuri"
	"github.com/inovacc/htables/internal/storage"
	"github.com/inovacc/htables/internal/storage/postgres"
	"github.com/inovacc/htables/internal/storage/sqlite"
)

// SessionPool manages a bounded set of connections and hands them out as
// Sessions. It is safe for concurrent use.
type SessionPool struct {
	schema  *Schema
	backend storage.Pool
	debug   bool
	logger  *slog.Logger
}

func checkPoolSize(uri string, o *options) error {
	if o.poolMin < 0 || o.poolMax < 1 || o.poolMin > o.poolMax {
		return &ConfigurationError{
			URI:    uri,
			Reason: fmt.Sprintf("invalid pool size min=%d max=%d", o.poolMin, o.poolMax),
		}
	}

	return nil
}

// Bind creates a pool on the PostgreSQL server named by connectionURI,
// postgresql://[user[:password]@]host/database.
func (s *Schema) Bind(ctx context.Context, connectionURI string, opts ...Option) (*SessionPool, error) {
	params, err := connuri.Parse(connectionURI)
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)
	if err := checkPoolSize(connectionURI, o); err != nil {
		return nil, err
	}

	backend, err := postgres.Open(ctx, postgres.Options{
		Params:          params,
		MinConns:        int32(o.poolMin),
		MaxConns:        int32(o.poolMax),
		CreateExtension: o.createExtension,
	})
	if err != nil {
		return nil, err
	}

	o.logger.Debug("session pool opened", "backend", connuri.SchemePostgres, "server", params.String(),
		"pool_min", o.poolMin, "pool_max", o.poolMax)

	return s.newPool(backend, o), nil
}

// BindSQLite creates a pool on the SQLite database file at path.
func (s *Schema) BindSQLite(ctx context.Context, path string, opts ...Option) (*SessionPool, error) {
	o := newOptions(opts)
	if err := checkPoolSize(path, o); err != nil {
		return nil, err
	}

	if err := sqlite.ValidatePath(path); err != nil {
		return nil, &ConfigurationError{URI: path, Reason: err.Error()}
	}

	if o.files == nil {
		o.files = NewMemoryFileStore()
	}

	backend, err := sqlite.Open(ctx, sqlite.Options{
		Path:     path,
		MinConns: o.poolMin,
		MaxConns: o.poolMax,
		Codec:    o.codec,
		Files:    o.files,
	})
	if err != nil {
		return nil, err
	}

	o.logger.Debug("session pool opened", "backend", connuri.SchemeSQLite, "path", path,
		"pool_min", o.poolMin, "pool_max", o.poolMax)

	return s.newPool(backend, o), nil
}

// Open binds the schema to either backend depending on the URI scheme:
// postgresql://... or sqlite://<path>.
func (s *Schema) Open(ctx context.Context, uri string, opts ...Option) (*SessionPool, error) {
	scheme, err := connuri.Scheme(uri)
	if err != nil {
		return nil, err
	}

	if scheme == connuri.SchemePostgres {
		return s.Bind(ctx, uri, opts...)
	}

	path, err := connuri.ParseSQLite(uri)
	if err != nil {
		return nil, err
	}

	return s.BindSQLite(ctx, path, opts...)
}

func (s *Schema) newPool(backend storage.Pool, o *options) *SessionPool {
	return &SessionPool{
		schema:  s.clone(),
		backend: backend,
		debug:   o.debug,
		logger:  o.logger,
	}
}

// Schema returns the pool's copy of the schema.
func (p *SessionPool) Schema() *Schema {
	return p.schema.clone()
}

// Acquire checks out a connection and wraps it in a new Session. It blocks
// while every connection is in use; ctx bounds the wait.
func (p *SessionPool) Acquire(ctx context.Context) (*Session, error) {
	conn, err := p.backend.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		id:     id,
		pool:   p,
		schema: p.schema,
		conn:   conn,
		debug:  p.debug,
		logger: p.logger.With("session", id),
	}

	s.logger.Debug("session acquired")

	return s, nil
}

// Release expires s and returns its connection to the pool. Work that was
// not committed is rolled back.
func (p *SessionPool) Release(ctx context.Context, s *Session) error {
	if s.pool != p {
		return errors.New("session belongs to another pool")
	}

	conn, err := s.expire()
	if err != nil {
		return err
	}

	if err := conn.Release(ctx); err != nil {
		s.logger.Warn("session released with error", "error", err)

		return err
	}

	s.logger.Debug("session released")

	return nil
}

// Do runs fn with a fresh session and releases it afterwards, even if fn
// panics. fn is responsible for committing.
func (p *SessionPool) Do(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if rerr := p.Release(ctx, s); err == nil {
			err = rerr
		}
	}()

	return fn(s)
}

// Close closes every pooled connection. Sessions still checked out become
// unusable.
func (p *SessionPool) Close() {
	p.backend.Close()
	p.logger.Debug("session pool closed")
}
