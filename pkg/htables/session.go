package htables

import (
	"context"
	"log/slog"

	"github.com/inovacc/htables/internal/storage"
)

// Session owns one checked-out connection until its pool releases it.
// A Session must not be used by several goroutines at once.
type Session struct {
	id     string
	pool   *SessionPool
	schema *Schema
	conn   storage.Conn
	debug  bool
	logger *slog.Logger
}

// ID returns the session's unique identifier, as used in log records.
func (s *Session) ID() string {
	return s.id
}

// Expired reports whether the session has been released.
func (s *Session) Expired() bool {
	return s.conn == nil
}

func (s *Session) storage() (storage.Conn, error) {
	if s.conn == nil {
		return nil, ErrExpiredSession
	}

	return s.conn, nil
}

// expire hands the connection back to the caller and marks the session
// expired.
func (s *Session) expire() (storage.Conn, error) {
	conn, err := s.storage()
	if err != nil {
		return nil, err
	}

	s.conn = nil

	return conn, nil
}

// Table returns the accessor for the named table.
func (s *Session) Table(name string) (*Table, error) {
	if _, err := s.storage(); err != nil {
		return nil, err
	}

	kind, err := s.schema.Lookup(name)
	if err != nil {
		return nil, err
	}

	return &Table{kind: kind, session: s}, nil
}

func (s *Session) tables() []*Table {
	kinds := s.schema.Tables()
	tables := make([]*Table, 0, len(kinds))

	for _, kind := range kinds {
		tables = append(tables, &Table{kind: kind, session: s})
	}

	return tables
}

// NewDbFile allocates a new, empty large object.
func (s *Session) NewDbFile(ctx context.Context) (*DbFile, error) {
	conn, err := s.storage()
	if err != nil {
		return nil, err
	}

	id, err := conn.CreateFile(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("db file created", "file", id)

	return &DbFile{id: id, session: s}, nil
}

// DbFile returns a handle to an existing large object. Existence is checked
// on the first read or write.
func (s *Session) DbFile(id int64) (*DbFile, error) {
	if _, err := s.storage(); err != nil {
		return nil, err
	}

	return &DbFile{id: id, session: s}, nil
}

// DelDbFile removes a large object. Removing an unknown id is an error.
func (s *Session) DelDbFile(ctx context.Context, id int64) error {
	conn, err := s.storage()
	if err != nil {
		return err
	}

	return conn.UnlinkFile(ctx, id)
}

func (s *Session) Commit(ctx context.Context) error {
	conn, err := s.storage()
	if err != nil {
		return err
	}

	if err := conn.Commit(ctx); err != nil {
		return err
	}

	s.logger.Debug("session committed")

	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	conn, err := s.storage()
	if err != nil {
		return err
	}

	if err := conn.Rollback(ctx); err != nil {
		return err
	}

	s.logger.Debug("session rolled back")

	return nil
}

// CreateAll creates every schema table that does not exist yet and commits.
func (s *Session) CreateAll(ctx context.Context) error {
	conn, err := s.storage()
	if err != nil {
		return err
	}

	for _, t := range s.tables() {
		if err := t.Create(ctx); err != nil {
			return err
		}
	}

	if err := conn.Commit(ctx); err != nil {
		return err
	}

	s.logger.Info("tables created", "count", len(s.schema.order))

	return nil
}

// DropAll drops every schema table, removes every large object and
// commits. On PostgreSQL this unlinks all large objects in the database,
// including ones htables did not create.
func (s *Session) DropAll(ctx context.Context) error {
	conn, err := s.storage()
	if err != nil {
		return err
	}

	for _, t := range s.tables() {
		if err := t.Drop(ctx); err != nil {
			return err
		}
	}

	if err := conn.PurgeFiles(ctx); err != nil {
		return err
	}

	if err := conn.Commit(ctx); err != nil {
		return err
	}

	s.logger.Info("tables dropped", "count", len(s.schema.order))

	return nil
}
