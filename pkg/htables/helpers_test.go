package htables

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSchema(t *testing.T) *Schema {
	t.Helper()

	schema := NewSchema()
	_, err := schema.DefineTable("PersonRow", "person")
	require.NoError(t, err)
	_, err = schema.DefineTable("WidgetRow", "widgets")
	require.NoError(t, err)

	return schema
}

type backend struct {
	name string
	open func(t *testing.T, schema *Schema, opts ...Option) *SessionPool
}

// testBackends returns SQLite always, and PostgreSQL when
// HTABLES_TEST_POSTGRES holds a connection URI.
func testBackends() []backend {
	backends := []backend{{
		name: "sqlite",
		open: func(t *testing.T, schema *Schema, opts ...Option) *SessionPool {
			t.Helper()

			pool, err := schema.BindSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), opts...)
			require.NoError(t, err)

			return pool
		},
	}}

	if uri := os.Getenv("HTABLES_TEST_POSTGRES"); uri != "" {
		backends = append(backends, backend{
			name: "postgresql",
			open: func(t *testing.T, schema *Schema, opts ...Option) *SessionPool {
				t.Helper()

				opts = append([]Option{WithHstoreExtension(true)}, opts...)
				pool, err := schema.Bind(context.Background(), uri, opts...)
				require.NoError(t, err)

				return pool
			},
		})
	}

	return backends
}

// setupPool opens a pool, creates every table and drops them again when
// the test ends.
func setupPool(t *testing.T, b backend, opts ...Option) *SessionPool {
	t.Helper()

	pool := b.open(t, newTestSchema(t), opts...)
	ctx := context.Background()

	require.NoError(t, pool.Do(ctx, func(s *Session) error {
		return s.CreateAll(ctx)
	}))

	t.Cleanup(func() {
		if err := pool.Do(ctx, func(s *Session) error { return s.DropAll(ctx) }); err != nil {
			t.Logf("failed to drop tables: %v", err)
		}

		pool.Close()
	})

	return pool
}

// withSession runs fn in a fresh session, failing the test on error.
func withSession(t *testing.T, pool *SessionPool, fn func(s *Session)) {
	t.Helper()

	ctx := context.Background()
	s, err := pool.Acquire(ctx)
	require.NoError(t, err)

	defer func() {
		if !s.Expired() {
			require.NoError(t, pool.Release(ctx, s))
		}
	}()

	fn(s)
}

func mustTable(t *testing.T, s *Session, name string) *Table {
	t.Helper()

	table, err := s.Table(name)
	require.NoError(t, err)

	return table
}

func collect(t *testing.T, table *Table, filter map[string]string) []*Row {
	t.Helper()

	var rows []*Row
	for row, err := range table.Find(context.Background(), filter) {
		require.NoError(t, err)
		rows = append(rows, row)
	}

	return rows
}
