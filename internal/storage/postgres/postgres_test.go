package postgres

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/inovacc/htables/internal/connuri"
	"github.com/inovacc/htables/internal/storage"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestHstoreConversion(t *testing.T) {
	fields := map[string]string{"name": "bolt", "qty": "5", "empty": ""}

	h := toHstore(fields)
	require.Len(t, h, 3)
	require.Equal(t, "bolt", *h["name"])
	require.Equal(t, "", *h["empty"])
	require.Equal(t, fields, fromHstore(h))

	v := "x"
	require.Equal(t, map[string]string{"a": "x"}, fromHstore(pgtype.Hstore{"a": &v, "b": nil}))
	require.Empty(t, fromHstore(nil))
}

func TestQuote(t *testing.T) {
	require.Equal(t, `"widgets"`, quote("widgets"))
	require.Equal(t, `"Widgets"`, quote("Widgets"))
}

func TestObjectID(t *testing.T) {
	tests := []struct {
		id      int64
		want    uint32
		wantErr bool
	}{
		{id: 0, want: 0},
		{id: 16384, want: 16384},
		{id: math.MaxUint32, want: math.MaxUint32},
		{id: -1, wantErr: true},
		{id: 1<<32 + 5, wantErr: true},
	}

	for _, tt := range tests {
		oid, err := objectID(tt.id)
		if tt.wantErr {
			require.ErrorIs(t, err, storage.ErrFileNotFound, "id %d", tt.id)

			continue
		}

		require.NoError(t, err)
		require.Equal(t, tt.want, oid)
	}
}

// setupTestPool connects to the server named by HTABLES_TEST_POSTGRES.
func setupTestPool(t *testing.T) *Pool {
	t.Helper()

	uri := os.Getenv("HTABLES_TEST_POSTGRES")
	if uri == "" {
		t.Skip("HTABLES_TEST_POSTGRES not set, skipping PostgreSQL test")
	}

	params, err := connuri.Parse(uri)
	require.NoError(t, err)

	pool, err := Open(context.Background(), Options{Params: params, MaxConns: 2, CreateExtension: true})
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	return pool
}

func TestConn_Postgres(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)

	require.Equal(t, int32(2), pool.Stat().MaxConns())

	sc, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer func() { _ = sc.Release(ctx) }()

	require.Equal(t, int32(1), pool.Stat().AcquiredConns())

	c := sc.(*conn)

	require.NoError(t, c.CreateTable(ctx, "htables_backend_test"))
	require.NoError(t, c.Commit(ctx))
	defer func() {
		_ = c.Rollback(ctx)
		_ = c.DropTable(ctx, "htables_backend_test")
		_ = c.Commit(ctx)
	}()

	id, err := c.Insert(ctx, "htables_backend_test", map[string]string{"hello": "world"})
	require.NoError(t, err)
	require.Positive(t, id)

	fields, err := c.SelectByID(ctx, "htables_backend_test", id)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"hello": "world"}, fields)

	_, err = c.SelectByID(ctx, "htables_backend_test", id+1000)
	require.True(t, errors.Is(err, storage.ErrNoRows))

	require.NoError(t, c.Rollback(ctx))

	records, err := c.SelectAll(ctx, "htables_backend_test")
	require.NoError(t, err)
	require.Empty(t, records)

	oid, err := c.CreateFile(ctx)
	require.NoError(t, err)

	payload := []byte(strings.Repeat("0123456789abcdef", storage.ChunkSize/8))
	require.NoError(t, c.WriteFile(ctx, oid, bytes.NewReader(payload)))

	var buf bytes.Buffer
	chunks := 0
	for chunk, err := range c.ReadFile(ctx, oid) {
		require.NoError(t, err)
		buf.Write(chunk)
		chunks++
	}
	require.Equal(t, payload, buf.Bytes())
	require.Greater(t, chunks, 1)

	// Out-of-range ids fail before reaching the server.
	require.ErrorIs(t, c.UnlinkFile(ctx, oid+1<<32), storage.ErrFileNotFound)
	require.ErrorIs(t, c.UnlinkFile(ctx, -1), storage.ErrFileNotFound)

	require.NoError(t, c.UnlinkFile(ctx, oid))
	require.NoError(t, c.Commit(ctx))
}
