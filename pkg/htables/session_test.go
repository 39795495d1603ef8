package htables

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSession_Expiry(t *testing.T) {
	for _, b := range testBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(t, b)

			s, err := pool.Acquire(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, s.ID())
			require.False(t, s.Expired())

			person := mustTable(t, s, "person")
			row, err := person.New(ctx, map[string]string{"a": "b"})
			require.NoError(t, err)
			file, err := s.NewDbFile(ctx)
			require.NoError(t, err)

			require.NoError(t, pool.Release(ctx, s))
			require.True(t, s.Expired())

			checks := map[string]error{
				"table":       func() error { _, err := s.Table("person"); return err }(),
				"commit":      s.Commit(ctx),
				"rollback":    s.Rollback(ctx),
				"create_all":  s.CreateAll(ctx),
				"drop_all":    s.DropAll(ctx),
				"new_db_file": func() error { _, err := s.NewDbFile(ctx); return err }(),
				"db_file":     func() error { _, err := s.DbFile(1); return err }(),
				"del_db_file": s.DelDbFile(ctx, file.ID()),
				"table.get":   func() error { _, err := person.Get(ctx, row.ID); return err }(),
				"table.new":   func() error { _, err := person.New(ctx, nil); return err }(),
				"table.find":  func() error { _, err := person.FindFirst(ctx, nil); return err }(),
				"table.del":   person.Delete(ctx, row.ID),
				"row.save":    row.Save(ctx),
				"row.delete":  row.Delete(ctx),
				"file.write":  file.WriteFrom(ctx, strings.NewReader("x")),
				"file.read":   func() error { _, err := file.ReadAll(ctx); return err }(),
				"release":     pool.Release(ctx, s),
			}

			for name, err := range checks {
				require.True(t, errors.Is(err, ErrExpiredSession), "%s: got %v", name, err)
			}
		})
	}
}

func TestSession_ReleaseDiscardsUncommitted(t *testing.T) {
	for _, b := range testBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(t, b)

			var id int64

			withSession(t, pool, func(s *Session) {
				row, err := mustTable(t, s, "person").New(ctx, map[string]string{"a": "b"})
				require.NoError(t, err)
				id = row.ID
			})

			withSession(t, pool, func(s *Session) {
				_, err := mustTable(t, s, "person").Get(ctx, id)
				require.True(t, errors.Is(err, ErrNotFound))
			})
		})
	}
}

func TestSession_Rollback(t *testing.T) {
	for _, b := range testBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(t, b)

			withSession(t, pool, func(s *Session) {
				person := mustTable(t, s, "person")

				kept, err := person.New(ctx, map[string]string{"state": "committed"})
				require.NoError(t, err)
				require.NoError(t, s.Commit(ctx))

				dropped, err := person.New(ctx, map[string]string{"state": "pending"})
				require.NoError(t, err)
				kept.Set("state", "changed")
				require.NoError(t, kept.Save(ctx))

				require.NoError(t, s.Rollback(ctx))

				_, err = person.Get(ctx, dropped.ID)
				require.True(t, errors.Is(err, ErrNotFound))

				got, err := person.Get(ctx, kept.ID)
				require.NoError(t, err)
				require.Equal(t, "committed", got.Get("state"))

				// Rolling back with nothing pending is harmless.
				require.NoError(t, s.Rollback(ctx))
			})
		})
	}
}

func TestSession_CommitVisibleToOtherSessions(t *testing.T) {
	for _, b := range testBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(t, b)

			writer, err := pool.Acquire(ctx)
			require.NoError(t, err)
			defer func() { _ = pool.Release(ctx, writer) }()

			row, err := mustTable(t, writer, "person").New(ctx, map[string]string{"hello": "world"})
			require.NoError(t, err)
			require.NoError(t, writer.Commit(ctx))

			withSession(t, pool, func(reader *Session) {
				got, err := mustTable(t, reader, "person").Get(ctx, row.ID)
				require.NoError(t, err)
				require.Equal(t, "world", got.Get("hello"))
			})
		})
	}
}

func TestSession_UnknownTable(t *testing.T) {
	pool := setupPool(t, testBackends()[0])

	withSession(t, pool, func(s *Session) {
		_, err := s.Table("nope")

		var unknownErr *UnknownTableError
		require.True(t, errors.As(err, &unknownErr))
	})
}

func TestSession_DropAllThenCreateAll(t *testing.T) {
	for _, b := range testBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(t, b)

			withSession(t, pool, func(s *Session) {
				_, err := mustTable(t, s, "person").New(ctx, map[string]string{"a": "b"})
				require.NoError(t, err)
				require.NoError(t, s.Commit(ctx))

				require.NoError(t, s.DropAll(ctx))
				require.NoError(t, s.CreateAll(ctx))

				require.Empty(t, collect(t, mustTable(t, s, "person"), nil))
			})
		})
	}
}

func TestSession_DebugFieldChecks(t *testing.T) {
	for _, b := range testBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(t, b, WithDebug(true))

			withSession(t, pool, func(s *Session) {
				person := mustTable(t, s, "person")

				_, err := person.New(ctx, map[string]string{"ok": "fine"})
				require.NoError(t, err)

				_, err = person.New(ctx, map[string]string{"bad": "nul\x00byte"})
				if b.name != "postgresql" {
					// Blob-encoded rows carry NUL bytes.
					require.NoError(t, err)

					return
				}

				var fieldErr *InvalidFieldError
				require.True(t, errors.As(err, &fieldErr))
				require.Equal(t, "bad", fieldErr.Key)
			})
		})
	}
}

func TestPool_ReleaseForeignSession(t *testing.T) {
	ctx := context.Background()
	b := testBackends()[0]
	p1 := setupPool(t, b)
	p2 := setupPool(t, b)

	s, err := p1.Acquire(ctx)
	require.NoError(t, err)

	require.Error(t, p2.Release(ctx, s))
	require.False(t, s.Expired())
	require.NoError(t, p1.Release(ctx, s))
}

func TestPool_BlocksWhenExhausted(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, testBackends()[0], WithPoolSize(0, 1))

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(waitCtx)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)

	acquired := make(chan *Session)
	go func() {
		s, err := pool.Acquire(ctx)
		if err != nil {
			close(acquired)

			return
		}
		acquired <- s
	}()

	select {
	case <-acquired:
		t.Fatal("acquired a session while the pool was exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, pool.Release(ctx, held))

	select {
	case s, ok := <-acquired:
		require.True(t, ok)
		require.NoError(t, pool.Release(ctx, s))
	case <-time.After(5 * time.Second):
		t.Fatal("waiting acquire never returned")
	}
}

func TestPool_ConcurrentSessions(t *testing.T) {
	for _, b := range testBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(t, b, WithPoolSize(1, 2))

			const n = 8

			withSession(t, pool, func(s *Session) {
				widgets := mustTable(t, s, "widgets")
				for i := range n {
					_, err := widgets.New(ctx, map[string]string{"name": fmt.Sprintf("w%d", i)})
					require.NoError(t, err)
				}
				require.NoError(t, s.Commit(ctx))
			})

			g, gctx := errgroup.WithContext(ctx)
			for i := range n {
				g.Go(func() error {
					return pool.Do(gctx, func(s *Session) error {
						widgets, err := s.Table("widgets")
						if err != nil {
							return err
						}

						row, err := widgets.FindSingle(gctx, map[string]string{"name": fmt.Sprintf("w%d", i)})
						if err != nil {
							return err
						}

						if row.Get("name") != fmt.Sprintf("w%d", i) {
							return fmt.Errorf("session %s: got %v", s.ID(), row.Fields)
						}

						return nil
					})
				})
			}

			require.NoError(t, g.Wait())
		})
	}
}

func TestPool_DoReleasesOnError(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, testBackends()[0], WithPoolSize(0, 1))
	boom := errors.New("boom")

	var seen *Session

	err := pool.Do(ctx, func(s *Session) error {
		seen = s

		return boom
	})
	require.True(t, errors.Is(err, boom))
	require.True(t, seen.Expired())

	require.Panics(t, func() {
		_ = pool.Do(ctx, func(s *Session) error {
			seen = s

			panic("boom")
		})
	})
	require.True(t, seen.Expired())

	// The single connection is back in the pool.
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, pool.Do(waitCtx, func(*Session) error { return nil }))
}

func TestPool_Logging(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool := setupPool(t, testBackends()[0], WithLogger(logger))

	var id string
	withSession(t, pool, func(s *Session) {
		id = s.ID()
		_, err := mustTable(t, s, "person").New(ctx, map[string]string{"a": "b"})
		require.NoError(t, err)
		require.NoError(t, s.Commit(ctx))
	})

	out := buf.String()
	require.Contains(t, out, "session acquired")
	require.Contains(t, out, "row inserted")
	require.Contains(t, out, "session released")
	require.Contains(t, out, "session="+id)
	require.Contains(t, out, "table=person")
}
