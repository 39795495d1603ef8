package sqlite

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"math/rand/v2"

	"github.com/inovacc/htables/internal/storage"
)

// maxFileID bounds randomly allocated large-object ids.
const maxFileID = 1_000_000

type stagedFile struct {
	data    []byte
	deleted bool
}

// lookup resolves id against staged changes first, then the file store.
func (c *conn) lookup(id int64) ([]byte, error) {
	if st, ok := c.staged[id]; ok {
		if st.deleted {
			return nil, storage.ErrFileNotFound
		}

		return st.data, nil
	}

	if c.purge {
		return nil, storage.ErrFileNotFound
	}

	return c.pool.files.Get(id)
}

// taken reports whether id is staged here, reserved by any connection of
// the pool or committed. The caller holds c.pool.mu.
func (c *conn) taken(id int64) (bool, error) {
	if _, ok := c.staged[id]; ok {
		return true, nil
	}

	if _, ok := c.pool.reserved[id]; ok {
		return true, nil
	}

	if c.purge {
		return false, nil
	}

	return c.pool.files.Has(id)
}

// CreateFile picks a random free id and reserves it across the pool until
// this connection commits or rolls back.
func (c *conn) CreateFile(ctx context.Context) (int64, error) {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()

	for {
		id := rand.Int64N(maxFileID) + 1

		taken, err := c.taken(id)
		if err != nil {
			return 0, err
		}

		if taken {
			continue
		}

		c.pool.reserved[id] = struct{}{}
		c.reserved = append(c.reserved, id)
		c.staged[id] = &stagedFile{data: []byte{}}

		return id, nil
	}
}

func (c *conn) WriteFile(ctx context.Context, id int64, r io.Reader) error {
	if _, err := c.lookup(id); err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := io.CopyBuffer(&buf, onlyReader{r}, make([]byte, storage.ChunkSize)); err != nil {
		return err
	}

	c.staged[id] = &stagedFile{data: buf.Bytes()}

	return nil
}

func (c *conn) ReadFile(ctx context.Context, id int64) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		data, err := c.lookup(id)
		if err != nil {
			yield(nil, err)

			return
		}

		yield(append([]byte{}, data...), nil)
	}
}

func (c *conn) UnlinkFile(ctx context.Context, id int64) error {
	if _, err := c.lookup(id); err != nil {
		return err
	}

	c.staged[id] = &stagedFile{deleted: true}

	return nil
}

func (c *conn) PurgeFiles(ctx context.Context) error {
	c.purge = true
	clear(c.staged)

	return nil
}

// applyFiles writes staged large-object changes through to the file store.
func (c *conn) applyFiles() error {
	defer c.resetFiles()

	if c.purge {
		if err := c.pool.files.Clear(); err != nil {
			return err
		}
	}

	for id, st := range c.staged {
		if !st.deleted {
			if err := c.pool.files.Put(id, st.data); err != nil {
				return err
			}

			continue
		}

		// Objects created and removed before a commit never reached the store.
		if err := c.pool.files.Delete(id); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
			return err
		}
	}

	return nil
}

func (c *conn) resetFiles() {
	c.purge = false
	clear(c.staged)

	if len(c.reserved) == 0 {
		return
	}

	c.pool.mu.Lock()
	for _, id := range c.reserved {
		delete(c.pool.reserved, id)
	}
	c.pool.mu.Unlock()

	c.reserved = c.reserved[:0]
}

// onlyReader hides WriterTo so copies go through the chunk buffer.
type onlyReader struct {
	io.Reader
}
