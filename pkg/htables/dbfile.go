package htables

import (
	"bytes"
	"context"
	"io"
	"iter"
)

// DbFile is a handle to a large binary object.
type DbFile struct {
	id      int64
	session *Session
}

func (f *DbFile) ID() int64 {
	return f.id
}

// WriteFrom replaces the object's content with everything read from r.
func (f *DbFile) WriteFrom(ctx context.Context, r io.Reader) error {
	conn, err := f.session.storage()
	if err != nil {
		return err
	}

	return conn.WriteFile(ctx, f.id, r)
}

// Read yields the object's content in chunks. The sequence can be ranged
// over once; stopping early releases the underlying handle.
func (f *DbFile) Read(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		conn, err := f.session.storage()
		if err != nil {
			yield(nil, err)

			return
		}

		for chunk, err := range conn.ReadFile(ctx, f.id) {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll concatenates every chunk of Read.
func (f *DbFile) ReadAll(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer

	for chunk, err := range f.Read(ctx) {
		if err != nil {
			return nil, err
		}

		buf.Write(chunk)
	}

	return buf.Bytes(), nil
}

// CopyTo copies the object's content to w.
func (f *DbFile) CopyTo(ctx context.Context, w io.Writer) (int64, error) {
	var n int64

	for chunk, err := range f.Read(ctx) {
		if err != nil {
			return n, err
		}

		m, err := w.Write(chunk)
		n += int64(m)

		if err != nil {
			return n, err
		}
	}

	return n, nil
}
