package filestore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/inovacc/htables/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	boltBucketFiles = "files" // key: big-endian id -> header byte + object bytes

	// Every value starts with this byte so an empty object is never stored
	// as an empty value.
	boltHeaderV1 byte = 1
)

// Bolt persists large objects in a bbolt database file.
type Bolt struct {
	db *bbolt.DB
}

var _ storage.FileStore = (*Bolt)(nil)

// OpenBolt opens (creating if needed) a bbolt file store at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening file store %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketFiles))

		return err
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func boltKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))

	return key
}

func (b *Bolt) Has(id int64) (bool, error) {
	var exists bool

	err := b.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket([]byte(boltBucketFiles)).Get(boltKey(id)) != nil

		return nil
	})

	return exists, err
}

func (b *Bolt) Get(id int64) ([]byte, error) {
	var data []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltBucketFiles)).Get(boltKey(id))
		if v == nil {
			return storage.ErrFileNotFound
		}

		if len(v) == 0 || v[0] != boltHeaderV1 {
			return fmt.Errorf("file store: corrupt object %d", id)
		}

		// bbolt values are only valid inside the transaction.
		data = append([]byte{}, v[1:]...)

		return nil
	})

	return data, err
}

func (b *Bolt) Put(id int64, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketFiles)).Put(boltKey(id), append([]byte{boltHeaderV1}, data...))
	})
}

func (b *Bolt) Delete(id int64) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		files := tx.Bucket([]byte(boltBucketFiles))
		if files.Get(boltKey(id)) == nil {
			return storage.ErrFileNotFound
		}

		return files.Delete(boltKey(id))
	})
}

func (b *Bolt) Clear() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(boltBucketFiles)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(boltBucketFiles))

		return err
	})
}
