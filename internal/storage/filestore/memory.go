// Package filestore provides the large-object stores used by the embedded
// backend.
package filestore

import (
	"sync"

	"github.com/inovacc/htables/internal/storage"
)

// Memory keeps large objects in a process-local map. Nothing survives a
// restart.
type Memory struct {
	mu    sync.RWMutex
	files map[int64][]byte
}

var _ storage.FileStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[int64][]byte)}
}

func (m *Memory) Has(id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[id]

	return ok, nil
}

func (m *Memory) Get(id int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}

	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(id int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[id] = append([]byte{}, data...)

	return nil
}

func (m *Memory) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return storage.ErrFileNotFound
	}

	delete(m.files, id)

	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.files)

	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.files)
}
