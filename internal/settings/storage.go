package settings

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Storage holds named documents. Missing documents are reported with an
// error matching fs.ErrNotExist.
type Storage interface {
	Stat(name string) (int64, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// DirStorage keeps documents as files in a directory.
type DirStorage struct {
	Dir string
}

func (d DirStorage) path(name string) string {
	return filepath.Join(d.Dir, name)
}

func (d DirStorage) Stat(name string) (int64, error) {
	fi, err := os.Stat(d.path(name))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (d DirStorage) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(d.path(name))
}

// WriteFile replaces the named file via a rename, so concurrent readers see
// either the old or the new document.
func (d DirStorage) WriteFile(name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.Dir, name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.path(name))
}

// MemStorage is an in-memory Storage for tests.
type MemStorage struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes int

	// WriteError, if set, will be returned by WriteFile.
	WriteError error
}

// NewMemStorage creates an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{files: make(map[string][]byte)}
}

func (m *MemStorage) Stat(name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return int64(len(data)), nil
}

func (m *MemStorage) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *MemStorage) WriteFile(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return m.WriteError
	}
	m.files[name] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// Put stores data without counting a write.
func (m *MemStorage) Put(name string, data []byte) {
	m.mu.Lock()
	m.files[name] = append([]byte(nil), data...)
	m.mu.Unlock()
}

// Writes returns the number of successful WriteFile calls.
func (m *MemStorage) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
