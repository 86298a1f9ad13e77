// Package golden reads and writes the expected-output snapshots that live next to fixtures.
package golden

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

// Store holds golden snapshots by name. Names are slash-separated paths relative to the fixture
// root, such as "borrowck/assign.a.stderr".
type Store interface {
	// Read returns the snapshot and true, or "" and false if there is none.
	Read(name string) (string, bool, error)
	Write(name, text string) error
	// Remove deletes a snapshot; removing an absent snapshot is not an error.
	Remove(name string) error
}

// LockFileName is the lock file DirStore creates in its root directory.
const LockFileName = ".ui-test.lock"

// DirStore keeps snapshots as files under Root. Writes are atomic, and are serialized across
// processes with a lock file, so several harness processes can bless the same tree.
type DirStore struct {
	Root string
}

func (s DirStore) path(name string) string {
	return filepath.Join(s.Root, filepath.FromSlash(name))
}

func (s DirStore) Read(name string) (string, bool, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read golden file %s: %w", name, err)
	}
	return string(data), true, nil
}

func (s DirStore) Write(name, text string) error {
	return s.locked(func() error {
		return atomicWrite(s.path(name), []byte(text))
	})
}

func (s DirStore) Remove(name string) error {
	return s.locked(func() error {
		err := os.Remove(s.path(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove golden file %s: %w", name, err)
		}
		return nil
	})
}

func (s DirStore) locked(action func() error) error {
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.Root, err)
	}
	lockPath := filepath.Join(s.Root, LockFileName)
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", lockPath, err)
	}
	defer lock.Unlock() //nolint:errcheck
	return action()
}

// atomicWrite writes data to a temporary file in the target directory and renames it into place,
// so readers never see a partial snapshot.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		if tempFile != nil {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()
	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	tempFile = nil
	return nil
}

// MemoryStore is a Store that never touches the disk. The zero value is ready to use.
type MemoryStore struct {
	lock  sync.Mutex
	files map[string]string
}

// NewMemoryStore returns a MemoryStore holding a copy of files.
func NewMemoryStore(files map[string]string) *MemoryStore {
	s := &MemoryStore{files: make(map[string]string, len(files))}
	for k, v := range files {
		s.files[k] = v
	}
	return s
}

func (s *MemoryStore) Read(name string) (string, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	text, ok := s.files[name]
	return text, ok, nil
}

func (s *MemoryStore) Write(name, text string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.files == nil {
		s.files = make(map[string]string)
	}
	s.files[name] = text
	return nil
}

func (s *MemoryStore) Remove(name string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.files, name)
	return nil
}

// Names returns the names of all stored snapshots, sorted.
func (s *MemoryStore) Names() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	ret := make([]string, 0, len(s.files))
	for name := range s.files {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}
