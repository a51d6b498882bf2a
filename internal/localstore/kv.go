// Package localstore gives the entity store a durable backing store scoped
// to the device, used while the session is in local mode.
package localstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage keys for the persisted snapshots and the remote configuration blob.
const (
	KeyTransactions = "ledger.transactions"
	KeyExpenses     = "ledger.expenses"
	KeyRemoteConfig = "ledger.remote_config"
)

// KV is the durable key-value storage consumed by the local adapter and the
// session. Get reports absence separately from failure.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// FileKV stores each key as a file under a data directory. Writes go through
// a temp file and a rename so a crash never leaves a half-written snapshot.
type FileKV struct {
	dir string
}

func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &FileKV{dir: dir}, nil
}

func (s *FileKV) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileKV) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}

	return string(data), true, nil
}

func (s *FileKV) Set(key, value string) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("replacing %s: %w", key, err)
	}

	return nil
}

func (s *FileKV) Remove(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", key, err)
	}

	return nil
}

// MemKV is an in-memory KV for ephemeral runs and tests.
type MemKV struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemKV() *MemKV {
	return &MemKV{values: make(map[string]string)}
}

func (s *MemKV) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]

	return v, ok, nil
}

func (s *MemKV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	return nil
}

func (s *MemKV) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)

	return nil
}
