package journal

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"codeberg.org/mutker/hrcap/internal/errors"
)

// MemoryStore is a Store held in memory. It backs tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (s *MemoryStore) Append(ctx context.Context, name string, header, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return errors.New().WithData(ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[name]
	if (!ok || len(data) == 0) && header != nil {
		data = append(data, header...)
	}
	s.files[name] = append(data, record...)

	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.files {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names, nil
}

func (s *MemoryStore) Delete(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if prefix == "" {
		return errors.New().WithMessage(ErrInvalidName, "refusing to delete with an empty prefix")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name := range s.files {
		if strings.HasPrefix(name, prefix) {
			delete(s.files, name)
		}
	}

	return nil
}

func (s *MemoryStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	data, ok := s.Bytes(name)
	if !ok {
		return nil, 0, errors.New().Wrap(ErrStorageRead, os.ErrNotExist)
	}

	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (s *MemoryStore) Locate(name string) string {
	return "mem://" + name
}

// Bytes returns a copy of an artifact's content.
func (s *MemoryStore) Bytes(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[name]
	if !ok {
		return nil, false
	}

	return bytes.Clone(data), true
}
