package journal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"codeberg.org/mutker/hrcap/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// FileStore keeps each artifact as a file in one directory.
type FileStore struct {
	dir  string
	sync bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed. With sync set, every append is
// fsynced before it is reported as done.
func NewFileStore(dir string, sync bool) (*FileStore, error) {
	errFactory := errors.New()

	if dir == "" {
		return nil, errFactory.WithMessage(errors.ErrInvalidConfig, "journal directory is empty")
	}
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(errors.ErrInitFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_journal_dir",
			Path:  dir,
			Error: err.Error(),
		})
	}

	return &FileStore{
		dir:   filepath.Clean(dir),
		sync:  sync,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Append(ctx context.Context, name string, header, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(name)
	if err != nil {
		return err
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	errFactory := errors.New()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return errFactory.Wrap(ErrStorageWrite, err)
	}
	defer f.Close()

	buf := record
	if header != nil {
		info, err := f.Stat()
		if err != nil {
			return errFactory.Wrap(ErrStorageWrite, err)
		}
		if info.Size() == 0 {
			buf = make([]byte, 0, len(header)+len(record))
			buf = append(buf, header...)
			buf = append(buf, record...)
		}
	}

	if _, err := f.Write(buf); err != nil {
		return errFactory.Wrap(ErrStorageWrite, err)
	}

	if s.sync {
		if err := f.Sync(); err != nil {
			return errFactory.Wrap(ErrStorageWrite, err)
		}
	}

	if err := f.Close(); err != nil {
		return errFactory.Wrap(ErrStorageWrite, err)
	}

	return nil
}

func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageList, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

func (s *FileStore) Delete(ctx context.Context, prefix string) error {
	if prefix == "" {
		return errors.New().WithMessage(ErrInvalidName, "refusing to delete with an empty prefix")
	}

	names, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		lock := s.lockFor(name)
		lock.Lock()
		err := os.Remove(filepath.Join(s.dir, name))
		lock.Unlock()

		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.New().Wrap(ErrStorageDelete, errors.Join(errs...))
	}

	return nil
}

func (s *FileStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	path, err := s.path(name)
	if err != nil {
		return nil, 0, err
	}

	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errFactory.Wrap(ErrStorageRead, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errFactory.Wrap(ErrStorageRead, err)
	}

	return f, info.Size(), nil
}

func (s *FileStore) Locate(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errors.New().WithData(ErrInvalidName, name)
	}

	return filepath.Join(s.dir, name), nil
}

// lockFor returns the mutex serialising writes to one artifact.
func (s *FileStore) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}

	return lock
}
