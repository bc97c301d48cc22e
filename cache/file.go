package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// fileExt is appended to artifact names to form file names.
const fileExt = ".vvdf"

// FileStore stores artifacts as files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created if it
// doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory artifacts are stored in.
func (fsys *FileStore) Dir() string { return fsys.dir }

// Get reads the artifact file for name.
func (fsys *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fsys.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

// Put writes data to a temporary file and renames it over the artifact so
// readers never observe a partial write.
func (fsys *FileStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	fp, err := os.CreateTemp(fsys.dir, name+".tmp*")
	if err != nil {
		return err
	}
	tmp := fp.Name()
	_, err = fp.Write(data)
	if err == nil {
		err = fp.Sync()
	}
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, fsys.path(name))
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

// Delete removes the artifact file for name.
func (fsys *FileStore) Delete(_ context.Context, name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	err := os.Remove(fsys.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (fsys *FileStore) path(name string) string {
	return filepath.Join(fsys.dir, name+fileExt)
}

var _ Store = (*FileStore)(nil)
