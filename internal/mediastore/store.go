package mediastore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Store writes uploaded media into a flat blob directory under generated
// names, so client filenames never touch the filesystem.
type Store struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mediastore: create dir: %w", err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// Dir returns the blob directory, for static serving.
func (s *Store) Dir() string {
	return s.dir
}

// SaveMedia streams src to disk and returns the generated filename.
func (s *Store) SaveMedia(src io.Reader, originalName string) (string, error) {
	return s.save(src, uuid.NewString()+ext(originalName))
}

// SaveCover streams an image to disk under a cover_ prefixed name.
func (s *Store) SaveCover(src io.Reader, originalName string) (string, error) {
	return s.save(src, "cover_"+uuid.NewString()+ext(originalName))
}

func (s *Store) save(src io.Reader, filename string) (string, error) {
	dst, err := s.fs.Create(path.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("mediastore: create file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = s.fs.Remove(path.Join(s.dir, filename))
		return "", fmt.Errorf("mediastore: write file: %w", err)
	}

	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("mediastore: close file: %w", err)
	}
	return filename, nil
}

// Remove deletes a blob. A missing blob is not an error.
func (s *Store) Remove(filename string) error {
	err := s.fs.Remove(path.Join(s.dir, filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func ext(name string) string {
	e := path.Ext(name)
	if e == "" || len(e) > 10 {
		return ""
	}
	return e
}
