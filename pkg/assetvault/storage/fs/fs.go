// Package fs provides a filesystem-backed Store rooted at a single media
// directory.
package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/assetvault/asset-vault/pkg/assetvault"
)

// Config holds filesystem backend configuration.
type Config struct {
	// BaseDir is the root directory for stored files. Created if missing.
	BaseDir string
}

// Store implements assetvault.Store on a local directory tree. Object keys
// map to slash-separated paths under BaseDir.
type Store struct {
	baseDir string
}

// New creates a filesystem store, creating BaseDir when needed.
func New(config Config) (*Store, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	abs, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	return &Store{baseDir: abs}, nil
}

// objectPath resolves key under the base directory, refusing anything that
// would escape it.
func (s *Store) objectPath(key string) (string, error) {
	if !assetvault.ValidKey(key) {
		return "", assetvault.ErrInvalidPath
	}
	p := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.baseDir+string(os.PathSeparator)) {
		return "", assetvault.ErrInvalidPath
	}
	return p, nil
}

func (s *Store) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	final := key
	p, err := s.objectPath(final)
	if err != nil {
		return "", &assetvault.StoreError{Backend: "fs", Key: key, Op: "save", Err: err}
	}
	if _, err := os.Stat(p); err == nil {
		final = alternateKey(key)
		if p, err = s.objectPath(final); err != nil {
			return "", &assetvault.StoreError{Backend: "fs", Key: key, Op: "save", Err: err}
		}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", &assetvault.StoreError{Backend: "fs", Key: final, Op: "save", Err: err}
	}
	f, err := os.Create(p)
	if err != nil {
		return "", &assetvault.StoreError{Backend: "fs", Key: final, Op: "save", Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(p)
		return "", &assetvault.StoreError{Backend: "fs", Key: final, Op: "save", Err: err}
	}
	return final, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.objectPath(key)
	if err != nil {
		return nil, &assetvault.StoreError{Backend: "fs", Key: key, Op: "open", Err: err}
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			err = assetvault.ErrFileNotFound
		}
		return nil, &assetvault.StoreError{Backend: "fs", Key: key, Op: "open", Err: err}
	}
	return f, nil
}

func (s *Store) Stat(ctx context.Context, key string) (*assetvault.StoredFile, error) {
	p, err := s.objectPath(key)
	if err != nil {
		return nil, &assetvault.StoreError{Backend: "fs", Key: key, Op: "stat", Err: err}
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			err = assetvault.ErrFileNotFound
		}
		return nil, &assetvault.StoreError{Backend: "fs", Key: key, Op: "stat", Err: err}
	}
	return &assetvault.StoredFile{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.objectPath(key)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &assetvault.StoreError{Backend: "fs", Key: key, Op: "stat", Err: err}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	p, err := s.objectPath(key)
	if err != nil {
		return &assetvault.StoreError{Backend: "fs", Key: key, Op: "delete", Err: err}
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return &assetvault.StoreError{Backend: "fs", Key: key, Op: "delete", Err: err}
	}
	return nil
}

func (s *Store) Walk(ctx context.Context, fn func(assetvault.StoredFile) error) error {
	return filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(assetvault.StoredFile{
			Key:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
}

func alternateKey(key string) string {
	dir, base := path.Split(key)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s%s_%s%s", dir, stem, uuid.NewString()[:8], ext)
}
