// Package memory provides an in-memory Store for tests and development.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assetvault/asset-vault/pkg/assetvault"
)

type object struct {
	data    []byte
	modTime time.Time
}

// Store keeps objects in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &assetvault.StoreError{Backend: "memory", Key: key, Op: "save", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	final := key
	if _, taken := s.objects[final]; taken {
		final = alternateKey(key)
	}
	s.objects[final] = object{data: data, modTime: time.Now().UTC()}
	return final, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, &assetvault.StoreError{Backend: "memory", Key: key, Op: "open", Err: assetvault.ErrFileNotFound}
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Stat(ctx context.Context, key string) (*assetvault.StoredFile, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, &assetvault.StoreError{Backend: "memory", Key: key, Op: "stat", Err: assetvault.ErrFileNotFound}
	}
	return &assetvault.StoredFile{Key: key, Size: int64(len(obj.data)), ModTime: obj.modTime}, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Walk(ctx context.Context, fn func(assetvault.StoredFile) error) error {
	s.mu.RLock()
	files := make([]assetvault.StoredFile, 0, len(s.objects))
	for key, obj := range s.objects {
		files = append(files, assetvault.StoredFile{Key: key, Size: int64(len(obj.data)), ModTime: obj.modTime})
	}
	s.mu.RUnlock()
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	for _, f := range files {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// alternateKey derives a sibling key with a short random stem suffix.
func alternateKey(key string) string {
	dir, base := path.Split(key)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s%s_%s%s", dir, stem, uuid.NewString()[:8], ext)
}
