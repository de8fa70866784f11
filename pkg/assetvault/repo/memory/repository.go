// Package memory provides an in-memory Repository for tests and
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/assetvault/asset-vault/pkg/assetvault"
)

// Repository keeps asset records in a map. Safe for concurrent use.
// Records are copied on the way in and out so callers cannot mutate
// shared state.
type Repository struct {
	mu     sync.RWMutex
	assets map[int64]*assetvault.Asset
	nextID int64
}

// New creates an empty in-memory repository.
func New() *Repository {
	return &Repository{assets: make(map[int64]*assetvault.Asset), nextID: 1}
}

func (r *Repository) CreateAsset(ctx context.Context, a *assetvault.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	a.ID = r.nextID
	r.nextID++
	a.CreatedAt = now
	a.ModifiedAt = now
	r.assets[a.ID] = copyAsset(a)
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id int64) (*assetvault.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, assetvault.ErrAssetNotFound
	}
	return copyAsset(a), nil
}

func (r *Repository) UpdateAsset(ctx context.Context, a *assetvault.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.assets[a.ID]
	if !ok {
		return assetvault.ErrAssetNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.ModifiedAt = time.Now().UTC()
	r.assets[a.ID] = copyAsset(a)
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[id]; !ok {
		return assetvault.ErrAssetNotFound
	}
	delete(r.assets, id)
	return nil
}

func (r *Repository) ListAssets(ctx context.Context) ([]*assetvault.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*assetvault.Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, copyAsset(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out, nil
}

func (r *Repository) ListAssetsByName(ctx context.Context, fileName string) ([]*assetvault.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*assetvault.Asset
	for _, a := range r.assets {
		if a.FileName == fileName {
			out = append(out, copyAsset(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) SetVersionCount(ctx context.Context, fileName string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.FileName == fileName {
			a.NoOfVersions = n
		}
	}
	return nil
}

func copyAsset(a *assetvault.Asset) *assetvault.Asset {
	c := *a
	if a.Tags != nil {
		c.Tags = append([]string(nil), a.Tags...)
	}
	if a.Duration != nil {
		d := *a.Duration
		c.Duration = &d
	}
	if a.PolygonCount != nil {
		p := *a.PolygonCount
		c.PolygonCount = &p
	}
	return &c
}
