package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/assetvault/asset-vault/pkg/assetvault"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func TestSaveAndOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.Save(ctx, "image/1/logo.png", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if key != "image/1/logo.png" {
		t.Errorf("Save() key = %q, want original key", key)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content = %q, want %q", data, "content")
	}
}

func TestSaveAvoidsCollisions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, "image/1/logo.png", strings.NewReader("one"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, err := store.Save(ctx, "image/1/logo.png", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if second == first {
		t.Fatalf("Save() reused key %q for colliding write", second)
	}
	if !strings.HasPrefix(second, "image/1/logo_") || !strings.HasSuffix(second, ".png") {
		t.Errorf("Save() collision key = %q, want suffixed stem", second)
	}

	// The first object is untouched.
	rc, err := store.Open(ctx, first)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "one" {
		t.Errorf("original content = %q, want %q", data, "one")
	}
}

func TestStatAndExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "a/b/c.txt", strings.NewReader("12345")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := store.Stat(ctx, "a/b/c.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != 5 {
		t.Errorf("Stat() size = %d, want 5", info.Size)
	}

	ok, err := store.Exists(ctx, "a/b/c.txt")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v, want true, nil", ok, err)
	}
	ok, err = store.Exists(ctx, "a/b/missing.txt")
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v, want false, nil", ok, err)
	}

	if _, err := store.Stat(ctx, "a/b/missing.txt"); !errors.Is(err, assetvault.ErrFileNotFound) {
		t.Errorf("Stat() missing error = %v, want ErrFileNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "x/1/f.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "x/1/f.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := store.Exists(ctx, "x/1/f.txt"); ok {
		t.Error("object still exists after Delete()")
	}
	// Deleting again is fine.
	if err := store.Delete(ctx, "x/1/f.txt"); err != nil {
		t.Errorf("Delete() second call error = %v", err)
	}
}

func TestWalk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"image/1/a.png", "image/2/a.png", "video/1/b.mp4"} {
		if _, err := store.Save(ctx, key, strings.NewReader("x")); err != nil {
			t.Fatalf("Save(%q) error = %v", key, err)
		}
	}

	seen := map[string]bool{}
	err := store.Walk(ctx, func(f assetvault.StoredFile) error {
		seen[f.Key] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	for _, key := range []string{"image/1/a.png", "image/2/a.png", "video/1/b.mp4"} {
		if !seen[key] {
			t.Errorf("Walk() missed %q", key)
		}
	}
}

func TestRefusesTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := New(Config{BaseDir: filepath.Join(dir, "media")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	secret := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Open(ctx, "../secret.txt"); !errors.Is(err, assetvault.ErrInvalidPath) {
		t.Errorf("Open(traversal) error = %v, want ErrInvalidPath", err)
	}
	if _, err := store.Save(ctx, "../evil.txt", strings.NewReader("x")); !errors.Is(err, assetvault.ErrInvalidPath) {
		t.Errorf("Save(traversal) error = %v, want ErrInvalidPath", err)
	}
	if _, err := store.Open(ctx, "/etc/passwd"); !errors.Is(err, assetvault.ErrInvalidPath) {
		t.Errorf("Open(absolute) error = %v, want ErrInvalidPath", err)
	}
}
