// Package config loads server configuration and assembles a ready-to-use
// asset service from it. Backends are chosen by URL scheme: DATABASE_URL
// selects the repository (empty means in-memory), STORAGE_URL selects the
// blob store (memory://, file://<dir>, s3://<bucket>).
package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/assetvault/asset-vault/pkg/assetvault"
	"github.com/assetvault/asset-vault/pkg/assetvault/extract"
	"github.com/assetvault/asset-vault/pkg/assetvault/preview"
	repomemory "github.com/assetvault/asset-vault/pkg/assetvault/repo/memory"
	"github.com/assetvault/asset-vault/pkg/assetvault/repo/postgres"
	storagefs "github.com/assetvault/asset-vault/pkg/assetvault/storage/fs"
	storagememory "github.com/assetvault/asset-vault/pkg/assetvault/storage/memory"
	storages3 "github.com/assetvault/asset-vault/pkg/assetvault/storage/s3"
)

// ServerConfig holds everything needed to run the server.
type ServerConfig struct {
	Port        string
	Environment string

	DatabaseURL string
	StorageURL  string

	// ReconcileOnStart runs one reconciliation pass before serving.
	ReconcileOnStart bool

	FFprobePath  string
	FFmpegPath   string
	PdftoppmPath string

	Logger *slog.Logger
}

// Option mutates the configuration during Load.
type Option func(*ServerConfig) error

// Load builds a ServerConfig from defaults and the given options.
func Load(options ...Option) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:         "8080",
		Environment:  "development",
		StorageURL:   "file://./data/media",
		FFprobePath:  "ffprobe",
		FFmpegPath:   "ffmpeg",
		PdftoppmPath: "pdftoppm",
		Logger:       slog.Default(),
	}
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		c.Logger = logger
		return nil
	}
}

// WithStorageURL overrides the blob store location.
func WithStorageURL(u string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = u
		return nil
	}
}

// WithDatabaseURL overrides the repository location.
func WithDatabaseURL(u string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = u
		return nil
	}
}

// BuildService assembles the repository, store, extractor and preview
// builder described by the configuration. The returned cleanup releases
// any held connections and is safe to call once.
func (c *ServerConfig) BuildService(ctx context.Context) (assetvault.Service, func(), error) {
	cleanup := func() {}

	repo, repoCleanup, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	if repoCleanup != nil {
		cleanup = repoCleanup
	}

	store, err := c.buildStore()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc, err := assetvault.New(
		assetvault.WithRepository(repo),
		assetvault.WithStore(store),
		assetvault.WithExtractor(extract.New(
			extract.WithLogger(c.Logger),
			extract.WithFFprobe(c.FFprobePath),
		)),
		assetvault.WithPreviewBuilder(preview.New(
			preview.WithLogger(c.Logger),
			preview.WithFFmpeg(c.FFmpegPath),
			preview.WithPdftoppm(c.PdftoppmPath),
		)),
		assetvault.WithLogger(c.Logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context) (assetvault.Repository, func(), error) {
	if c.DatabaseURL == "" {
		return repomemory.New(), nil, nil
	}
	if err := postgres.Migrate(c.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	pool, err := postgres.Connect(ctx, c.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return postgres.NewWithPool(pool), pool.Close, nil
}

func (c *ServerConfig) buildStore() (assetvault.Store, error) {
	u, err := url.Parse(c.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("parse storage url: %w", err)
	}
	switch u.Scheme {
	case "memory":
		return storagememory.New(), nil
	case "file", "":
		dir := u.Host + u.Path
		if dir == "" {
			return nil, fmt.Errorf("storage url %q: missing directory", c.StorageURL)
		}
		return storagefs.New(storagefs.Config{BaseDir: dir})
	case "s3":
		q := u.Query()
		return storages3.New(storages3.Config{
			Bucket:                 u.Host,
			Region:                 q.Get("region"),
			AccessKeyID:            q.Get("access_key"),
			SecretAccessKey:        q.Get("secret_key"),
			Endpoint:               q.Get("endpoint"),
			UseSSL:                 !strings.EqualFold(q.Get("use_ssl"), "false"),
			UsePathStyle:           strings.EqualFold(q.Get("path_style"), "true"),
			CreateBucketIfNotExist: strings.EqualFold(q.Get("create_bucket"), "true"),
		})
	default:
		return nil, fmt.Errorf("storage url %q: unsupported scheme %q", c.StorageURL, u.Scheme)
	}
}
