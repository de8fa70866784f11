// Package postgres provides a PostgreSQL-backed Repository using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetvault/asset-vault/pkg/assetvault"
)

// DBTX is the database interface used by the repository. Both pgx
// connections/pools and transactions satisfy it, so callers can run the
// repository inside a transaction when needed.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements assetvault.Repository on PostgreSQL.
type Repository struct {
	db DBTX
}

// New creates a repository over an existing connection, pool or
// transaction.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a repository backed by a pgx connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// handlePostgresError maps PostgreSQL error codes onto domain errors.
func handlePostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return assetvault.ErrAssetNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("duplicate record: %s", pgErr.Detail)
		case "23502":
			return fmt.Errorf("missing required field: %s", pgErr.ColumnName)
		case "42P01":
			return fmt.Errorf("schema not migrated: %s", pgErr.Message)
		}
	}
	return err
}

const assetColumns = `id, file_name, file_type, file_size, file_location,
	description, tags, resolution, duration_seconds, polygon_count,
	no_of_versions, modified_by, created_at, modified_at`

func (r *Repository) CreateAsset(ctx context.Context, a *assetvault.Asset) error {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `
		INSERT INTO assets (file_name, file_type, file_size, file_location,
			description, tags, resolution, duration_seconds, polygon_count,
			no_of_versions, modified_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id`,
		a.FileName, a.FileType, a.FileSizeMB, a.FileLocation,
		a.Description, tagsOrEmpty(a.Tags), nullString(a.Resolution), durationSeconds(a.Duration),
		a.PolygonCount, a.NoOfVersions, nullString(a.ModifiedBy), now,
	).Scan(&a.ID)
	if err != nil {
		return handlePostgresError(err)
	}
	a.CreatedAt = now
	a.ModifiedAt = now
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id int64) (*assetvault.Asset, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	return scanAsset(row)
}

func (r *Repository) UpdateAsset(ctx context.Context, a *assetvault.Asset) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, `
		UPDATE assets
		SET file_name = $2, description = $3, tags = $4, modified_by = $5,
			file_type = $6, file_size = $7, modified_at = $8
		WHERE id = $1`,
		a.ID, a.FileName, a.Description, tagsOrEmpty(a.Tags), nullString(a.ModifiedBy),
		a.FileType, a.FileSizeMB, now)
	if err != nil {
		return handlePostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return assetvault.ErrAssetNotFound
	}
	a.ModifiedAt = now
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return assetvault.ErrAssetNotFound
	}
	return nil
}

func (r *Repository) ListAssets(ctx context.Context) ([]*assetvault.Asset, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+assetColumns+` FROM assets ORDER BY modified_at DESC, id DESC`)
	if err != nil {
		return nil, handlePostgresError(err)
	}
	defer rows.Close()
	return scanAssets(rows)
}

func (r *Repository) ListAssetsByName(ctx context.Context, fileName string) ([]*assetvault.Asset, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE file_name = $1 ORDER BY id`,
		fileName)
	if err != nil {
		return nil, handlePostgresError(err)
	}
	defer rows.Close()
	return scanAssets(rows)
}

func (r *Repository) SetVersionCount(ctx context.Context, fileName string, n int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE assets SET no_of_versions = $2 WHERE file_name = $1`,
		fileName, n)
	return handlePostgresError(err)
}

func scanAssets(rows pgx.Rows) ([]*assetvault.Asset, error) {
	var out []*assetvault.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAsset(row pgx.Row) (*assetvault.Asset, error) {
	var (
		a           assetvault.Asset
		description *string
		resolution  *string
		durationSec *float64
		modifiedBy  *string
	)
	err := row.Scan(&a.ID, &a.FileName, &a.FileType, &a.FileSizeMB,
		&a.FileLocation, &description, &a.Tags, &resolution, &durationSec,
		&a.PolygonCount, &a.NoOfVersions, &modifiedBy,
		&a.CreatedAt, &a.ModifiedAt)
	if err != nil {
		return nil, handlePostgresError(err)
	}
	a.Description = deref(description)
	a.Resolution = deref(resolution)
	a.ModifiedBy = deref(modifiedBy)
	if durationSec != nil {
		a.Duration = assetvault.NewDuration(time.Duration(*durationSec * float64(time.Second)))
	}
	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func durationSeconds(d *assetvault.Duration) *float64 {
	if d == nil {
		return nil
	}
	secs := d.Seconds()
	return &secs
}
