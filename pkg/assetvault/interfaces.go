package assetvault

import (
	"context"
	"io"
	"time"
)

// Repository persists asset metadata records. Implementations must return
// ErrAssetNotFound for missing ids.
type Repository interface {
	// CreateAsset inserts a new record and assigns its ID and timestamps.
	CreateAsset(ctx context.Context, a *Asset) error

	// GetAsset fetches one record by id.
	GetAsset(ctx context.Context, id int64) (*Asset, error)

	// UpdateAsset persists mutable fields of an existing record and
	// refreshes ModifiedAt.
	UpdateAsset(ctx context.Context, a *Asset) error

	// DeleteAsset removes the record.
	DeleteAsset(ctx context.Context, id int64) error

	// ListAssets returns all records, most recently modified first.
	ListAssets(ctx context.Context) ([]*Asset, error)

	// ListAssetsByName returns all records sharing a logical file name,
	// oldest first.
	ListAssetsByName(ctx context.Context, fileName string) ([]*Asset, error)

	// SetVersionCount sets NoOfVersions on every record sharing fileName.
	SetVersionCount(ctx context.Context, fileName string, n int) error
}

// Store persists file bytes under hierarchical object keys. Backends exist
// for the local filesystem, memory and S3-compatible object stores.
type Store interface {
	// Save writes r under key. When key is already taken the store picks a
	// sibling key with a short random stem suffix and returns the key the
	// bytes actually live under.
	Save(ctx context.Context, key string, r io.Reader) (string, error)

	// Open returns a reader over the object. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat describes the object, or ErrFileNotFound.
	Stat(ctx context.Context, key string) (*StoredFile, error)

	// Exists reports whether the object is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Walk visits every object in the store. Returning an error from fn
	// stops the walk and is returned to the caller.
	Walk(ctx context.Context, fn func(StoredFile) error) error
}

// Extractor derives technical metadata from file content. Implementations
// are best effort: a failed probe reports its zero value, never an error
// that would block an upload.
type Extractor interface {
	// ImageResolution returns "WxH" for a decodable image, "" otherwise.
	ImageResolution(ctx context.Context, r io.Reader) string

	// VideoDuration probes the stream length of a video. ok is false when
	// no probe tool is available or the content cannot be parsed.
	VideoDuration(ctx context.Context, r io.Reader) (d time.Duration, ok bool)

	// ModelStats reads a binary glTF document and reports its triangle
	// count and axis-aligned bounding box extents ("X.XxY.XxZ.X").
	ModelStats(ctx context.Context, r io.Reader) (polygons int64, boundingBox string, ok bool)
}

// PreviewBuilder produces (and caches in the store) derived preview
// artifacts for an asset. Builders fall back to the original object key
// when an artifact cannot be produced.
type PreviewBuilder interface {
	Build(ctx context.Context, a *Asset, kind Kind, store Store) (*Preview, error)
}

// Service is the business-logic facade for asset management.
type Service interface {
	// UploadAsset stores a new file, derives its metadata and creates its
	// record, assigning the next free version slot for the file name.
	UploadAsset(ctx context.Context, req UploadAssetRequest) (*Asset, error)

	// GetAsset returns one record.
	GetAsset(ctx context.Context, id int64) (*Asset, error)

	// ListAssets returns all records, most recently modified first.
	ListAssets(ctx context.Context) ([]*Asset, error)

	// UpdateAsset applies a partial metadata update. Only file name,
	// description and tags may change; derived fields are rejected with a
	// ValidationError.
	UpdateAsset(ctx context.Context, id int64, req UpdateAssetRequest) (*Asset, error)

	// DeleteAsset removes the record and its stored file and artifacts.
	DeleteAsset(ctx context.Context, id int64) error

	// DownloadAsset opens the stored bytes for a record.
	DownloadAsset(ctx context.Context, id int64) (io.ReadCloser, *Asset, error)

	// OpenFile opens a stored object directly by key, for serving media
	// and preview artifacts. Keys with traversal segments are refused
	// with ErrInvalidPath.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, *StoredFile, error)

	// BuildPreview returns preview artifact keys for a record, producing
	// them on first use.
	BuildPreview(ctx context.Context, id int64) (*Preview, error)

	// ListVersionFiles lists the stored files occupying version slots for
	// the record's file name.
	ListVersionFiles(ctx context.Context, id int64) ([]VersionFile, error)

	// Reconcile removes records whose stored file has gone missing.
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}
