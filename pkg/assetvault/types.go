package assetvault

import (
	"time"
)

// Kind is the coarse media class of an asset, derived from its file
// extension (preferred) or MIME type. It decides the storage subdirectory,
// which metadata gets extracted, and how previews are built.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindPDF   Kind = "pdf"
	KindModel Kind = "model"
	KindOther Kind = "other"
)

// Dir returns the storage subdirectory for the kind.
func (k Kind) Dir() string { return string(k) }

// Asset is the canonical metadata record for one stored media file.
// FileLocation is the object key inside the Store, relative to the store
// root. Derived fields (FileType, FileSizeMB, Resolution, Duration,
// PolygonCount, NoOfVersions) are owned by the service and cannot be set
// through updates. Resolution holds "WxH" pixels for images and the
// three-axis bounding-box extents for models.
type Asset struct {
	ID           int64     `json:"id"`
	FileName     string    `json:"file_name"`
	FileType     string    `json:"file_type"`
	FileSizeMB   float64   `json:"file_size"`
	FileLocation string    `json:"file_location"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags"`
	Resolution   string    `json:"resolution,omitempty"`
	Duration     *Duration `json:"duration,omitempty"`
	PolygonCount *int64    `json:"polygon_count,omitempty"`
	NoOfVersions int       `json:"no_of_versions"`
	ModifiedBy   string    `json:"modified_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// Kind reports the asset's media kind, classified from its file name and
// stored MIME type.
func (a *Asset) Kind(c *Classifier) Kind {
	return c.Classify(a.FileName, a.FileType)
}

// VersionFile describes one stored file occupying a version slot for an
// asset name.
type VersionFile struct {
	Version int    `json:"version"`
	Key     string `json:"key"`
	SizeMB  float64 `json:"file_size"`
}

// Preview holds the artifact keys produced for an asset. Either key may
// equal the asset's original location when no derived artifact could be
// produced, and ThumbnailKey is empty for kinds without thumbnails.
type Preview struct {
	Kind         Kind   `json:"kind"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
	PreviewKey   string `json:"preview_key"`
}

// ReconcileReport summarizes one reconciliation pass over the repository
// and store.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
}

// StoredFile describes one object in a Store.
type StoredFile struct {
	Key     string
	Size    int64
	ModTime time.Time
}
