package assetvault

import (
	"context"
	"fmt"
	"io"
	"math"
	"mime"
	"path"
	"sort"
	"strings"
)

// SizeMB converts a byte count to megabytes rounded to four decimals, the
// precision stored on asset records.
func SizeMB(n int64) float64 {
	mb := float64(n) / (1024 * 1024)
	return math.Round(mb*10000) / 10000
}

func (s *service) UploadAsset(ctx context.Context, req UploadAssetRequest) (*Asset, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return nil, &ValidationError{Field: "file", Reason: "file name is required"}
	}
	if req.Reader == nil {
		return nil, &ValidationError{Field: "file", Reason: "file content is required"}
	}
	if !s.classifier.Uploadable(req.FileName, req.ContentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, req.FileName)
	}
	kind := s.classifier.Classify(req.FileName, req.ContentType)
	fileName := path.Base(req.FileName)

	lock := s.lockName(fileName)
	lock.Lock()
	defer lock.Unlock()

	live, err := s.countLiveVersions(ctx, fileName)
	if err != nil {
		return nil, fmt.Errorf("count versions for %q: %w", fileName, err)
	}
	slot := live + 1

	key, err := s.store.Save(ctx, ObjectKey(kind, slot, fileName), req.Reader)
	if err != nil {
		return nil, fmt.Errorf("save %q: %w", fileName, err)
	}

	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}

	asset := &Asset{
		FileName:     fileName,
		FileType:     mimeType(req.ContentType, fileName),
		FileSizeMB:   SizeMB(info.Size),
		FileLocation: key,
		Description:  req.Description,
		Tags:         req.Tags,
		NoOfVersions: slot,
		ModifiedBy:   req.ModifiedBy,
	}
	s.deriveMetadata(ctx, asset, kind, req)

	if err := s.repository.CreateAsset(ctx, asset); err != nil {
		// The bytes are already stored; remove them so a failed insert
		// does not leave a file without a record.
		_ = s.store.Delete(ctx, key)
		return nil, fmt.Errorf("create asset record: %w", err)
	}
	if err := s.repository.SetVersionCount(ctx, fileName, slot); err != nil {
		return nil, fmt.Errorf("update version count for %q: %w", fileName, err)
	}

	s.log.InfoContext(ctx, "asset uploaded",
		"id", asset.ID, "file_name", fileName, "kind", kind, "version", slot)
	return asset, nil
}

// mimeType picks the MIME type stored on a record: the client's declared
// content type when it names one, otherwise a guess from the file extension.
func mimeType(declared, fileName string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if mt := mime.TypeByExtension(strings.ToLower(path.Ext(fileName))); mt != "" {
		return mt
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

// countLiveVersions counts sibling records whose stored file is still
// present. Records pointing at deleted or invalid keys do not hold a slot.
func (s *service) countLiveVersions(ctx context.Context, fileName string) (int, error) {
	siblings, err := s.repository.ListAssetsByName(ctx, fileName)
	if err != nil {
		return 0, err
	}
	live := 0
	for _, sib := range siblings {
		if !ValidKey(sib.FileLocation) {
			continue
		}
		ok, err := s.store.Exists(ctx, sib.FileLocation)
		if err != nil {
			return 0, err
		}
		if ok {
			live++
		}
	}
	return live, nil
}

// deriveMetadata fills kind-specific fields, preferring client-supplied
// overrides over extraction. Extraction is best effort; a failed probe
// leaves the field empty.
func (s *service) deriveMetadata(ctx context.Context, a *Asset, kind Kind, req UploadAssetRequest) {
	switch kind {
	case KindImage:
		if req.Resolution != "" {
			a.Resolution = req.Resolution
			return
		}
		s.withContent(ctx, a.FileLocation, func(r io.Reader) {
			a.Resolution = s.extractor.ImageResolution(ctx, r)
		})
	case KindVideo:
		if req.Duration != nil {
			a.Duration = req.Duration
			return
		}
		s.withContent(ctx, a.FileLocation, func(r io.Reader) {
			if d, ok := s.extractor.VideoDuration(ctx, r); ok {
				a.Duration = NewDuration(d)
			}
		})
	case KindModel:
		if req.PolygonCount != nil {
			a.PolygonCount = req.PolygonCount
		}
		if req.Resolution != "" {
			a.Resolution = req.Resolution
		}
		if a.PolygonCount == nil || a.Resolution == "" {
			s.withContent(ctx, a.FileLocation, func(r io.Reader) {
				polygons, bbox, ok := s.extractor.ModelStats(ctx, r)
				if !ok {
					return
				}
				if a.PolygonCount == nil {
					a.PolygonCount = &polygons
				}
				if a.Resolution == "" {
					a.Resolution = bbox
				}
			})
		}
	}
}

// withContent opens a stored object and hands it to fn, skipping silently
// when no extractor is configured or the object cannot be opened.
func (s *service) withContent(ctx context.Context, key string, fn func(io.Reader)) {
	if s.extractor == nil {
		return
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "open for metadata extraction failed", "key", key, "error", err)
		return
	}
	defer rc.Close()
	fn(rc)
}

func (s *service) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, &AssetError{ID: id, Op: "get", Err: err}
	}
	return asset, nil
}

func (s *service) ListAssets(ctx context.Context) ([]*Asset, error) {
	assets, err := s.repository.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		s.backfill(ctx, a)
	}
	return assets, nil
}

// backfill repairs size and type fields missing from older records as a
// read-side fixup. Failures leave the record as it was.
func (s *service) backfill(ctx context.Context, a *Asset) {
	if a.FileType != "" && a.FileSizeMB > 0 {
		return
	}
	changed := false
	if a.FileType == "" {
		if mt := mime.TypeByExtension(strings.ToLower(path.Ext(a.FileName))); mt != "" {
			a.FileType = mt
			changed = true
		}
	}
	if a.FileSizeMB == 0 && ValidKey(a.FileLocation) {
		if info, err := s.store.Stat(ctx, a.FileLocation); err == nil {
			a.FileSizeMB = SizeMB(info.Size)
			changed = true
		}
	}
	if changed {
		if err := s.repository.UpdateAsset(ctx, a); err != nil {
			s.log.WarnContext(ctx, "metadata backfill failed", "id", a.ID, "error", err)
		}
	}
}

func (s *service) UpdateAsset(ctx context.Context, id int64, req UpdateAssetRequest) (*Asset, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, &AssetError{ID: id, Op: "update", Err: err}
	}
	if req.FileName != nil {
		asset.FileName = path.Base(*req.FileName)
	}
	if req.Description != nil {
		asset.Description = *req.Description
	}
	if req.Tags != nil {
		asset.Tags = *req.Tags
	}
	if req.ModifiedBy != "" {
		asset.ModifiedBy = req.ModifiedBy
	}
	if err := s.repository.UpdateAsset(ctx, asset); err != nil {
		return nil, &AssetError{ID: id, Op: "update", Err: err}
	}
	return asset, nil
}

func (s *service) DeleteAsset(ctx context.Context, id int64) error {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return &AssetError{ID: id, Op: "delete", Err: err}
	}

	lock := s.lockName(asset.FileName)
	lock.Lock()
	defer lock.Unlock()

	if ValidKey(asset.FileLocation) {
		if err := s.store.Delete(ctx, asset.FileLocation); err != nil {
			return &AssetError{ID: id, Op: "delete", Err: err}
		}
	}
	// Derived artifacts are keyed by id; drop them alongside the original.
	_ = s.store.Delete(ctx, ThumbnailKey(id))
	_ = s.store.Delete(ctx, PreviewKey(id))

	if err := s.repository.DeleteAsset(ctx, id); err != nil {
		return &AssetError{ID: id, Op: "delete", Err: err}
	}

	live, err := s.countLiveVersions(ctx, asset.FileName)
	if err != nil {
		return &AssetError{ID: id, Op: "delete", Err: err}
	}
	if err := s.repository.SetVersionCount(ctx, asset.FileName, live); err != nil {
		return &AssetError{ID: id, Op: "delete", Err: err}
	}

	s.log.InfoContext(ctx, "asset deleted", "id", id, "file_name", asset.FileName)
	return nil
}

func (s *service) DownloadAsset(ctx context.Context, id int64) (io.ReadCloser, *Asset, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, nil, &AssetError{ID: id, Op: "download", Err: err}
	}
	if !ValidKey(asset.FileLocation) {
		return nil, nil, &AssetError{ID: id, Op: "download", Err: ErrInvalidPath}
	}
	rc, err := s.store.Open(ctx, asset.FileLocation)
	if err != nil {
		return nil, nil, &AssetError{ID: id, Op: "download", Err: err}
	}
	return rc, asset, nil
}

func (s *service) OpenFile(ctx context.Context, key string) (io.ReadCloser, *StoredFile, error) {
	if !ValidKey(key) {
		return nil, nil, ErrInvalidPath
	}
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return rc, info, nil
}

func (s *service) BuildPreview(ctx context.Context, id int64) (*Preview, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, &AssetError{ID: id, Op: "preview", Err: err}
	}
	kind := asset.Kind(s.classifier)
	if s.previews == nil || !ValidKey(asset.FileLocation) {
		return &Preview{Kind: kind, PreviewKey: asset.FileLocation}, nil
	}
	preview, err := s.previews.Build(ctx, asset, kind, s.store)
	if err != nil {
		// Preview generation never blocks reads; fall back to the original.
		s.log.WarnContext(ctx, "preview build failed", "id", id, "error", err)
		return &Preview{Kind: kind, PreviewKey: asset.FileLocation}, nil
	}
	return preview, nil
}

func (s *service) ListVersionFiles(ctx context.Context, id int64) ([]VersionFile, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, &AssetError{ID: id, Op: "versions", Err: err}
	}
	kindDir := asset.Kind(s.classifier).Dir()
	ownKey := asset.FileLocation

	var files []VersionFile
	err = s.store.Walk(ctx, func(f StoredFile) error {
		parts := strings.Split(f.Key, "/")
		if len(parts) != 3 || parts[0] != kindDir {
			return nil
		}
		if !sameVersionFile(parts[2], asset.FileName) && f.Key != ownKey {
			return nil
		}
		v := versionFromKey(f.Key)
		if v == 0 {
			return nil
		}
		files = append(files, VersionFile{Version: v, Key: f.Key, SizeMB: SizeMB(f.Size)})
		return nil
	})
	if err != nil {
		return nil, &AssetError{ID: id, Op: "versions", Err: err}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}
