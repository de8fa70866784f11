package assetvault

import (
	"context"
	"strings"
)

// Reconcile walks the store once and removes every record whose file can
// no longer be found. A record survives when its own key exists, or when
// any stored key ends with its file name (case-insensitive), which keeps
// records alive across collision-renamed saves and manual moves inside
// the root.
func (s *service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	var keys []string
	err := s.store.Walk(ctx, func(f StoredFile) error {
		keys = append(keys, strings.ToLower(f.Key))
		return nil
	})
	if err != nil {
		return nil, err
	}

	assets, err := s.repository.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Scanned: len(assets)}
	touched := make(map[string]struct{})
	for _, a := range assets {
		if s.recordLive(ctx, a, keys) {
			continue
		}
		if err := s.repository.DeleteAsset(ctx, a.ID); err != nil {
			s.log.WarnContext(ctx, "reconcile delete failed", "id", a.ID, "error", err)
			continue
		}
		report.Removed++
		touched[a.FileName] = struct{}{}
		s.log.InfoContext(ctx, "removed orphaned record",
			"id", a.ID, "file_name", a.FileName, "file_location", a.FileLocation)
	}

	// Version counts of surviving siblings shrink with each removal.
	for name := range touched {
		live, err := s.countLiveVersions(ctx, name)
		if err != nil {
			s.log.WarnContext(ctx, "reconcile recount failed", "file_name", name, "error", err)
			continue
		}
		if err := s.repository.SetVersionCount(ctx, name, live); err != nil {
			s.log.WarnContext(ctx, "reconcile recount failed", "file_name", name, "error", err)
		}
	}
	return report, nil
}

func (s *service) recordLive(ctx context.Context, a *Asset, keys []string) bool {
	if ValidKey(a.FileLocation) {
		if ok, err := s.store.Exists(ctx, a.FileLocation); err == nil && ok {
			return true
		}
	}
	suffix := strings.ToLower(strings.TrimSpace(a.FileName))
	if suffix == "" {
		return false
	}
	for _, k := range keys {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}
