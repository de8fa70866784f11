// Package assetvault provides a digital asset management service: media
// upload with per-kind classification and metadata derivation, file-based
// versioning, preview generation, and reconciliation of database records
// against the backing store.
//
// The package exposes a Service interface backed by pluggable Repository
// (metadata) and Store (bytes) implementations. Construct one with New and
// functional options:
//
//	svc, err := assetvault.New(
//	    assetvault.WithRepository(repo),
//	    assetvault.WithStore(store),
//	    assetvault.WithExtractor(extractor),
//	    assetvault.WithPreviewBuilder(previews),
//	)
package assetvault
