package assetvault

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var unsafeStemChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeStem strips the extension from a file name and collapses any run of
// characters outside [A-Za-z0-9._-] into a single underscore, yielding a
// string safe to embed in object keys.
func SafeStem(filename string) string {
	base := path.Base(filename)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return unsafeStemChars.ReplaceAllString(stem, "_")
}

// ObjectKey returns the canonical storage key for version slot n of a
// file: "<kind>/<n>/<basename>". The base name is taken so callers cannot
// smuggle path segments through the file name.
func ObjectKey(kind Kind, version int, filename string) string {
	return fmt.Sprintf("%s/%d/%s", kind.Dir(), version, path.Base(filename))
}

// ThumbnailKey and PreviewKey name the derived artifacts for an asset.
// Keyed by record id so regeneration after a metadata rename stays cheap.
func ThumbnailKey(id int64) string { return fmt.Sprintf("thumbnails/%d.jpg", id) }

// PreviewKey returns the object key of the full-size preview artifact.
func PreviewKey(id int64) string { return fmt.Sprintf("previews/%d.jpg", id) }

// ValidKey reports whether key is a clean, relative object key with no
// traversal segments. Every key read back from the repository passes
// through this before it is handed to a Store.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	clean := path.Clean(key)
	if clean != key {
		return false
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return false
		}
	}
	return true
}

// sameVersionFile reports whether a stored base name belongs to fileName's
// version ledger: either an exact case-insensitive match, or the renamed
// form "<stem>_<8 hex chars><ext>" a Store produces when a slot key is
// already taken.
func sameVersionFile(base, fileName string) bool {
	base = strings.ToLower(base)
	want := strings.ToLower(path.Base(fileName))
	if base == want {
		return true
	}
	ext := path.Ext(want)
	stem := strings.TrimSuffix(want, ext)
	if !strings.HasPrefix(base, stem+"_") || !strings.HasSuffix(base, ext) {
		return false
	}
	suffix := strings.TrimSuffix(strings.TrimPrefix(base, stem+"_"), ext)
	if len(suffix) != 8 {
		return false
	}
	for _, r := range suffix {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// versionFromKey extracts the version slot from a canonical object key,
// returning 0 when the key does not follow the <kind>/<n>/<name> layout.
func versionFromKey(key string) int {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return 0
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 {
		return 0
	}
	return n
}
