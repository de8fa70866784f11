package assetvault

import (
	"errors"
	"fmt"
)

// Common errors returned by the service. Callers should match these with
// errors.Is; the HTTP layer maps them onto status codes.
var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrFileNotFound     = errors.New("stored file not found")
	ErrUnsupportedType  = errors.New("unsupported media type")
	ErrInvalidPath      = errors.New("invalid storage path")
	ErrStorageOperation = errors.New("storage operation failed")
)

// AssetError wraps errors from asset operations with the asset id and the
// operation that failed.
type AssetError struct {
	ID  int64
	Op  string
	Err error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %d: %s: %v", e.ID, e.Op, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// StoreError wraps errors from blob store operations with the backend name
// and object key.
type StoreError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidationError reports client input that the service refuses, naming
// the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
