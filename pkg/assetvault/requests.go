package assetvault

import (
	"io"
)

// UploadAssetRequest carries one file upload. Reader supplies the bytes;
// FileName and ContentType drive classification. The optional override
// fields let clients supply metadata the extractor would otherwise derive
// (or cannot, e.g. duration without a probe tool on the host).
type UploadAssetRequest struct {
	FileName    string
	ContentType string
	Reader      io.Reader

	Description string
	Tags        []string
	ModifiedBy  string

	Duration     *Duration
	PolygonCount *int64
	Resolution   string
}

// UpdateAssetRequest is a partial metadata update. Nil pointers leave the
// field untouched.
type UpdateAssetRequest struct {
	FileName    *string
	Description *string
	Tags        *[]string
	ModifiedBy  string
}

// derivedFields are owned by the service and refused in updates.
var derivedFields = map[string]struct{}{
	"id":             {},
	"file_type":      {},
	"file_size":      {},
	"file_location":  {},
	"resolution":     {},
	"duration":       {},
	"polygon_count":  {},
	"no_of_versions": {},
	"created_at":     {},
	"modified_at":    {},
}

// ParseUpdate converts a decoded JSON body into an UpdateAssetRequest.
// Derived fields are rejected with a ValidationError naming the field;
// unrecognized keys are ignored.
func ParseUpdate(body map[string]any) (UpdateAssetRequest, error) {
	var req UpdateAssetRequest
	for key, raw := range body {
		if _, forbidden := derivedFields[key]; forbidden {
			return req, &ValidationError{Field: key, Reason: "field is derived and cannot be updated"}
		}
		switch key {
		case "file_name":
			s, ok := raw.(string)
			if !ok || s == "" {
				return req, &ValidationError{Field: key, Reason: "must be a non-empty string"}
			}
			req.FileName = &s
		case "description":
			s, ok := raw.(string)
			if !ok {
				return req, &ValidationError{Field: key, Reason: "must be a string"}
			}
			req.Description = &s
		case "tags":
			tags, err := toStringSlice(raw)
			if err != nil {
				return req, &ValidationError{Field: key, Reason: "must be an array of strings"}
			}
			req.Tags = &tags
		}
	}
	return req, nil
}

func toStringSlice(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, &ValidationError{Field: "tags", Reason: "must be an array"}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, &ValidationError{Field: "tags", Reason: "must contain only strings"}
		}
		out = append(out, s)
	}
	return out, nil
}
