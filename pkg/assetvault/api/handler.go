// Package api exposes the asset service over HTTP with chi.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/assetvault/asset-vault/pkg/assetvault"
)

const maxUploadMemory = 32 << 20

// AssetsHandler serves the asset CRUD, download, preview, version and
// reconciliation endpoints.
type AssetsHandler struct {
	svc         assetvault.Service
	log         *slog.Logger
	mediaPrefix string
}

// HandlerOption configures an AssetsHandler.
type HandlerOption func(*AssetsHandler)

// WithMediaPrefix sets the path prefix prepended to object keys in
// preview and version URLs. It must match where the router is mounted,
// e.g. "/api/v1/media" when Routes() lives under "/api/v1".
func WithMediaPrefix(prefix string) HandlerOption {
	return func(h *AssetsHandler) {
		h.mediaPrefix = strings.TrimSuffix(prefix, "/")
	}
}

// NewAssetsHandler creates the handler.
func NewAssetsHandler(svc assetvault.Service, logger *slog.Logger, options ...HandlerOption) *AssetsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &AssetsHandler{svc: svc, log: logger, mediaPrefix: "/media"}
	for _, option := range options {
		option(h)
	}
	return h
}

// Routes returns the router for mounting under the API prefix.
func (h *AssetsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/assets", func(r chi.Router) {
		r.Post("/", h.Upload)
		r.Get("/", h.List)
		r.Route("/{assetID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Get("/download", h.Download)
			r.Get("/preview", h.Preview)
			r.Get("/versions", h.Versions)
		})
	})
	r.Post("/reconcile", h.Reconcile)
	r.Get("/media/*", h.ServeMedia)
	return r
}

// Upload handles POST /assets as a multipart form with a "file" part and
// optional metadata fields.
func (h *AssetsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.renderError(w, r, &assetvault.ValidationError{Field: "body", Reason: "expected multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderError(w, r, &assetvault.ValidationError{Field: "file", Reason: "file part is required"})
		return
	}
	defer file.Close()

	fileName := header.Filename
	if v := r.FormValue("file_name"); v != "" {
		fileName = v
	}
	req := assetvault.UploadAssetRequest{
		FileName:    fileName,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
		Description: r.FormValue("description"),
		ModifiedBy:  callerIdentity(r),
		Resolution:  r.FormValue("resolution"),
	}
	req.Tags = parseTags(r.FormValue("tags"))

	if v := r.FormValue("duration"); v != "" {
		d, err := assetvault.ParseDuration(v)
		if err != nil {
			h.renderError(w, r, &assetvault.ValidationError{Field: "duration", Reason: err.Error()})
			return
		}
		req.Duration = d
	}
	if v := r.FormValue("polygon_count"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			h.renderError(w, r, &assetvault.ValidationError{Field: "polygon_count", Reason: "must be a non-negative integer"})
			return
		}
		req.PolygonCount = &n
	}

	asset, err := h.svc.UploadAsset(r.Context(), req)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, asset)
}

// List handles GET /assets.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.ListAssets(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if assets == nil {
		assets = []*assetvault.Asset{}
	}
	render.JSON(w, r, assets)
}

// Get handles GET /assets/{assetID}.
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	asset, err := h.svc.GetAsset(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, asset)
}

// Update handles PATCH /assets/{assetID}. Only file_name, description and
// tags may be changed; derived fields are refused.
func (h *AssetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.renderError(w, r, &assetvault.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}
	req, err := assetvault.ParseUpdate(body)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	req.ModifiedBy = callerIdentity(r)

	asset, err := h.svc.UpdateAsset(r.Context(), id, req)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, asset)
}

// Delete handles DELETE /assets/{assetID}.
func (h *AssetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAsset(r.Context(), id); err != nil {
		h.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /assets/{assetID}/download, streaming the stored
// bytes as an attachment.
func (h *AssetsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	rc, asset, err := h.svc.DownloadAsset(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeFor(asset.FileName))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", asset.FileName))
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WarnContext(r.Context(), "download stream aborted", "id", id, "error", err)
	}
}

type previewResponse struct {
	Kind         string  `json:"kind"`
	ThumbnailURL *string `json:"thumbnail_url"`
	PreviewURL   string  `json:"preview_url"`
}

// Preview handles GET /assets/{assetID}/preview, answering URLs for the
// derived artifacts (or the original file when none could be built).
func (h *AssetsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.BuildPreview(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	resp := previewResponse{Kind: string(p.Kind), PreviewURL: h.mediaURL(p.PreviewKey)}
	if p.ThumbnailKey != "" {
		u := h.mediaURL(p.ThumbnailKey)
		resp.ThumbnailURL = &u
	}
	render.JSON(w, r, resp)
}

type versionFileResponse struct {
	Version int     `json:"version"`
	URL     string  `json:"url"`
	SizeMB  float64 `json:"file_size"`
}

// Versions handles GET /assets/{assetID}/versions.
func (h *AssetsHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	files, err := h.svc.ListVersionFiles(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	out := make([]versionFileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, versionFileResponse{Version: f.Version, URL: h.mediaURL(f.Key), SizeMB: f.SizeMB})
	}
	render.JSON(w, r, out)
}

// Reconcile handles POST /reconcile, removing records whose stored file
// has gone missing.
func (h *AssetsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// ServeMedia handles GET /media/*, streaming stored objects and preview
// artifacts inline.
func (h *AssetsHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	rc, info, err := h.svc.OpenFile(r.Context(), key)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeFor(key))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WarnContext(r.Context(), "media stream aborted", "key", key, "error", err)
	}
}

func (h *AssetsHandler) assetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "assetID"), 10, 64)
	if err != nil || id < 1 {
		h.renderError(w, r, &assetvault.ValidationError{Field: "assetID", Reason: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *AssetsHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	var ve *assetvault.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		msg = ve.Error()
	case errors.Is(err, assetvault.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
		msg = "unsupported media type: only images, videos and .glb models are accepted"
	case errors.Is(err, assetvault.ErrAssetNotFound), errors.Is(err, assetvault.ErrFileNotFound):
		status = http.StatusNotFound
		msg = "not found"
	case errors.Is(err, assetvault.ErrInvalidPath):
		status = http.StatusBadRequest
		msg = "invalid path"
	}

	if status == http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// parseTags accepts a JSON array ("[\"a\",\"b\"]") or a comma-separated
// list ("a,b").
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			return tags
		}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func callerIdentity(r *http.Request) string {
	if u := r.Header.Get("X-User"); u != "" {
		return u
	}
	return r.FormValue("modified_by")
}

// mediaURL maps an object key onto the serving route.
func (h *AssetsHandler) mediaURL(key string) string {
	return h.mediaPrefix + "/" + key
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
