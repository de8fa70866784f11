package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetvault/asset-vault/pkg/assetvault"
	"github.com/assetvault/asset-vault/pkg/assetvault/extract"
	repomemory "github.com/assetvault/asset-vault/pkg/assetvault/repo/memory"
	storagememory "github.com/assetvault/asset-vault/pkg/assetvault/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc, err := assetvault.New(
		assetvault.WithRepository(repomemory.New()),
		assetvault.WithStore(storagememory.New()),
		assetvault.WithExtractor(extract.New()),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(NewAssetsHandler(svc, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func multipartUpload(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6))))
	return buf.Bytes()
}

func uploadAsset(t *testing.T, srv *httptest.Server, fileName string, content []byte, fields map[string]string) assetvault.Asset {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, content, fields)
	resp, err := http.Post(srv.URL+"/assets/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var asset assetvault.Asset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&asset))
	return asset
}

func TestUploadEndpoint(t *testing.T) {
	srv := newTestServer(t)

	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), map[string]string{
		"description": "the logo",
		"tags":        "brand, web",
	})
	assert.Equal(t, "logo.png", asset.FileName)
	assert.Equal(t, "image/png", asset.FileType)
	assert.Equal(t, "8x6", asset.Resolution)
	assert.Equal(t, "the logo", asset.Description)
	assert.Equal(t, []string{"brand", "web"}, asset.Tags)
	assert.Equal(t, 1, asset.NoOfVersions)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t, "notes.txt", []byte("hello"), nil)
	resp, err := http.Post(srv.URL+"/assets/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUploadMalformedDuration(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t, "clip.mp4", []byte("x"), map[string]string{
		"duration": "not-a-duration",
	})
	resp, err := http.Post(srv.URL+"/assets/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var msg map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Contains(t, msg["error"], "duration")
}

func TestUploadWithoutFilePart(t *testing.T) {
	srv := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("description", "no file"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/assets/", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAndListEndpoints(t *testing.T) {
	srv := newTestServer(t)
	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	resp, err := http.Get(fmt.Sprintf("%s/assets/%d", srv.URL, asset.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/assets/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var all []assetvault.Asset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 1)

	resp, err = http.Get(srv.URL + "/assets/999")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/assets/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func patchAsset(t *testing.T, srv *httptest.Server, id int64, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/assets/%d", srv.URL, id), strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUpdateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	resp := patchAsset(t, srv, asset.ID, `{"description":"updated","tags":["a"]}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated assetvault.Asset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "updated", updated.Description)
	assert.Equal(t, []string{"a"}, updated.Tags)
}

func TestUpdateEndpointRejectsDerivedFields(t *testing.T) {
	srv := newTestServer(t)
	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	resp := patchAsset(t, srv, asset.ID, `{"file_size": 123}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var msg map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Contains(t, msg["error"], "file_size")
}

func TestDeleteEndpoint(t *testing.T) {
	srv := newTestServer(t)
	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/assets/%d", srv.URL, asset.ID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(fmt.Sprintf("%s/assets/%d", srv.URL, asset.ID))
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestDownloadEndpoint(t *testing.T) {
	srv := newTestServer(t)
	content := pngBytes(t)
	asset := uploadAsset(t, srv, "logo.png", content, nil)

	resp, err := http.Get(fmt.Sprintf("%s/assets/%d/download", srv.URL, asset.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "logo.png")

	var got bytes.Buffer
	_, err = got.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got.Bytes())
}

func TestVersionsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	uploadAsset(t, srv, "logo.png", pngBytes(t), nil)
	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	resp, err := http.Get(fmt.Sprintf("%s/assets/%d/versions", srv.URL, asset.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var files []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&files))
	require.Len(t, files, 2)
	assert.Equal(t, float64(1), files[0]["version"])
	assert.Equal(t, "/media/image/1/logo.png", files[0]["url"])
	assert.Equal(t, float64(2), files[1]["version"])
}

func TestPreviewEndpointWithoutBuilder(t *testing.T) {
	srv := newTestServer(t)
	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	resp, err := http.Get(fmt.Sprintf("%s/assets/%d/preview", srv.URL, asset.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "image", p["kind"])
	assert.Equal(t, "/media/"+asset.FileLocation, p["preview_url"])
}

func TestMediaURLsResolveUnderMount(t *testing.T) {
	svc, err := assetvault.New(
		assetvault.WithRepository(repomemory.New()),
		assetvault.WithStore(storagememory.New()),
		assetvault.WithExtractor(extract.New()),
	)
	require.NoError(t, err)

	// Mounted the way cmd/server does it; returned URLs must point at
	// the mounted media route.
	r := chi.NewRouter()
	r.Mount("/api/v1", NewAssetsHandler(svc, nil, WithMediaPrefix("/api/v1/media")).Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	body, contentType := multipartUpload(t, "logo.png", pngBytes(t), nil)
	resp, err := http.Post(srv.URL+"/api/v1/assets/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var asset assetvault.Asset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&asset))

	preview, err := http.Get(fmt.Sprintf("%s/api/v1/assets/%d/preview", srv.URL, asset.ID))
	require.NoError(t, err)
	defer preview.Body.Close()
	require.Equal(t, http.StatusOK, preview.StatusCode)
	var p map[string]any
	require.NoError(t, json.NewDecoder(preview.Body).Decode(&p))
	previewURL, ok := p["preview_url"].(string)
	require.True(t, ok)
	assert.Equal(t, "/api/v1/media/"+asset.FileLocation, previewURL)

	served, err := http.Get(srv.URL + previewURL)
	require.NoError(t, err)
	defer served.Body.Close()
	assert.Equal(t, http.StatusOK, served.StatusCode)

	versions, err := http.Get(fmt.Sprintf("%s/api/v1/assets/%d/versions", srv.URL, asset.ID))
	require.NoError(t, err)
	defer versions.Body.Close()
	require.Equal(t, http.StatusOK, versions.StatusCode)
	var files []map[string]any
	require.NoError(t, json.NewDecoder(versions.Body).Decode(&files))
	require.Len(t, files, 1)
	fetched, err := http.Get(srv.URL + files[0]["url"].(string))
	require.NoError(t, err)
	defer fetched.Body.Close()
	assert.Equal(t, http.StatusOK, fetched.StatusCode)
}

func TestServeMediaEndpoint(t *testing.T) {
	srv := newTestServer(t)
	asset := uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	resp, err := http.Get(srv.URL + "/media/" + asset.FileLocation)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "image/png")

	missing, err := http.Get(srv.URL + "/media/image/9/missing.png")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestReconcileEndpoint(t *testing.T) {
	srv := newTestServer(t)
	uploadAsset(t, srv, "logo.png", pngBytes(t), nil)

	resp, err := http.Post(srv.URL+"/reconcile", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report assetvault.ReconcileReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 0, report.Removed)
}
