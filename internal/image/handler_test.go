package image_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/imagehub/service/internal/image"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore, *fakeMeta) {
	t.Helper()

	svc, store, meta := newTestService()
	h := image.NewHandler(svc)

	r := chi.NewRouter()
	r.Route("/api/v1/images", h.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, meta
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, srv *httptest.Server, filename string, data []byte) (*http.Response, envelope) {
	t.Helper()

	body, contentType := multipartBody(t, filename, data)
	resp, err := http.Post(srv.URL+"/api/v1/images/upload", contentType, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestUploadEndpoint(t *testing.T) {
	t.Parallel()

	srv, store, _ := newTestServer(t)

	resp, env := postUpload(t, srv, "photo.jpg", makeJPEG(t, 200, 100))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var asset image.Asset
	require.NoError(t, json.Unmarshal(env.Data, &asset))
	require.Regexp(t, imageIDPattern, asset.ImageID)
	require.Len(t, asset.Variants, 5)
	require.Equal(t, 5, store.objectCount())
}

func TestUploadEndpointUnsupportedExtension(t *testing.T) {
	t.Parallel()

	srv, store, meta := newTestServer(t)

	resp, env := postUpload(t, srv, "photo.bmp", makeJPEG(t, 20, 20))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, env.Success)
	require.Contains(t, env.Error, "unsupported image format")
	require.Zero(t, store.puts)
	require.Zero(t, meta.inserts)
}

func TestUploadEndpointNonImagePayload(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	resp, env := postUpload(t, srv, "photo.jpg", []byte("plain text pretending to be a jpeg"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, env.Error, "invalid image data")
}

func TestUploadEndpointMissingFile(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/images/upload", "multipart/form-data; boundary=x", bytes.NewBufferString("--x--\r\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadBase64Endpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	body, err := json.Marshal(map[string]string{
		"filename":   "photo.jpg",
		"base64Data": "data:image/jpeg;base64," + base64JPEG(t, 64, 64),
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/images/upload-base64", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var asset image.Asset
	require.NoError(t, json.Unmarshal(env.Data, &asset))
	require.Equal(t, "photo.jpg", asset.Filename)
}

func TestUploadBase64EndpointMissingFields(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/images/upload-base64", "application/json", bytes.NewBufferString(`{"filename":"a.jpg"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	src := makeJPEG(t, 120, 80)

	_, env := postUpload(t, srv, "photo.jpg", src)
	var asset image.Asset
	require.NoError(t, json.Unmarshal(env.Data, &asset))

	resp, err := http.Get(srv.URL + "/api/v1/images/download/" + asset.ImageID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "photo.jpg")

	var got bytes.Buffer
	_, err = got.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, src, got.Bytes())
}

func TestDownloadEndpointUnknownID(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/images/download/img_0000000000000000_0")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetadataEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	_, env := postUpload(t, srv, "photo.jpg", makeJPEG(t, 50, 50))
	var asset image.Asset
	require.NoError(t, json.Unmarshal(env.Data, &asset))

	resp, err := http.Get(srv.URL + "/api/v1/images/" + asset.ImageID + "/metadata")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	var described image.Asset
	require.NoError(t, json.Unmarshal(out.Data, &described))
	require.Equal(t, asset.ImageID, described.ImageID)
	require.Len(t, described.Variants, 5)
}

func TestDeleteEndpoint(t *testing.T) {
	t.Parallel()

	srv, store, _ := newTestServer(t)

	_, env := postUpload(t, srv, "photo.jpg", makeJPEG(t, 50, 50))
	var asset image.Asset
	require.NoError(t, json.Unmarshal(env.Data, &asset))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/images/"+asset.ImageID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	var result image.RemovalResult
	require.NoError(t, json.Unmarshal(out.Data, &result))
	require.True(t, result.RemovedFromStore)
	require.True(t, result.RemovedFromMetadata)
	require.Zero(t, store.objectCount())
}

func TestCheckEndpoint(t *testing.T) {
	t.Parallel()

	srv, store, _ := newTestServer(t)

	_, env := postUpload(t, srv, "photo.jpg", makeJPEG(t, 50, 50))
	var asset image.Asset
	require.NoError(t, json.Unmarshal(env.Data, &asset))

	store.removeDirect(asset.StorageKey)

	resp, err := http.Get(srv.URL + "/api/v1/images/check/" + asset.ImageID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	var ex image.Existence
	require.NoError(t, json.Unmarshal(out.Data, &ex))
	require.True(t, ex.InMetadata)
	require.False(t, ex.InStore)
}

func TestListEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	postUpload(t, srv, "one.jpg", makeJPEG(t, 30, 30))
	postUpload(t, srv, "two.jpg", makeJPEG(t, 30, 30))

	resp, err := http.Get(srv.URL + "/api/v1/images/list?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	var data struct {
		Count  int           `json:"count"`
		Images []image.Asset `json:"images"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	require.Equal(t, 1, data.Count)
	require.Len(t, data.Images, 1)
	require.Equal(t, "two.jpg", data.Images[0].Filename, "newest first")
}

func TestPresignedURLEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	_, env := postUpload(t, srv, "photo.jpg", makeJPEG(t, 30, 30))
	var asset image.Asset
	require.NoError(t, json.Unmarshal(env.Data, &asset))

	resp, err := http.Get(srv.URL + "/api/v1/images/presigned-url/" + asset.ImageID + "?expiration=120")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	var data struct {
		ImageID      string `json:"imageId"`
		PresignedURL string `json:"presignedUrl"`
		ExpiresIn    int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	require.Equal(t, asset.ImageID, data.ImageID)
	require.Equal(t, 120, data.ExpiresIn)
	require.Contains(t, data.PresignedURL, asset.StorageKey)
}
