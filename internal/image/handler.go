package image

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/imagehub/service/internal/response"
)

// Presign TTL bounds in seconds: one minute to seven days.
const (
	minPresignSeconds     = 60
	maxPresignSeconds     = 604800
	defaultPresignSeconds = 3600
)

const defaultListLimit = 100

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new image Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts all image endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Post("/upload-base64", h.UploadBase64)
	r.Get("/list", h.List)
	r.Get("/download/{imageID}", h.Download)
	r.Get("/presigned-url/{imageID}", h.PresignedURL)
	r.Get("/check/{imageID}", h.CheckExistence)
	r.Get("/{imageID}/metadata", h.Metadata)
	r.Delete("/{imageID}", h.Delete)
}

type base64UploadRequest struct {
	Filename    string `json:"filename"    example:"photo.jpg"`
	Base64Data  string `json:"base64Data"`
	ContentType string `json:"contentType,omitempty" example:"image/jpeg"`
}

type presignData struct {
	ImageID      string `json:"imageId"`
	PresignedURL string `json:"presignedUrl"`
	ExpiresIn    int    `json:"expiresIn"`
}

type listData struct {
	Count  int     `json:"count"`
	Images []Asset `json:"images"`
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Uploads an image file, derives resized variants, stores all artifacts, and records metadata.
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Success		201	{object}	response.Envelope{data=Asset}
//	@Failure		400	{object}	response.Envelope
//	@Failure		413	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "failed to read upload body")
		return
	}

	asset, err := h.svc.Ingest(r.Context(), data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, asset)
}

// UploadBase64 godoc
//
//	@Summary		Upload a base64-encoded image
//	@Description	Accepts a base64 payload (data-URL prefixes allowed) and runs the same ingestion pipeline.
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			body	body		base64UploadRequest	true	"Base64 upload"
//	@Success		201	{object}	response.Envelope{data=Asset}
//	@Failure		400	{object}	response.Envelope
//	@Failure		413	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images/upload-base64 [post]
func (h *Handler) UploadBase64(w http.ResponseWriter, r *http.Request) {
	var req base64UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.Filename == "" || req.Base64Data == "" {
		response.BadRequest(w, "filename and base64Data are required")
		return
	}

	asset, err := h.svc.IngestBase64(r.Context(), req.Filename, req.Base64Data, req.ContentType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, asset)
}

// Download godoc
//
//	@Summary		Download the original image
//	@Tags			images
//	@Produce		octet-stream
//	@Param			imageID	path	string	true	"Logical image identifier"
//	@Success		200
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/images/download/{imageID} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "imageID")

	data, asset, err := h.svc.Retrieve(r.Context(), imageID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", asset.Filename))
	_, _ = w.Write(data)
}

// Metadata godoc
//
//	@Summary		Get image metadata
//	@Tags			images
//	@Produce		json
//	@Param			imageID	path	string	true	"Logical image identifier"
//	@Success		200	{object}	response.Envelope{data=Asset}
//	@Failure		404	{object}	response.Envelope
//	@Router			/images/{imageID}/metadata [get]
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	asset, err := h.svc.Describe(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, asset)
}

// List godoc
//
//	@Summary		List images
//	@Tags			images
//	@Produce		json
//	@Param			skip	query	int	false	"Records to skip"
//	@Param			limit	query	int	false	"Maximum records (1-1000)"
//	@Success		200	{object}	response.Envelope{data=listData}
//	@Router			/images/list [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0, 0, 1<<31-1)
	limit := queryInt(r, "limit", defaultListLimit, 1, 1000)

	images, err := h.svc.List(r.Context(), skip, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if images == nil {
		images = []Asset{}
	}
	response.OK(w, listData{Count: len(images), Images: images})
}

// Delete godoc
//
//	@Summary		Delete an image
//	@Description	Removes the metadata row and attempts removal of every stored object; the two outcomes are reported separately.
//	@Tags			images
//	@Produce		json
//	@Param			imageID	path	string	true	"Logical image identifier"
//	@Success		200	{object}	response.Envelope{data=RemovalResult}
//	@Failure		404	{object}	response.Envelope
//	@Router			/images/{imageID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Remove(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, result)
}

// PresignedURL godoc
//
//	@Summary		Get a temporary access URL
//	@Tags			images
//	@Produce		json
//	@Param			imageID		path	string	true	"Logical image identifier"
//	@Param			expiration	query	int		false	"URL expiration in seconds (60s - 7 days)"
//	@Success		200	{object}	response.Envelope{data=presignData}
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/images/presigned-url/{imageID} [get]
func (h *Handler) PresignedURL(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "imageID")
	seconds := queryInt(r, "expiration", defaultPresignSeconds, minPresignSeconds, maxPresignSeconds)

	u, err := h.svc.PresignedURL(r.Context(), imageID, time.Duration(seconds)*time.Second)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, presignData{ImageID: imageID, PresignedURL: u, ExpiresIn: seconds})
}

// CheckExistence godoc
//
//	@Summary		Check where an image exists
//	@Tags			images
//	@Produce		json
//	@Param			imageID	path	string	true	"Logical image identifier"
//	@Success		200	{object}	response.Envelope{data=Existence}
//	@Failure		502	{object}	response.Envelope
//	@Router			/images/check/{imageID} [get]
func (h *Handler) CheckExistence(w http.ResponseWriter, r *http.Request) {
	ex, err := h.svc.CheckExistence(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, ex)
}

// writeError maps pipeline errors to HTTP statuses. Validation and decode
// errors keep their wrapped detail so the caller can correct the request;
// store-side failures surface only the error kind.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrInvalidImageData):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrPayloadTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrConflict):
		response.Conflict(w, ErrConflict.Error())
	case errors.Is(err, ErrVariantGeneration):
		response.Error(w, http.StatusInternalServerError, ErrVariantGeneration.Error())
	case errors.Is(err, ErrUploadFailed):
		response.Error(w, http.StatusBadGateway, ErrUploadFailed.Error())
	case errors.Is(err, ErrMetadataCommit):
		response.Error(w, http.StatusInternalServerError, ErrMetadataCommit.Error())
	case errors.Is(err, ErrStoreUnavailable):
		response.Error(w, http.StatusBadGateway, ErrStoreUnavailable.Error())
	default:
		response.InternalError(w)
	}
}

func queryInt(r *http.Request, key string, fallback, min, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
