package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quillpress/apiserver/internal/services"
)

const (
	formFieldImage = "image"
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
)

// UploadHandler accepts post images and serves them back.
type UploadHandler struct {
	uploadService *services.UploadService
	log           *slog.Logger
}

// NewUploadHandler constructs an UploadHandler with the provided dependencies.
func NewUploadHandler(uploadService *services.UploadService, log *slog.Logger) *UploadHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UploadHandler{
		uploadService: uploadService,
		log:           log,
	}
}

// UploadRouter registers the authenticated upload endpoint.
func UploadRouter(r chi.Router, uploadService *services.UploadService, authMiddleware func(http.Handler) http.Handler, log *slog.Logger) {
	handler := NewUploadHandler(uploadService, log)
	r.With(authMiddleware).Post("/upload", handler.UploadImage)
}

// ContentRouter serves stored images. It is mounted at the public upload
// prefix.
func ContentRouter(r chi.Router, uploadService *services.UploadService, log *slog.Logger) {
	handler := NewUploadHandler(uploadService, log)
	r.Get("/{name}", handler.ServeImage)
}

type UploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.uploadService.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, h.log, services.ErrPayloadTooLarge, "upload image")
			return
		}
		writeServiceError(w, r, h.log, missingImage("must be sent as multipart/form-data"), "upload image")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	fileHeader, err := singleImage(r.MultipartForm)
	if err != nil {
		writeServiceError(w, r, h.log, err, "upload image")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeServiceError(w, r, h.log, err, "upload image")
		return
	}
	defer file.Close()

	upload, err := h.uploadService.Upload(r.Context(), services.UploadFile{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err, "upload image")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{ImageURL: upload.URL})
}

func (h *UploadHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.uploadService.Open(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, h.log, err, "read image")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.WarnContext(r.Context(), "stream image failed", slog.Any("error", err))
	}
}

func singleImage(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, missingImage("is required")
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, missingImage("is required")
	}
	if len(files) > 1 {
		return nil, missingImage("only one file is allowed")
	}
	return files[0], nil
}

func missingImage(reason string) error {
	return &services.ValidationError{Fields: map[string]string{formFieldImage: reason}}
}
