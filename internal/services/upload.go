package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quillpress/apiserver/internal/storage"
	"github.com/quillpress/apiserver/types"
)

// DefaultMaxUploadBytes is the image size ceiling.
const DefaultMaxUploadBytes = 5 << 20

// allowedImageTypes maps accepted declared content types to the extension
// used when the client filename has no usable one.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

var contentKeyPattern = regexp.MustCompile(`^\d+-[0-9a-f]{32}\.(jpg|jpeg|png|gif)$`)

// ObjectStore is the subset of storage.Storage the upload flow needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// UploadFile is a single file received from a client.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload describes a stored image.
type Upload struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// UploadService validates and stores post images.
type UploadService struct {
	store     ObjectStore
	urlPrefix string
	maxBytes  int64
	events    EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// NewUploadService constructs an UploadService. urlPrefix is the public
// path under which stored keys are served; events may be nil.
func NewUploadService(store ObjectStore, urlPrefix string, maxBytes int64, events EventPublisher, log *slog.Logger) *UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = slog.Default()
	}
	return &UploadService{
		store:     store,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		maxBytes:  maxBytes,
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

// MaxBytes returns the configured size ceiling.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload checks the declared type and the size, then stores the image under
// a fresh "<unix-millis>-<random>.<ext>" key. Nothing is written when a
// check fails.
func (s *UploadService) Upload(ctx context.Context, file UploadFile) (Upload, error) {
	contentType := normalizeContentType(file.ContentType)
	fallbackExt, ok := allowedImageTypes[contentType]
	if !ok {
		return Upload{}, ErrUnsupportedMediaType
	}
	if file.Size > s.maxBytes {
		return Upload{}, ErrPayloadTooLarge
	}
	if file.Body == nil {
		return Upload{}, &ValidationError{Fields: map[string]string{"image": "is required"}}
	}

	data, err := io.ReadAll(io.LimitReader(file.Body, s.maxBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return Upload{}, ErrPayloadTooLarge
	}

	key := s.newKey(file.Filename, fallbackExt)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return Upload{}, fmt.Errorf("store upload: %w", err)
	}

	upload := Upload{
		Key:         key,
		URL:         s.urlPrefix + "/" + key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	if s.events != nil {
		event := types.Event{Type: types.EventImageUploaded, ImageURL: upload.URL, OccurredAt: s.now().UTC()}
		if err := s.events.PublishEvent(ctx, event); err != nil {
			s.log.WarnContext(ctx, "publish event failed",
				slog.String("type", string(event.Type)),
				slog.Any("error", err),
			)
		}
	}
	return upload, nil
}

// Open returns a stored image and its content type. Keys that could not
// have been produced by Upload are reported as ErrNotFound without
// touching the backend.
func (s *UploadService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !contentKeyPattern.MatchString(key) {
		return nil, "", ErrNotFound
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return body, imageExtensions[path.Ext(key)], nil
}

func (s *UploadService) newKey(filename, fallbackExt string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	if _, ok := imageExtensions[ext]; !ok {
		ext = fallbackExt
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), random, ext)
}

func normalizeContentType(value string) string {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return mediaType
}
