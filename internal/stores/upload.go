// Package stores holds the HTTP clients for the two external collaborators
// of the editor: the Upload Store, which accepts image files and returns
// stored-image descriptors, and the Design Store, which persists per-side
// layer geometry. Both are consumed services; their internals live
// elsewhere.
package stores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUploadInvalidInput indicates the file failed local validation;
	// nothing was sent to the store.
	ErrUploadInvalidInput = errors.New("upload store: invalid input")
	// ErrUploadRejected indicates the store refused the file.
	ErrUploadRejected = errors.New("upload store: rejected")
	// ErrUploadUnavailable indicates the store could not be reached.
	ErrUploadUnavailable = errors.New("upload store: unavailable")
)

// DefaultMaxUploadBytes is the upload size ceiling applied when the client
// is configured without one.
const DefaultMaxUploadBytes = int64(20 * 1024 * 1024)

const clientTimeout = 30 * time.Second

var allowedUploadContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// StoredImage is the descriptor returned by the Upload Store.
type StoredImage struct {
	ID           string `json:"id"`
	FileURL      string `json:"file_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// UploadClient talks to the Upload Store.
type UploadClient struct {
	baseURL   string
	client    *http.Client
	maxBytes  int64
	authToken string
}

// UploadClientOptions configures an UploadClient.
type UploadClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// MaxBytes overrides the upload ceiling; defaults to 20MiB.
	MaxBytes int64
	// AuthToken, when set, is sent as a bearer token on every request.
	AuthToken string
}

// NewUploadClient constructs a client for the Upload Store.
func NewUploadClient(opts UploadClientOptions) (*UploadClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("upload store: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: clientTimeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadClient{
		baseURL:   base,
		client:    client,
		maxBytes:  maxBytes,
		authToken: strings.TrimSpace(opts.AuthToken),
	}, nil
}

// ValidateUpload applies the local MIME and size checks. A failure aborts
// the pending operation before any bytes leave the process.
func (c *UploadClient) ValidateUpload(contentType string, size int64) error {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(normalized, ";"); i >= 0 {
		normalized = strings.TrimSpace(normalized[:i])
	}
	if _, ok := allowedUploadContentTypes[normalized]; !ok {
		return fmt.Errorf("%w: content type %q not allowed", ErrUploadInvalidInput, contentType)
	}
	if size <= 0 {
		return fmt.Errorf("%w: empty file", ErrUploadInvalidInput)
	}
	if size > c.maxBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrUploadInvalidInput, c.maxBytes)
	}
	return nil
}

// Upload validates and stores one image file, returning its descriptor.
func (c *UploadClient) Upload(ctx context.Context, fileName, contentType string, data []byte) (StoredImage, error) {
	if err := c.ValidateUpload(contentType, int64(len(data))); err != nil {
		return StoredImage{}, err
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = "upload"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", fileName)
	if err != nil {
		return StoredImage{}, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
	}
	if _, err := part.Write(data); err != nil {
		return StoredImage{}, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
	}
	if err := writer.Close(); err != nil {
		return StoredImage{}, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", &body)
	if err != nil {
		return StoredImage{}, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return StoredImage{}, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return StoredImage{}, fmt.Errorf("%w: status %d: %s", ErrUploadRejected, resp.StatusCode, readErrorBody(resp.Body))
	default:
		return StoredImage{}, fmt.Errorf("%w: status %d", ErrUploadUnavailable, resp.StatusCode)
	}

	var stored StoredImage
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return StoredImage{}, fmt.Errorf("%w: decode response: %v", ErrUploadUnavailable, err)
	}
	if strings.TrimSpace(stored.FileURL) == "" {
		return StoredImage{}, fmt.Errorf("%w: descriptor missing file_url", ErrUploadUnavailable)
	}
	return stored, nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
