package imagehost

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dreamsun/providers"
)

// Uploader stores image bytes and returns a durable, publicly fetchable URL.
// Uploading identical bytes twice yields two distinct URLs.
type Uploader interface {
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
}

// UploadError reports a rejected or failed upload.
type UploadError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Cause      error  `json:"-"`
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %s (status %d)", e.Message, e.StatusCode)
}

func (e *UploadError) Unwrap() error { return e.Cause }

// fromAPIError converts a normalized provider failure into an UploadError.
func fromAPIError(err *providers.APIError) *UploadError {
	return &UploadError{Message: err.Message, StatusCode: err.StatusCode, Cause: err.Cause}
}

// asUploadError normalizes any backend failure into an UploadError.
func asUploadError(err error) error {
	if err == nil {
		return nil
	}
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return err
	}
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr)
	}
	return fromAPIError(providers.NormalizeError(0, nil, err, providers.DefaultUploadMessage))
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Extension returns the file extension for an allowed MIME type.
func Extension(mimeType string) (string, bool) {
	ext, ok := extensions[mimeType]
	return ext, ok
}

// CheckPayload validates an upload before any network I/O.
func CheckPayload(data []byte, mimeType string, maxBytes int64) error {
	if len(data) == 0 {
		return &UploadError{Message: "file is empty", StatusCode: http.StatusBadRequest}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return &UploadError{
			Message:    fmt.Sprintf("file is %d bytes, the limit is %d", len(data), maxBytes),
			StatusCode: http.StatusRequestEntityTooLarge,
		}
	}
	if _, ok := Extension(mimeType); !ok {
		return &UploadError{
			Message:    fmt.Sprintf("unsupported image type %q", mimeType),
			StatusCode: http.StatusUnsupportedMediaType,
		}
	}
	return nil
}

// ParseDataURL decodes a "data:<mime>;base64,<data>" URL.
func ParseDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", &UploadError{Message: "not a data URL", StatusCode: http.StatusBadRequest}
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", &UploadError{Message: "malformed data URL", StatusCode: http.StatusBadRequest}
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", &UploadError{Message: "data URL must be base64 encoded", StatusCode: http.StatusBadRequest}
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", &UploadError{Message: "invalid base64 payload", StatusCode: http.StatusBadRequest, Cause: err}
	}
	return data, strings.ToLower(strings.TrimSpace(mimeType)), nil
}

// Checked wraps an Uploader with the payload checks and error normalization
// shared by every backend.
type Checked struct {
	Backend  Uploader
	MaxBytes int64
}

// Upload checks the payload, then delegates to the backend.
func (c *Checked) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := CheckPayload(data, mimeType, c.MaxBytes); err != nil {
		return "", err
	}
	url, err := c.Backend.Upload(ctx, data, mimeType)
	if err != nil {
		return "", asUploadError(err)
	}
	return url, nil
}
