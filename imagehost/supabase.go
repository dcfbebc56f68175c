package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// objectStorage is the part of the Supabase Storage client used here.
type objectStorage interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseStorage uploads to a public Supabase Storage bucket.
type SupabaseStorage struct {
	// The storage client keeps upload options in shared headers, so uploads are serialized.
	mu      sync.Mutex
	storage objectStorage
	bucket  string
	prefix  string
}

// NewSupabaseStorage connects to Supabase with the service key.
func NewSupabaseStorage(url, serviceKey, bucket string) (*SupabaseStorage, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &SupabaseStorage{storage: client.Storage, bucket: bucket, prefix: "uploads"}, nil
}

// Upload writes data under uploads/<uuid>.<ext> and returns its public URL.
func (s *SupabaseStorage) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, _ := Extension(mimeType)
	path := fmt.Sprintf("%s/%s.%s", s.prefix, uuid.NewString(), ext)

	upsert := false
	s.mu.Lock()
	_, err := s.storage.UploadFile(s.bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &mimeType,
		Upsert:      &upsert,
	})
	s.mu.Unlock()
	if err != nil {
		return "", storageError(path, err)
	}

	url := s.storage.GetPublicUrl(s.bucket, path).SignedURL
	log.Printf("Uploaded %d bytes to Supabase: %s", len(data), url)
	return url, nil
}

func storageError(path string, err error) error {
	var storageErr *storage_go.StorageError
	if errors.As(err, &storageErr) {
		status := storageErr.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		message := storageErr.Message
		if message == "" {
			message = "Upload failed"
		}
		return &UploadError{Message: message, StatusCode: status, Cause: err}
	}
	return fmt.Errorf("supabase: failed to upload %s: %w", path, err)
}
