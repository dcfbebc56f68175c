package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"dreamsun/providers"
)

const falRESTURL = "https://rest.alpha.fal.ai"

// FalStorage uploads to the fal CDN: an initiate call returns a signed upload
// URL and the final file URL, then the bytes are PUT to the signed URL.
type FalStorage struct {
	APIKey  string
	Client  *http.Client
	BaseURL string
}

// NewFalStorage creates a fal CDN uploader.
func NewFalStorage(apiKey string) *FalStorage {
	return &FalStorage{APIKey: apiKey, Client: &http.Client{}, BaseURL: falRESTURL}
}

type falInitiateRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type falInitiateResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// Upload stores data on the fal CDN and returns its URL.
func (s *FalStorage) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	ext, _ := Extension(mimeType)
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	payload, err := json.Marshal(falInitiateRequest{ContentType: mimeType, FileName: name})
	if err != nil {
		return "", fmt.Errorf("fal storage: failed to marshal initiate request: %w", err)
	}

	url := strings.TrimRight(s.BaseURL, "/") + "/storage/upload/initiate"
	body, err := s.do(ctx, http.MethodPost, url, "application/json", payload, true)
	if err != nil {
		return "", err
	}
	var initiated falInitiateResponse
	if err := json.Unmarshal(body, &initiated); err != nil || initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", &UploadError{Message: "fal storage returned an invalid initiate response", StatusCode: http.StatusBadGateway, Cause: err}
	}

	if _, err := s.do(ctx, http.MethodPut, initiated.UploadURL, mimeType, data, false); err != nil {
		return "", err
	}
	log.Printf("Uploaded %d bytes to fal storage: %s", len(data), initiated.FileURL)
	return initiated.FileURL, nil
}

func (s *FalStorage) do(ctx context.Context, method, url, contentType string, payload []byte, auth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fal storage: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if auth {
		req.Header.Set("Authorization", "Key "+s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fromAPIError(providers.NormalizeError(0, nil, err, providers.DefaultUploadMessage))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fromAPIError(providers.NormalizeError(resp.StatusCode, nil, err, providers.DefaultUploadMessage))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("fal storage: %s %s returned status %d, body: %s", method, url, resp.StatusCode, string(body))
		return nil, fromAPIError(providers.NormalizeError(resp.StatusCode, body, nil, providers.DefaultUploadMessage))
	}
	return body, nil
}
