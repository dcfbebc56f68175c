package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"dreamsun/providers"
)

const nodeImageUploadURL = "https://api.nodeimage.com/api/upload"

// NodeImageClient handles communication with the NodeImage API.
type NodeImageClient struct {
	APIKey    string
	Client    *http.Client
	UploadURL string
}

// NewNodeImageClient creates a new NodeImage client.
func NewNodeImageClient(apiKey string) *NodeImageClient {
	return &NodeImageClient{
		APIKey:    apiKey,
		Client:    &http.Client{},
		UploadURL: nodeImageUploadURL,
	}
}

// nodeImageResponse matches the structure of the upload response.
type nodeImageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ImageID string `json:"image_id"`
	Links   struct {
		Direct string `json:"direct"`
	} `json:"links"`
}

// Upload sends the image as a multipart form and returns its direct link.
func (c *NodeImageClient) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	ext, _ := Extension(mimeType)
	filename := uuid.NewString() + "." + ext

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to copy image bytes to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fromAPIError(providers.NormalizeError(0, nil, err, providers.DefaultUploadMessage))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fromAPIError(providers.NormalizeError(resp.StatusCode, nil, err, providers.DefaultUploadMessage))
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("nodeimage API returned non-200 status: %d, body: %s", resp.StatusCode, string(respBody))
		return "", fromAPIError(providers.NormalizeError(resp.StatusCode, respBody, nil, providers.DefaultUploadMessage))
	}

	var uploadResp nodeImageResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return "", &UploadError{Message: "failed to decode upload response", StatusCode: http.StatusBadGateway, Cause: err}
	}
	if !uploadResp.Success || uploadResp.Links.Direct == "" {
		message := uploadResp.Message
		if message == "" {
			message = providers.DefaultUploadMessage
		}
		return "", &UploadError{Message: message, StatusCode: http.StatusBadGateway}
	}

	log.Printf("Uploaded image to NodeImage, id: %s", uploadResp.ImageID)
	return uploadResp.Links.Direct, nil
}
