package providers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements the ImageProvider for Google Gemini image models.
// Gemini returns inline image bytes, so results are written to an ImageStore
// to obtain a durable URL.
type GeminiProvider struct {
	client *genai.Client
	store  ImageStore

	// HTTPClient downloads reference images.
	HTTPClient       *http.Client
	MaxDownloadBytes int64
}

// NewGeminiProvider creates a Gemini client using the Gemini API backend.
func NewGeminiProvider(ctx context.Context, apiKey string, store ImageStore) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if store == nil {
		return nil, fmt.Errorf("gemini: an image store is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &GeminiProvider{
		client:     client,
		store:      store,
		HTTPClient: &http.Client{},
	}, nil
}

// GetName returns the name of the provider.
func (p *GeminiProvider) GetName() string {
	return "gemini"
}

// Submit generates one image with the Gemini model named by endpoint.
func (p *GeminiProvider) Submit(ctx context.Context, endpoint string, input map[string]any, onUpdate UpdateFunc) (*Output, error) {
	requestID := uuid.NewString()
	log.Printf("Calling provider '%s' with model '%s'", p.GetName(), endpoint)
	log.Printf("Request payload: \n%s", logPayload(input))

	parts := []*genai.Part{genai.NewPartFromText(geminiPrompt(input))}
	for _, url := range referenceURLs(input) {
		data, contentType, err := DownloadFile(ctx, p.HTTPClient, url, p.MaxDownloadBytes)
		if err != nil {
			return nil, &APIError{
				Provider:   p.GetName(),
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("failed to fetch reference image: %v", err),
				Cause:      err,
			}
		}
		parts = append(parts, genai.NewPartFromBytes(data, contentType))
	}

	notify(onUpdate, QueueUpdate{RequestID: requestID, Status: StatusInProgress})
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, endpoint, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, p.normalizeError(err)
	}

	out := &Output{Provider: p.GetName(), RequestID: requestID}
	data, mimeType := firstInlineImage(resp)
	if len(data) == 0 {
		return out, nil
	}

	url, err := p.store.Upload(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to store generated image: %w", err)
	}
	out.Images = []Image{{URL: url, ContentType: mimeType}}
	notify(onUpdate, QueueUpdate{RequestID: requestID, Status: StatusCompleted})
	return out, nil
}

func (p *GeminiProvider) normalizeError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		out := NormalizeError(apiErr.Code, nil, err, DefaultGenerationMessage)
		if apiErr.Message != "" {
			out.Message = apiErr.Message
		}
		out.Provider = p.GetName()
		return out
	}
	out := NormalizeError(0, nil, err, DefaultGenerationMessage)
	out.Provider = p.GetName()
	return out
}

// geminiPrompt folds the aspect ratio into the prompt text; the model takes no size parameter.
func geminiPrompt(input map[string]any) string {
	prompt, _ := input["prompt"].(string)
	if ratio, ok := input["aspect_ratio"].(string); ok && ratio != "" {
		prompt += "\n\nAspect ratio: " + ratio
	}
	return prompt
}

// referenceURLs reads reference images from either the list or the scalar field.
func referenceURLs(input map[string]any) []string {
	switch v := input["image_urls"].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := input["image_url"].(string); ok && s != "" {
		return []string{s}
	}
	return nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) ([]byte, string) {
	if resp == nil {
		return nil, ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = http.DetectContentType(part.InlineData.Data)
				}
				return part.InlineData.Data, mimeType
			}
		}
	}
	return nil, ""
}
