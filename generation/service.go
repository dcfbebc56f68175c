package generation

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"dreamsun/models"
	"dreamsun/providers"
)

// Service validates requests, shapes them for the selected model and submits
// them through the provider registered for that model.
type Service struct {
	registry  *models.Registry
	providers map[string]providers.ImageProvider
	now       func() time.Time
}

// NewService creates a Service. clients is keyed by descriptor provider key.
func NewService(registry *models.Registry, clients map[string]providers.ImageProvider) *Service {
	if registry == nil {
		registry = models.Default()
	}
	return &Service{registry: registry, providers: clients, now: time.Now}
}

// Registry returns the model registry the service resolves ids against.
func (s *Service) Registry() *models.Registry {
	return s.registry
}

// Prepare validates req and resolves its model. The returned request has a
// trimmed prompt and at most maxImages reference URLs.
func (s *Service) Prepare(req Request) (Request, models.Descriptor, error) {
	req.ModelID = strings.TrimSpace(req.ModelID)
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.AspectRatio = strings.TrimSpace(req.AspectRatio)
	req.NegativePrompt = strings.TrimSpace(req.NegativePrompt)

	if req.ModelID == "" {
		return req, models.Descriptor{}, &ValidationError{Field: "modelId", Message: "model is required"}
	}
	if req.Prompt == "" {
		return req, models.Descriptor{}, &ValidationError{Field: "prompt", Message: "prompt is required"}
	}
	d, ok := s.registry.Lookup(req.ModelID)
	if !ok {
		return req, models.Descriptor{}, &ValidationError{
			Field:   "modelId",
			Message: fmt.Sprintf("model %q not found", req.ModelID),
			Err:     ErrModelNotFound,
		}
	}

	urls := make([]string, 0, len(req.ReferenceImageURLs))
	for _, u := range req.ReferenceImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if limit := d.MaxReferenceImages(); limit > 0 && len(urls) > limit {
		log.Printf("Model '%s' accepts %d reference images, dropping %d", d.ID, limit, len(urls)-limit)
		urls = urls[:limit]
	}
	req.ReferenceImageURLs = urls
	return req, d, nil
}

// Generate runs one generation. onUpdate, if not nil, receives queue progress.
// Errors are *ValidationError, *providers.APIError or *providers.EmptyResultError.
func (s *Service) Generate(ctx context.Context, req Request, onUpdate providers.UpdateFunc) (*Result, error) {
	req, d, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}

	client, ok := s.providers[d.Provider]
	if !ok || client == nil {
		return nil, &providers.APIError{
			Provider:   d.Provider,
			StatusCode: http.StatusServiceUnavailable,
			Message:    fmt.Sprintf("provider '%s' is not configured", d.Provider),
		}
	}

	payload := Normalize(req, d)
	out, err := client.Submit(ctx, d.Endpoint, payload, onUpdate)
	if err != nil {
		return nil, err
	}
	img, err := out.First()
	if err != nil {
		return nil, err
	}

	return &Result{
		ImageURL:  img.URL,
		Width:     img.Width,
		Height:    img.Height,
		Seed:      out.Seed,
		ModelName: d.Name,
		ModelID:   d.ID,
		Prompt:    req.Prompt,
		RequestID: out.RequestID,
		CreatedAt: s.now().UTC(),
	}, nil
}
