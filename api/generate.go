package api

import (
	"context"
	"log"
	"net/http"

	"dreamsun/generation"
	"dreamsun/middleware"
	"dreamsun/models"
	"dreamsun/providers"
)

// generateBody is the generate request as sent by clients. The scalar
// referenceImageUrl is still accepted and folded into referenceImageUrls.
type generateBody struct {
	generation.Request
	ReferenceImageURL string `json:"referenceImageUrl,omitempty"`
}

func (b generateBody) request() generation.Request {
	req := b.Request
	if b.ReferenceImageURL != "" {
		req.ReferenceImageURLs = append([]string{b.ReferenceImageURL}, req.ReferenceImageURLs...)
	}
	return req
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	registry := s.service.Registry()
	list := registry.All()
	if c := r.URL.Query().Get("capability"); c != "" {
		capability, err := models.ParseCapability(c)
		if err != nil {
			writeError(w, &generation.ValidationError{Field: "capability", Message: err.Error()})
			return
		}
		list = registry.ListByCapability(capability)
	}
	if list == nil {
		list = []models.Descriptor{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var body generateBody
	if err := decodeBody(r, generateSchema, &body, 0); err != nil {
		writeError(w, err)
		return
	}
	req := body.request()
	log.Printf("Received generation request. Model: '%s', Aspect ratio: '%s', Reference images: %d",
		req.ModelID, req.AspectRatio, len(req.ReferenceImageURLs))

	result, err := s.run(r.Context(), middleware.OwnerFrom(r.Context()), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// run generates and records the result in the owner's history.
func (s *Server) run(ctx context.Context, owner string, req generation.Request, onUpdate providers.UpdateFunc) (*generation.Result, error) {
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}
	result, err := s.service.Generate(ctx, req, onUpdate)
	if err != nil {
		return nil, err
	}
	log.Printf("Generated image for model '%s', request %s: %s", result.ModelID, result.RequestID, result.ImageURL)

	if s.history != nil {
		if err := s.history.Add(context.WithoutCancel(ctx), owner, *result); err != nil {
			log.Printf("Could not record history: %v", err)
		}
	}
	return result, nil
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.history.List(r.Context(), middleware.OwnerFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context(), middleware.OwnerFrom(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.LoadPreferences(r))
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs middleware.Preferences
	if err := decodeBody(r, preferencesSchema, &prefs, 0); err != nil {
		writeError(w, err)
		return
	}
	if prefs.ModelID != "" {
		d, ok := s.service.Registry().Lookup(prefs.ModelID)
		if !ok {
			writeError(w, &generation.ValidationError{Field: "modelId", Message: "model not found", Err: generation.ErrModelNotFound})
			return
		}
		if prefs.AspectRatio != "" && !d.SupportsAspectRatio(prefs.AspectRatio) {
			writeError(w, &generation.ValidationError{Field: "aspectRatio", Message: "aspect ratio is not supported by " + d.ID})
			return
		}
	}
	if err := middleware.SavePreferences(w, r, prefs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
