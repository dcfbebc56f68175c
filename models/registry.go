package models

import (
	"fmt"
	"slices"
)

// Capability declares whether a model generates from text, edits reference images, or both.
type Capability string

const (
	TextToImage  Capability = "text-to-image"
	ImageToImage Capability = "image-to-image"
	Both         Capability = "both"
)

// Provider keys select the client that submits a model's jobs.
const (
	ProviderFal    = "fal"
	ProviderGemini = "gemini"
)

// ParseCapability converts a capability token into a Capability.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(s); c {
	case TextToImage, ImageToImage, Both:
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// AcceptsReferenceImages reports whether the capability includes image-to-image.
func (c Capability) AcceptsReferenceImages() bool {
	return c == ImageToImage || c == Both
}

// ReferenceImageSpec names the provider parameter carrying reference image URLs.
type ReferenceImageSpec struct {
	FieldName    string `json:"fieldName"`
	IsArrayField bool   `json:"isArrayField"`
	MaxImages    int    `json:"maxImages"`
}

// SizeEncoding replaces the aspect_ratio field for providers that want their own size tokens.
type SizeEncoding struct {
	FieldName    string            `json:"fieldName"`
	RatioToValue map[string]string `json:"ratioToValue"`
}

// Descriptor describes one provider model's API shape and capabilities.
// Descriptors are defined once at process start and never mutated.
type Descriptor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CostPerImage string `json:"costPerImage"`

	Provider   string     `json:"provider"`
	Endpoint   string     `json:"endpoint"`
	Capability Capability `json:"capability"`

	SupportedAspectRatios  []string `json:"aspectRatios"`
	DefaultAspectRatio     string   `json:"defaultAspectRatio"`
	SupportsNegativePrompt bool     `json:"supportsNegativePrompt"`

	ReferenceImage *ReferenceImageSpec `json:"referenceImage,omitempty"`
	Size           *SizeEncoding       `json:"sizeEncoding,omitempty"`
}

// SupportsAspectRatio reports whether ratio is one of the model's supported tokens.
func (d Descriptor) SupportsAspectRatio(ratio string) bool {
	return slices.Contains(d.SupportedAspectRatios, ratio)
}

// MaxReferenceImages returns how many reference images the model accepts, zero if none.
func (d Descriptor) MaxReferenceImages() int {
	if d.ReferenceImage == nil {
		return 0
	}
	return d.ReferenceImage.MaxImages
}

func (d Descriptor) validate() error {
	if d.ID == "" {
		return fmt.Errorf("descriptor has an empty id")
	}
	if d.Endpoint == "" {
		return fmt.Errorf("model %q: endpoint is required", d.ID)
	}
	switch d.Provider {
	case ProviderFal, ProviderGemini:
	default:
		return fmt.Errorf("model %q: unknown provider %q", d.ID, d.Provider)
	}
	if _, err := ParseCapability(string(d.Capability)); err != nil {
		return fmt.Errorf("model %q: %w", d.ID, err)
	}
	if len(d.SupportedAspectRatios) == 0 {
		return fmt.Errorf("model %q: at least one aspect ratio is required", d.ID)
	}
	if !d.SupportsAspectRatio(d.DefaultAspectRatio) {
		return fmt.Errorf("model %q: default aspect ratio %q is not supported", d.ID, d.DefaultAspectRatio)
	}
	if d.Capability.AcceptsReferenceImages() != (d.ReferenceImage != nil) {
		return fmt.Errorf("model %q: reference image spec must be present iff capability is %s or %s", d.ID, ImageToImage, Both)
	}
	if ref := d.ReferenceImage; ref != nil {
		if ref.FieldName == "" {
			return fmt.Errorf("model %q: reference image field name is required", d.ID)
		}
		if ref.MaxImages < 1 {
			return fmt.Errorf("model %q: maxImages must be at least 1", d.ID)
		}
	}
	if d.Size != nil && d.Size.FieldName == "" {
		return fmt.Errorf("model %q: size encoding field name is required", d.ID)
	}
	return nil
}

// Registry is an ordered, read-only table of model descriptors.
// It is safe for concurrent use without locking.
type Registry struct {
	descriptors []Descriptor
	index       map[string]int
}

// NewRegistry validates descriptors and builds a registry preserving their order.
// Descriptors without a provider are served by fal.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.Provider == "" {
			d.Provider = ProviderFal
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", d.ID)
		}
		r.index[d.ID] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}
	return r, nil
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

// ListByCapability returns, in registry order, the models whose capability is c or Both.
func (r *Registry) ListByCapability(c Capability) []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors {
		if d.Capability == c || d.Capability == Both {
			out = append(out, d)
		}
	}
	return out
}

// All returns every descriptor in registry order.
func (r *Registry) All() []Descriptor {
	return slices.Clone(r.descriptors)
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

var defaultRegistry = mustRegistry(catalog...)

// Default returns the process-wide registry built from the built-in catalog.
func Default() *Registry {
	return defaultRegistry
}

func mustRegistry(descriptors ...Descriptor) *Registry {
	r, err := NewRegistry(descriptors...)
	if err != nil {
		panic("models: invalid catalog: " + err.Error())
	}
	return r
}
