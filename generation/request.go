package generation

// Request is the uniform, provider-independent generation request.
type Request struct {
	ModelID            string   `json:"modelId"`
	Prompt             string   `json:"prompt"`
	AspectRatio        string   `json:"aspectRatio,omitempty"`
	ReferenceImageURLs []string `json:"referenceImageUrls,omitempty"`
	NegativePrompt     string   `json:"negativePrompt,omitempty"`
}

// Payload is the provider-specific key/value body submitted to an endpoint.
type Payload map[string]any
