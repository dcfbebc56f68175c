package generation

import (
	"slices"

	"dreamsun/models"
)

// Fixed output parameters sent with every job.
const (
	OutputFormat = "jpeg"
	NumImages    = 1
)

// Normalize maps req onto the parameter schema of the model described by d.
// It never fails: fields the model cannot take are left out of the payload.
// The prompt is used as given, so callers trim it first.
func Normalize(req Request, d models.Descriptor) Payload {
	p := Payload{"prompt": req.Prompt}

	if req.AspectRatio != "" {
		if d.Size != nil {
			value, ok := d.Size.RatioToValue[req.AspectRatio]
			if !ok {
				value = req.AspectRatio
			}
			p[d.Size.FieldName] = value
		} else {
			p["aspect_ratio"] = req.AspectRatio
		}
	}

	if ref := d.ReferenceImage; ref != nil && len(req.ReferenceImageURLs) > 0 {
		if ref.IsArrayField {
			p[ref.FieldName] = slices.Clone(req.ReferenceImageURLs)
		} else {
			p[ref.FieldName] = req.ReferenceImageURLs[0]
		}
	}

	if req.NegativePrompt != "" && d.SupportsNegativePrompt {
		p["negative_prompt"] = req.NegativePrompt
	}

	p["output_format"] = OutputFormat
	p["num_images"] = NumImages
	return p
}
