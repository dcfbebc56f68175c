package models

var (
	wideRatios     = []string{"21:9", "16:9", "4:3", "3:2", "1:1", "2:3", "3:4", "9:16", "9:21"}
	standardRatios = []string{"16:9", "4:3", "1:1", "3:4", "9:16"}
)

// gptImageSizes maps ratios onto the pixel sizes the GPT Image endpoints accept.
var gptImageSizes = &SizeEncoding{
	FieldName: "image_size",
	RatioToValue: map[string]string{
		"1:1": "1024x1024",
		"4:3": "1536x1024",
		"3:2": "1536x1024",
		"3:4": "1024x1536",
		"2:3": "1024x1536",
	},
}

// falSizePresets maps ratios onto fal's named image_size presets.
var falSizePresets = &SizeEncoding{
	FieldName: "image_size",
	RatioToValue: map[string]string{
		"1:1":  "square_hd",
		"4:3":  "landscape_4_3",
		"16:9": "landscape_16_9",
		"3:4":  "portrait_4_3",
		"9:16": "portrait_16_9",
	},
}

var catalog = []Descriptor{
	// Text to image
	{
		ID:                    "flux-pro-ultra",
		Name:                  "FLUX Pro 1.1 Ultra",
		Description:           "Best quality FLUX model. 4MP max resolution.",
		CostPerImage:          "$0.06",
		Endpoint:              "fal-ai/flux-pro/v1.1-ultra",
		Capability:            TextToImage,
		SupportedAspectRatios: wideRatios,
		DefaultAspectRatio:    "16:9",
	},
	{
		ID:                    "flux-pro",
		Name:                  "FLUX Pro 1.1",
		Description:           "High quality FLUX, slightly lower resolution than Ultra.",
		CostPerImage:          "$0.05",
		Endpoint:              "fal-ai/flux-pro/v1.1",
		Capability:            TextToImage,
		SupportedAspectRatios: wideRatios,
		DefaultAspectRatio:    "16:9",
	},
	{
		ID:                    "flux-dev",
		Name:                  "FLUX Dev",
		Description:           "Good balance of quality and cost. 12B params.",
		CostPerImage:          "$0.025",
		Endpoint:              "fal-ai/flux/dev",
		Capability:            TextToImage,
		SupportedAspectRatios: wideRatios,
		DefaultAspectRatio:    "16:9",
	},
	{
		ID:                    "flux-schnell",
		Name:                  "FLUX Schnell",
		Description:           "Ultra-fast (~1 second). Great for testing.",
		CostPerImage:          "$0.003",
		Endpoint:              "fal-ai/flux/schnell",
		Capability:            TextToImage,
		SupportedAspectRatios: wideRatios,
		DefaultAspectRatio:    "16:9",
	},
	{
		ID:                     "nano-banana-pro",
		Name:                   "Nano Banana Pro",
		Description:            "Google's latest. Excellent character consistency and typography.",
		CostPerImage:           "$0.15",
		Endpoint:               "fal-ai/nano-banana-pro",
		Capability:             TextToImage,
		SupportedAspectRatios:  wideRatios,
		DefaultAspectRatio:     "16:9",
		SupportsNegativePrompt: true,
	},
	{
		ID:                    "recraft-v3",
		Name:                  "Recraft V3",
		Description:           "Best for text/typography in images. Vector art support.",
		CostPerImage:          "$0.04",
		Endpoint:              "fal-ai/recraft-v3",
		Capability:            TextToImage,
		SupportedAspectRatios: standardRatios,
		DefaultAspectRatio:    "16:9",
	},
	{
		ID:                    "grok-imagine",
		Name:                  "Grok Imagine Image",
		Description:           "xAI's highly aesthetic image generation model.",
		CostPerImage:          "~$0.07",
		Endpoint:              "xai/grok-imagine-image",
		Capability:            TextToImage,
		SupportedAspectRatios: standardRatios,
		DefaultAspectRatio:    "1:1",
	},
	{
		ID:                    "flux-2-flex",
		Name:                  "FLUX 2 Flex",
		Description:           "Latest FLUX 2. Adjustable steps, enhanced typography.",
		CostPerImage:          "~$0.05",
		Endpoint:              "fal-ai/flux-2-flex",
		Capability:            TextToImage,
		SupportedAspectRatios: wideRatios,
		DefaultAspectRatio:    "16:9",
	},
	{
		ID:                    "gpt-image-1",
		Name:                  "GPT Image 1",
		Description:           "OpenAI image model. Fixed pixel sizes instead of ratios.",
		CostPerImage:          "~$0.04",
		Endpoint:              "fal-ai/gpt-image-1/text-to-image",
		Capability:            TextToImage,
		SupportedAspectRatios: []string{"1:1", "4:3", "3:2", "3:4", "2:3"},
		DefaultAspectRatio:    "1:1",
		Size:                  gptImageSizes,
	},

	// Image to image / edit
	{
		ID:                    "flux-kontext",
		Name:                  "FLUX Kontext Pro",
		Description:           "Reference image + prompt. Targeted edits and scene transformations.",
		CostPerImage:          "~$0.08",
		Endpoint:              "fal-ai/flux-pro/kontext",
		Capability:            ImageToImage,
		SupportedAspectRatios: standardRatios,
		DefaultAspectRatio:    "1:1",
		ReferenceImage:        &ReferenceImageSpec{FieldName: "image_url", MaxImages: 1},
	},
	{
		ID:                     "nano-banana-pro-edit",
		Name:                   "Nano Banana Pro (Edit)",
		Description:            "Google's model with image editing. Provide image + instructions.",
		CostPerImage:           "$0.15",
		Endpoint:               "fal-ai/nano-banana-pro/edit",
		Capability:             ImageToImage,
		SupportedAspectRatios:  standardRatios,
		DefaultAspectRatio:     "1:1",
		SupportsNegativePrompt: true,
		ReferenceImage:         &ReferenceImageSpec{FieldName: "image_urls", IsArrayField: true, MaxImages: 4},
	},
	{
		ID:                    "grok-imagine-edit",
		Name:                  "Grok Imagine (Edit)",
		Description:           "Edit images precisely with xAI's Grok Imagine model.",
		CostPerImage:          "~$0.07",
		Endpoint:              "xai/grok-imagine-image/edit",
		Capability:            ImageToImage,
		SupportedAspectRatios: standardRatios,
		DefaultAspectRatio:    "1:1",
		ReferenceImage:        &ReferenceImageSpec{FieldName: "image_url", MaxImages: 1},
	},
	{
		ID:                    "gpt-image-1-edit",
		Name:                  "GPT Image 1 (Edit)",
		Description:           "Edit or combine up to four images with GPT Image 1.",
		CostPerImage:          "~$0.04",
		Endpoint:              "fal-ai/gpt-image-1/edit-image",
		Capability:            ImageToImage,
		SupportedAspectRatios: []string{"1:1", "4:3", "3:2", "3:4", "2:3"},
		DefaultAspectRatio:    "1:1",
		ReferenceImage:        &ReferenceImageSpec{FieldName: "image_urls", IsArrayField: true, MaxImages: 4},
		Size:                  gptImageSizes,
	},
	{
		ID:                    "seedream-v4-edit",
		Name:                  "Seedream 4.0 (Edit)",
		Description:           "ByteDance Seedream. Up to ten reference images.",
		CostPerImage:          "$0.03",
		Endpoint:              "fal-ai/bytedance/seedream/v4/edit",
		Capability:            ImageToImage,
		SupportedAspectRatios: standardRatios,
		DefaultAspectRatio:    "1:1",
		ReferenceImage:        &ReferenceImageSpec{FieldName: "image_urls", IsArrayField: true, MaxImages: 10},
		Size:                  falSizePresets,
	},

	// Text or image input
	{
		ID:                    "gemini-flash-image",
		Name:                  "Gemini 2.5 Flash Image",
		Description:           "Google Gemini direct. Prompt alone or with up to three images.",
		CostPerImage:          "~$0.04",
		Provider:              ProviderGemini,
		Endpoint:              "gemini-2.5-flash-image",
		Capability:            Both,
		SupportedAspectRatios: standardRatios,
		DefaultAspectRatio:    "1:1",
		ReferenceImage:        &ReferenceImageSpec{FieldName: "image_urls", IsArrayField: true, MaxImages: 3},
	},
}
