package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"dreamsun/config"
	"dreamsun/generation"
	"dreamsun/models"
	"dreamsun/providers"
)

// NewCLI builds the dreamsun command tree.
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rootCmd := &cobra.Command{
		Use:   "dreamsun",
		Short: "Image generation gateway for fal.ai and Gemini models",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	cobra.EnableCommandSorting = false

	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the web server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}

	modelsCmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"ls"},
		Short:   "List available models",
		Args:    cobra.ExactArgs(0),
		RunE:    ModelsHandler,
	}
	modelsCmd.Flags().String("capability", "", "Only list models with this capability (text-to-image, image-to-image)")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an image",
		Args:  cobra.ExactArgs(0),
		RunE:  GenerateHandler,
	}
	generateCmd.Flags().StringP("model", "m", "", "Model id (defaults to the first text-to-image model)")
	generateCmd.Flags().StringP("prompt", "p", "", "Prompt describing the image")
	generateCmd.Flags().StringP("aspect-ratio", "a", "", "Aspect ratio, e.g. 16:9")
	generateCmd.Flags().StringArrayP("image", "i", nil, "Reference image path or URL (repeatable)")
	generateCmd.Flags().String("negative-prompt", "", "What the image should not contain")
	generateCmd.Flags().Bool("json", false, "Print the full result as JSON")
	generateCmd.MarkFlagRequired("prompt")

	uploadCmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an image and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE:  UploadHandler,
	}

	rootCmd.AddCommand(
		serveCmd,
		modelsCmd,
		generateCmd,
		uploadCmd,
	)

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.AppConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config.AppConfig, nil
}

// newService wires the configured providers to the model registry. store
// receives images that a provider returns inline.
func newService(ctx context.Context, cfg *config.Config, store providers.ImageStore) (*generation.Service, error) {
	clients := make(map[string]providers.ImageProvider)

	if cfg.APIKeys.Fal != "" {
		fal := providers.NewFalAIProvider(cfg.APIKeys.Fal)
		fal.UseQueue = cfg.Settings.FalQueue
		fal.PollInterval = cfg.Settings.PollInterval.Std()
		clients[models.ProviderFal] = fal
	}

	if cfg.APIKeys.Gemini != "" {
		gemini, err := providers.NewGeminiProvider(ctx, cfg.APIKeys.Gemini, store)
		if err != nil {
			return nil, err
		}
		gemini.MaxDownloadBytes = cfg.Settings.MaxUploadBytes
		clients[models.ProviderGemini] = gemini
	}

	for name, p := range clients {
		log.Printf("Provider '%s' enabled as %s", p.GetName(), name)
	}
	return generation.NewService(models.Default(), clients), nil
}
