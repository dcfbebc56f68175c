package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dreamsun/generation"
	"dreamsun/imagehost"
	"dreamsun/models"
	"dreamsun/providers"
)

// GenerateHandler generates one image and prints its URL.
func GenerateHandler(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	req := generation.Request{}
	req.ModelID, _ = flags.GetString("model")
	req.Prompt, _ = flags.GetString("prompt")
	req.AspectRatio, _ = flags.GetString("aspect-ratio")
	req.NegativePrompt, _ = flags.GetString("negative-prompt")
	images, _ := flags.GetStringArray("image")
	asJSON, _ := flags.GetBool("json")

	if req.ModelID == "" {
		req.ModelID = defaultModel(models.Default(), len(images) > 0)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	uploader, err := imagehost.New(cfg)
	if err != nil {
		return err
	}
	service, err := newService(ctx, cfg, uploader)
	if err != nil {
		return err
	}

	// Fail on a bad request before anything is uploaded.
	if _, _, err := service.Prepare(req); err != nil {
		return err
	}

	if req.ReferenceImageURLs, err = resolveImages(ctx, uploader, images); err != nil {
		return err
	}

	if cfg.Settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Settings.RequestTimeout.Std())
		defer cancel()
	}
	result, err := service.Generate(ctx, req, progress(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(out, result.ImageURL)
	return nil
}

// defaultModel picks the first model able to serve the request.
func defaultModel(registry *models.Registry, withImages bool) string {
	capability := models.TextToImage
	if withImages {
		capability = models.ImageToImage
	}
	if list := registry.ListByCapability(capability); len(list) > 0 {
		return list[0].ID
	}
	return ""
}

func progress(w io.Writer) providers.UpdateFunc {
	return func(u providers.QueueUpdate) {
		switch u.Status {
		case providers.StatusInQueue:
			if u.Position > 0 {
				fmt.Fprintf(w, "queued (position %d)\n", u.Position)
			} else {
				fmt.Fprintln(w, "queued")
			}
		case providers.StatusInProgress:
			fmt.Fprintln(w, "generating")
		}
		for _, l := range u.Logs {
			fmt.Fprintf(w, "  %s\n", l.Message)
		}
	}
}

// resolveImages uploads local files and keeps URLs as they are. The result
// preserves the order of refs.
func resolveImages(ctx context.Context, uploader imagehost.Uploader, refs []string) ([]string, error) {
	urls := make([]string, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		if isURL(ref) {
			urls[i] = ref
			continue
		}
		g.Go(func() error {
			url, err := uploadFile(ctx, uploader, ref)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func uploadFile(ctx context.Context, uploader imagehost.Uploader, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	url, err := uploader.Upload(ctx, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("could not upload %s: %w", path, err)
	}
	return url, nil
}
