package imagehost

import (
	"fmt"

	"dreamsun/config"
)

// New builds the uploader selected by cfg.Settings.UploadBackend, wrapped
// with the shared payload checks.
func New(cfg *config.Config) (*Checked, error) {
	var backend Uploader
	switch cfg.Settings.UploadBackend {
	case config.BackendFal, "":
		if cfg.APIKeys.Fal == "" {
			return nil, fmt.Errorf("FAL_KEY is required for fal uploads")
		}
		backend = NewFalStorage(cfg.APIKeys.Fal)
	case config.BackendSupabase:
		s, err := NewSupabaseStorage(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.Supabase.Bucket)
		if err != nil {
			return nil, err
		}
		backend = s
	case config.BackendNodeImage:
		if cfg.APIKeys.NodeImage == "" {
			return nil, fmt.Errorf("NODEIMAGE_API_KEY is required for nodeimage uploads")
		}
		backend = NewNodeImageClient(cfg.APIKeys.NodeImage)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Settings.UploadBackend)
	}
	return &Checked{Backend: backend, MaxBytes: cfg.Settings.MaxUploadBytes}, nil
}
