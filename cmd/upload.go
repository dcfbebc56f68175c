package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dreamsun/imagehost"
)

// UploadHandler uploads one local image through the configured backend.
func UploadHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	uploader, err := imagehost.New(cfg)
	if err != nil {
		return err
	}
	url, err := uploadFile(cmd.Context(), uploader, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
