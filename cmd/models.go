package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"dreamsun/models"
)

// ModelsHandler prints the model catalog.
func ModelsHandler(cmd *cobra.Command, _ []string) error {
	list := models.Default().All()
	if c, _ := cmd.Flags().GetString("capability"); c != "" {
		capability, err := models.ParseCapability(c)
		if err != nil {
			return err
		}
		list = models.Default().ListByCapability(capability)
	}
	writeModels(cmd.OutOrStdout(), list)
	return nil
}

func writeModels(w io.Writer, list []models.Descriptor) {
	var data [][]string
	for _, d := range list {
		refs := "-"
		if n := d.MaxReferenceImages(); n > 0 {
			refs = fmt.Sprintf("%d", n)
		}
		data = append(data, []string{
			d.ID,
			d.Name,
			string(d.Capability),
			strings.Join(d.SupportedAspectRatios, " "),
			refs,
			d.CostPerImage,
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "NAME", "CAPABILITY", "ASPECT RATIOS", "REFS", "COST"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
