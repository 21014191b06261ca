package cli

import (
	"github.com/spf13/cobra"

	"github.com/scancat/scancat/pkg/docgen"
)

// docsCommand renders the markdown catalog pages.
func (c *CLI) docsCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate markdown documentation for all datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := docgen.Generate(output, c.Registry); err != nil {
				return err
			}
			printSuccess("Generated docs for %d datasets", c.Registry.Len())
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "docs", "output directory")
	return cmd
}
