package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/scancat/scancat/pkg/dataset"
)

// datasetsCommand lists the registered datasets.
func (c *CLI) datasetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets [name]",
		Short: "List registered datasets, or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				e, err := c.Registry.Get(args[0])
				if err != nil {
					return err
				}
				printDataset(e)
				return nil
			}
			printDatasetTable(c.Registry.All())
			return nil
		},
	}
	return cmd
}

func printDatasetTable(entries []dataset.Entry) {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		d := e.Description
		rows[i] = []string{
			e.Name,
			strings.Join(d.Modality, ", "),
			strings.Join(d.BodyRegion, ", "),
			strings.Join(d.Task, ", "),
			d.License.Name,
			d.RawDataSize,
			d.PrepDataSize,
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Name", "Modality", "Region", "Task", "License", "Raw", "Cached").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 0 {
				return StyleValue
			}
			return StyleDim
		})
	fmt.Println(t)
	printDetail("%d datasets registered", len(entries))
}

func printDataset(e dataset.Entry) {
	d := e.Description
	fmt.Println(StyleTitle.Render(e.Name))
	if d.Link != "" {
		printKeyValue("source", d.Link)
	}
	if d.License.Name != "" {
		printKeyValue("license", d.License.Name)
	}
	if len(d.Modality) > 0 {
		printKeyValue("modality", strings.Join(d.Modality, ", "))
	}
	if len(d.BodyRegion) > 0 {
		printKeyValue("region", strings.Join(d.BodyRegion, ", "))
	}
	if len(d.Task) > 0 {
		printKeyValue("task", strings.Join(d.Task, ", "))
	}
	if d.RawDataSize != "" {
		printKeyValue("raw size", d.RawDataSize)
	}
	if d.PrepDataSize != "" {
		printKeyValue("cached size", d.PrepDataSize)
	}

	fmt.Println()
	rows := make([][]string, len(e.Fields))
	for i, f := range e.Fields {
		rows[i] = []string{f.Name, f.Kind.String(), f.Doc}
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Field", "Kind", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 0 {
				return StyleValue
			}
			return StyleDim
		})
	fmt.Println(t)
}
