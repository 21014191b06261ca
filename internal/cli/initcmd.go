package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/scancat/scancat/pkg/config"
)

// initCommand provisions the config file and local directories.
func (c *CLI) initCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config and provision local directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				path = config.Path()
			}

			if _, err := os.Stat(path); err == nil && !force {
				printInfo("Config already exists")
				printFile(path)
				printNextStep("Overwrite with", appName+" init --force")
				return nil
			}

			cfg := config.Default()
			if err := cfg.Write(path); err != nil {
				return err
			}
			printSuccess("Wrote config")
			printFile(path)

			for _, dir := range []string{cfg.Storage.Root, cfg.Cache.Dir, manifestDir(cfg)} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
				printFile(dir)
			}

			printNextStep("Point a dataset at its raw files, then run", appName+" populate <dataset>")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
