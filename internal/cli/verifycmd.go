package cli

import (
	"github.com/spf13/cobra"

	"github.com/scancat/scancat/pkg/cache"
	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/errors"
)

// verifyCommand re-checks the cache against a dataset's manifest.
func (c *CLI) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dataset>",
		Short: "Re-hash cached values against the checksum manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			name := args[0]

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if _, err := c.Registry.Get(name); err != nil {
				return err
			}
			manifest, err := checksum.Load(manifestDir(cfg), name)
			if err != nil {
				return err
			}
			blobs, index, err := c.openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			prog := newProgress(logger)
			spinner := newSpinnerWithContext(ctx, "Re-hashing cached values...")
			spinner.Start()
			mismatches, err := cache.VerifyManifest(ctx, index, blobs, manifest)
			spinner.Stop()
			if err != nil {
				return err
			}
			prog.done("Verified " + name)

			if len(mismatches) == 0 {
				printSuccess("%d entries verified, all match", manifest.Len())
				return nil
			}
			printError("%d of %d entries failed verification", len(mismatches), manifest.Len())
			for _, m := range mismatches {
				printDetail("%s", m)
			}
			return errors.New(errors.ErrCodeChecksumMismatch,
				"%d cached values do not match the manifest for %q", len(mismatches), name)
		},
	}
}
