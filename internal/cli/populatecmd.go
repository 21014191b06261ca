package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/populate"
)

// populateCommand fills the cache for one dataset and writes its
// checksum manifest.
func (c *CLI) populateCommand() *cobra.Command {
	var (
		jobs         int
		ignoreErrors bool
		fields       []string
	)

	cmd := &cobra.Command{
		Use:   "populate <dataset>",
		Short: "Fetch every field of every id into the cache",
		Long: `Populate loads every declared field for every id of a dataset, stores
the values in the content-addressed cache, and writes a checksum manifest
recording the digest of each value. Later reads verify against that
manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			name := args[0]

			for _, f := range fields {
				if err := errors.ValidateFieldName(f); err != nil {
					return err
				}
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			e, err := c.Registry.Get(name)
			if err != nil {
				return err
			}
			root := cfg.DatasetRoot(name)
			if root == "" {
				return errors.New(errors.ErrCodeInvalidConfig,
					"no raw data root configured for %q", name)
			}
			ds, err := e.New(root)
			if err != nil {
				return err
			}
			blobs, index, err := c.openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			prog := newProgress(logger)
			report, err := populate.Run(ctx, ds, index, blobs, populate.Options{
				Jobs:         jobs,
				Fields:       fields,
				IgnoreErrors: ignoreErrors,
				Hooks:        &logHooks{logger: logger},
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			if err := report.Manifest.Save(manifestDir(cfg)); err != nil {
				return err
			}
			prog.done("Populated " + name)

			printSuccess("%d values cached across %d ids", report.Succeeded, report.IDs)
			if len(report.Failures) > 0 {
				printWarning("%d fetches failed", len(report.Failures))
				for _, f := range report.Failures {
					printDetail("%s/%s: %v", f.ID, f.Field, f.Err)
				}
			}
			printNextStep("Verify the cache anytime with", appName+" verify "+name)
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", populate.DefaultJobs, "concurrent fetches")
	cmd.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "keep going when a fetch fails")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "restrict to these fields (default all)")
	return cmd
}

// logHooks reports per-field progress at debug level.
type logHooks struct {
	logger *log.Logger
}

func (h *logHooks) OnFieldStart(ctx context.Context, dataset, id, field string) {}

func (h *logHooks) OnFieldComplete(ctx context.Context, dataset, id, field string, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("fetch failed", "id", id, "field", field, "err", err)
		return
	}
	h.logger.Debug("cached", "id", id, "field", field, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnDatasetComplete(ctx context.Context, dataset string, succeeded, failed int, d time.Duration) {
	h.logger.Info("populate finished", "dataset", dataset,
		"succeeded", succeeded, "failed", failed, "duration", d.Round(time.Millisecond))
}
