// Package cli implements the scancat command-line interface.
//
// Commands cover the full catalog workflow: provisioning local storage
// (init), browsing registered datasets (datasets), filling the cache
// (populate), checking it against the checksum manifest (verify), cache
// maintenance (cache), raw archive downloads (fetch), markdown docs
// generation (docs), and the catalog HTTP API (serve).
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context.
package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/scancat/scancat/pkg/buildinfo"
	"github.com/scancat/scancat/pkg/cache"
	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/config"
	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/datasets"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/storage"
)

// appName is the application name used for directories and display.
const appName = "scancat"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger   *log.Logger
	Registry *dataset.Registry

	configPath string
}

// New creates a CLI instance over the built-in dataset registry.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:   newLogger(w, level),
		Registry: datasets.Registry(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Scancat is a catalog of public medical imaging datasets",
		Long:         `Scancat gives heterogeneous public medical imaging datasets one uniform access interface: stable ids, declared fields, content-addressed caching, and checksum verification.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default "+config.Path()+")")

	root.AddCommand(c.initCommand())
	root.AddCommand(c.datasetsCommand())
	root.AddCommand(c.populateCommand())
	root.AddCommand(c.verifyCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.docsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file, honoring the --config flag.
func (c *CLI) loadConfig() (config.Config, error) {
	path := c.configPath
	if path == "" {
		path = config.Path()
	}
	return config.Load(path)
}

// openStores builds the blob store and cache index from the config.
// The caller owns closing the returned index.
func (c *CLI) openStores(ctx context.Context, cfg config.Config) (*storage.Store, cache.Store, error) {
	blobs, err := storage.New(cfg.Storage.Root)
	if err != nil {
		return nil, nil, err
	}
	var index cache.Store
	switch cfg.Cache.Backend {
	case "file":
		index, err = cache.NewFileStore(cfg.Cache.Dir)
	case "redis":
		index, err = cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	case "none":
		index = cache.NewNullStore()
	}
	if err != nil {
		return nil, nil, err
	}
	return blobs, index, nil
}

// openDataset constructs a cache-wrapped dataset over its configured
// raw root. The manifest is loaded when present; without one, reads are
// served unverified.
func (c *CLI) openDataset(ctx context.Context, cfg config.Config, name string) (dataset.Dataset, func() error, error) {
	e, err := c.Registry.Get(name)
	if err != nil {
		return nil, nil, err
	}
	root := cfg.DatasetRoot(name)
	if root == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidConfig,
			"no raw data root configured for %q (add [datasets.%s] root = ... to %s)", name, name, config.Path())
	}
	ds, err := e.New(root)
	if err != nil {
		return nil, nil, err
	}
	blobs, index, err := c.openStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	manifest, err := checksum.Load(manifestDir(cfg), name)
	if err != nil && !errors.Is(err, errors.ErrCodeManifestNotFound) {
		index.Close()
		return nil, nil, err
	}

	wrapped, err := cache.Wrap(ds, cache.Options{
		Store:    index,
		Blobs:    blobs,
		Manifest: manifest,
		Verify:   cfg.VerifyLevel(),
		Logger:   c.Logger,
	})
	if err != nil {
		index.Close()
		return nil, nil, err
	}
	return wrapped, index.Close, nil
}

// manifestDir is where populate writes checksum manifests.
func manifestDir(cfg config.Config) string {
	return filepath.Join(cfg.Cache.Dir, "manifests")
}
