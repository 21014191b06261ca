package cli

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/scancat/scancat/internal/server"
	"github.com/scancat/scancat/pkg/config"
	"github.com/scancat/scancat/pkg/dataset"
)

// serveCommand runs the catalog HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over HTTP",
		Long: `Serve exposes the registry, id lists, and field values over a read-only
HTTP API. Requests go through the cache, so a populated dataset serves
without touching its raw files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			opener := newCachingOpener(c, cfg)
			defer opener.close()

			srv := server.New(c.Registry, opener.open, logger)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}

// cachingOpener opens each dataset once and reuses it across requests.
type cachingOpener struct {
	cli *CLI
	cfg config.Config

	mu     sync.Mutex
	opened map[string]dataset.Dataset
	closes []func() error
}

func newCachingOpener(c *CLI, cfg config.Config) *cachingOpener {
	return &cachingOpener{cli: c, cfg: cfg, opened: map[string]dataset.Dataset{}}
}

func (o *cachingOpener) open(name string) (dataset.Dataset, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ds, ok := o.opened[name]; ok {
		return ds, nil
	}
	ds, closeFn, err := o.cli.openDataset(context.Background(), o.cfg, name)
	if err != nil {
		return nil, err
	}
	o.opened[name] = ds
	o.closes = append(o.closes, closeFn)
	return ds, nil
}

func (o *cachingOpener) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, fn := range o.closes {
		_ = fn()
	}
	o.opened = map[string]dataset.Dataset{}
	o.closes = nil
}
