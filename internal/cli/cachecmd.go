package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// cacheCommand groups cache maintenance subcommands.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the field cache",
	}
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheStatsCommand())
	cmd.AddCommand(c.cacheClearCommand())
	return cmd
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache and storage directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fmt.Println(cfg.Cache.Dir)
			fmt.Println(cfg.Storage.Root)
			return nil
		},
	}
}

func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache index and blob store sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			entries, _ := dirStats(cfg.Cache.Dir)
			blobCount, blobBytes := dirStats(cfg.Storage.Root)

			printKeyValue("index entries", fmt.Sprintf("%d", entries))
			printKeyValue("blobs", fmt.Sprintf("%d", blobCount))
			printKeyValue("blob bytes", humanBytes(blobBytes))
			printDetail("index: %s", cfg.Cache.Dir)
			printDetail("blobs: %s", cfg.Storage.Root)
			return nil
		},
	}
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var blobs bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached index entries",
		Long: `Clear removes the cache index. Blobs stay in the content-addressed
store unless --blobs is given, since other datasets may share them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			n, err := removeFiles(cfg.Cache.Dir)
			if err != nil {
				return err
			}
			printSuccess("Removed %d index entries", n)
			if blobs {
				n, err := removeFiles(cfg.Storage.Root)
				if err != nil {
					return err
				}
				printSuccess("Removed %d blobs", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&blobs, "blobs", false, "also delete the content-addressed blobs")
	return cmd
}

// dirStats counts regular files and their total size under dir.
func dirStats(dir string) (count int, bytes int64) {
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		count++
		bytes += info.Size()
		return nil
	})
	return count, bytes
}

// removeFiles deletes all regular files under dir, then prunes empty
// subdirectories. dir itself is kept.
func removeFiles(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	count := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == dir || info.IsDir() {
			return nil
		}
		// Blobs are written read-only.
		_ = os.Chmod(path, 0o644)
		if err := os.Remove(path); err == nil {
			count++
		}
		return nil
	})
	if err != nil {
		return count, err
	}
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if info.IsDir() {
			os.Remove(path)
		}
		return nil
	})
	return count, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
