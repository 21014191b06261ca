package cli

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/mirror"
)

// fetchCommand downloads a raw dataset archive.
func (c *CLI) fetchCommand() *cobra.Command {
	var (
		output string
		sha    string
	)

	cmd := &cobra.Command{
		Use:   "fetch <dataset> <url>",
		Short: "Download a raw archive from a dataset mirror",
		Long: `Fetch downloads an archive into the dataset's configured raw root,
resuming interrupted transfers where the server supports Range requests.
With --sha256 the finished file is verified before being moved into place.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, rawURL := args[0], args[1]

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if _, err := c.Registry.Get(name); err != nil {
				return err
			}

			dest := output
			if dest == "" {
				root := cfg.DatasetRoot(name)
				if root == "" {
					return errors.New(errors.ErrCodeInvalidConfig,
						"no raw data root configured for %q; pass --output", name)
				}
				u, err := url.Parse(rawURL)
				if err != nil {
					return errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing url")
				}
				base := path.Base(u.Path)
				if base == "" || base == "/" || base == "." {
					return errors.New(errors.ErrCodeInvalidInput,
						"cannot derive a file name from %q; pass --output", rawURL)
				}
				dest = filepath.Join(root, base)
			}

			client := mirror.New(mirror.Options{})
			printInfo("Downloading %s", rawURL)
			err = client.Download(ctx, rawURL, dest, mirror.DownloadOptions{
				SHA256:   sha,
				Progress: printDownloadProgress,
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			printSuccess("Downloaded")
			printFile(dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (default <dataset root>/<url basename>)")
	cmd.Flags().StringVar(&sha, "sha256", "", "expected hex digest of the finished file")
	return cmd
}

// printDownloadProgress rewrites one status line as bytes arrive.
func printDownloadProgress(written, total int64) {
	if total > 0 {
		fmt.Fprintf(os.Stderr, "\r  %s / %s (%d%%)",
			humanBytes(written), humanBytes(total), written*100/total)
		return
	}
	fmt.Fprintf(os.Stderr, "\r  %s", humanBytes(written))
}
