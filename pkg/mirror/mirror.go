// Package mirror downloads raw dataset archives from public mirrors.
//
// Raw downloads are tens of gigabytes, and the public hosts (physionet,
// zenodo, OSF) drop long connections routinely. The client retries
// transient failures with exponential backoff, resumes interrupted
// transfers with Range requests when the server allows it, and verifies
// the finished file against the dataset's published SHA-256 digest.
package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/scancat/scancat/pkg/errors"
)

const defaultUserAgent = "scancat/1.0"

// Options configures a download client.
type Options struct {
	// Attempts is the total number of tries per request. Default 4.
	Attempts int
	// Backoff is the initial retry delay, doubling per attempt. Default 1s.
	Backoff time.Duration
	// UserAgent overrides the default request header.
	UserAgent string
	// HTTPClient defaults to a client without a global timeout; archive
	// downloads run far longer than any sane request timeout.
	HTTPClient *http.Client
}

// Client downloads archives.
type Client struct {
	opts Options
}

// New creates a download client.
func New(opts Options) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 4
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{opts: opts}
}

// Progress is called as bytes arrive. total is -1 when the server does
// not announce a content length.
type Progress func(written, total int64)

// DownloadOptions configures one transfer.
type DownloadOptions struct {
	// SHA256 is the expected hex digest of the complete file. Empty
	// skips verification.
	SHA256 string
	// Progress is invoked after every chunk. Optional.
	Progress Progress
}

// Download fetches url into dest. A partial file from an earlier run is
// resumed when the server honors Range requests. The finished file is
// only moved into place after passing checksum verification.
func (c *Client) Download(ctx context.Context, url, dest string, opts DownloadOptions) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	part := dest + ".part"

	backoff := retry.WithMaxRetries(uint64(c.opts.Attempts-1), retry.NewExponential(c.opts.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.fetch(ctx, url, part, opts.Progress)
	})
	if err != nil {
		return err
	}

	if opts.SHA256 != "" {
		actual, err := fileSHA256(part)
		if err != nil {
			return err
		}
		if !strings.EqualFold(actual, opts.SHA256) {
			os.Remove(part)
			return errors.New(errors.ErrCodeChecksumMismatch,
				"download %s: checksum mismatch: want %s, got %s", url, opts.SHA256, actual)
		}
	}
	return os.Rename(part, dest)
}

// fetch performs one transfer attempt, appending to the partial file.
func (c *Client) fetch(ctx context.Context, url, part string, progress Progress) error {
	var offset int64
	if info, err := os.Stat(part); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return retry.RetryableError(errors.Wrap(errors.ErrCodeNetwork, err, "fetching %s", url))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		// Server honored the Range header, keep appending.
	case resp.StatusCode == http.StatusOK:
		// Full body, any partial data is stale.
		offset = 0
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(errors.New(errors.ErrCodeNetwork,
			"fetching %s: status %s", url, resp.Status))
	default:
		return errors.New(errors.ErrCodeNetwork, "fetching %s: status %s", url, resp.Status)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}
	written := offset
	buf := make([]byte, 128*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Mid-transfer drop: the bytes written so far stay in the
			// partial file for the next attempt to resume from.
			return retry.RetryableError(errors.Wrap(errors.ErrCodeNetwork, err, "reading %s", url))
		}
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
