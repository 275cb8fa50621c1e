package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

// DefaultMaxRedirects is the redirect hop limit for archive downloads.
const DefaultMaxRedirects = 10

const userAgent = "haystack-sidecar-manager"

// NewDownloadClient returns an http.Client that hands 3xx responses back to
// the caller instead of following them, so the Downloader can count hops.
func NewDownloadClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Downloader implements ports.Downloader over HTTP GET with manual,
// bounded redirect following.
type Downloader struct {
	client       ports.HTTPClient
	maxRedirects int
	logger       ports.Logger
}

// NewDownloader creates a downloader. maxRedirects <= 0 selects the default.
func NewDownloader(client ports.HTTPClient, maxRedirects int, logger ports.Logger) *Downloader {
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	return &Downloader{
		client:       client,
		maxRedirects: maxRedirects,
		logger:       logger,
	}
}

// Download streams rawURL to dst. Redirects delete the partial file and
// reissue the request against the new target. Any non-200 terminal
// response, transport fault or write fault deletes the partial file.
func (d *Downloader) Download(ctx context.Context, rawURL, dst string, observer ports.TransferObserver) error {
	if observer == nil {
		observer = nopObserver{}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	target := rawURL
	for hops := 0; ; hops++ {
		if hops > d.maxRedirects {
			return fmt.Errorf("%w: gave up after %d hops from %s", domain.ErrTooManyRedirects, d.maxRedirects, rawURL)
		}

		next, err := d.fetch(ctx, target, dst, observer)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		d.logger.Debug("following redirect",
			ports.String("from", target),
			ports.String("to", next))
		target = next
	}
}

// fetch performs one request. It returns the redirect target when the
// response is a redirect, or "" once the body has been written to dst.
// Whatever dst held before is removed on a redirect or any failure.
func (d *Downloader) fetch(ctx context.Context, target, dst string, observer ports.TransferObserver) (redirect string, err error) {
	var out *os.File
	defer func() {
		if err == nil && redirect == "" {
			return
		}
		if out != nil {
			_ = out.Close()
		}
		if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			d.logger.Warn("failed to remove partial download",
				ports.String("path", dst), ports.Err(rmErr))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if isRedirect(resp.StatusCode) {
		if loc := resp.Header.Get("Location"); loc != "" {
			next, err := resolveLocation(req.URL, loc)
			if err != nil {
				return "", err
			}
			return next, nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: unexpected HTTP status: %d", target, resp.StatusCode)
	}

	out, err = os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	observer.Begin(target, total)

	cw := &countingWriter{w: out, onWrite: observer.Advance}
	if _, err := io.Copy(cw, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	closeErr := out.Close()
	out = nil
	if closeErr != nil {
		return "", fmt.Errorf("close %s: %w", dst, closeErr)
	}

	observer.Complete(cw.n)
	d.logger.Info("download complete",
		ports.String("url", target),
		ports.Int64("bytes", cw.n))
	return "", nil
}

func isRedirect(code int) bool {
	return code >= 300 && code < 400
}

func resolveLocation(base *url.URL, loc string) (string, error) {
	ref, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse redirect location %q: %w", loc, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// countingWriter reports the running byte count after every write.
type countingWriter struct {
	w       io.Writer
	n       int64
	onWrite func(int64)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if n > 0 {
		c.onWrite(c.n)
	}
	return n, err
}

type nopObserver struct{}

func (nopObserver) Begin(string, int64) {}
func (nopObserver) Advance(int64)       {}
func (nopObserver) Complete(int64)      {}
