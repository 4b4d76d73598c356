// Package fetch retrieves OEM documents over HTTP and keeps a local copy
// of each one it downloads.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("fetch")

// Config controls fetcher behavior.
type Config struct {
	HTTPTimeout time.Duration // defaults to 60s
	CacheDir    string        // where local copies go; empty keeps none
}

// Error reports a failure to retrieve or persist a document.
type Error struct {
	URL        string
	StatusCode int // non-zero if the server answered with a non-200 status
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher downloads documents.
type Fetcher struct {
	cfg        Config
	httpClient *http.Client
}

// New constructs a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	return &Fetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// Fetch returns the body of the document at sourceURL. If a cache
// directory is configured, the body is also written there under the
// last segment of the URL path.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", &Error{URL: sourceURL, Err: err}
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &Error{URL: sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &Error{
			URL:        sourceURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{URL: sourceURL, Err: fmt.Errorf("read body: %w", err)}
	}
	log.Debugf("Fetched %s (%s)", sourceURL, humanize.Bytes(uint64(len(data))))

	if f.cfg.CacheDir != "" {
		fn, err := f.keepCopy(sourceURL, data)
		if err != nil {
			return "", &Error{URL: sourceURL, Err: fmt.Errorf("save local copy: %w", err)}
		}
		log.Infof("Saved %s to %s", humanize.Bytes(uint64(len(data))), fn)
	}

	return string(data), nil
}

func (f *Fetcher) keepCopy(sourceURL string, data []byte) (string, error) {
	if err := os.MkdirAll(f.cfg.CacheDir, 0755); err != nil {
		return "", err
	}
	fn := filepath.Join(f.cfg.CacheDir, LocalName(sourceURL))
	return fn, os.WriteFile(fn, data, 0644)
}

// LocalName returns the file name used for the local copy of sourceURL:
// the last segment of its path, or "tmp.bin" if there is none.
func LocalName(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "tmp.bin"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "tmp.bin"
	}
	return name
}
