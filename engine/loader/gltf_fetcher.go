package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Fetcher returns the bytes behind an absolute URI or file path.
// Implementations must be safe for concurrent use; the loader calls Fetch from its worker pool.
type Fetcher interface {
	// Fetch retrieves the resource.
	//
	// Parameters:
	//   - ctx: cancels the fetch
	//   - uri: an absolute URL or a file path
	//
	// Returns:
	//   - []byte: the resource bytes
	//   - error: error if the resource cannot be obtained
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, uri string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// FileFetcher reads local files. A leading file:// scheme is stripped.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// HTTPFetcher performs GET requests. Non-2xx responses are errors; there are no retries.
type HTTPFetcher struct {
	// Client is the HTTP client; http.DefaultClient when nil.
	Client *http.Client

	// Timeout bounds each fetch. Zero means no per-fetch timeout beyond ctx.
	Timeout time.Duration

	// Progress, when set, is called once per response and the body is also copied to the
	// returned writer (e.g. a progress bar). contentLength is -1 when unknown.
	Progress func(uri string, contentLength int64) io.Writer
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", errFetchStatus, resp.Status)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	var dst io.Writer = &buf
	if f.Progress != nil {
		if pw := f.Progress(uri, resp.ContentLength); pw != nil {
			dst = io.MultiWriter(&buf, pw)
		}
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return buf.Bytes(), nil
}

// SchemeFetcher dispatches on the URI scheme. URIs without a registered scheme,
// including plain file paths, go to Fallback.
type SchemeFetcher struct {
	Schemes  map[string]Fetcher
	Fallback Fetcher
}

func (f *SchemeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if scheme, _, ok := strings.Cut(uri, "://"); ok {
		if sub, ok := f.Schemes[strings.ToLower(scheme)]; ok {
			return sub.Fetch(ctx, uri)
		}
	}
	if f.Fallback == nil {
		return nil, fmt.Errorf("no fetcher for %q", gltfShortURI(uri))
	}
	return f.Fallback.Fetch(ctx, uri)
}

// NewDefaultFetcher creates the fetcher a Loader uses unless WithFetcher is given:
// http and https go to an HTTPFetcher, everything else is read from disk.
//
// Parameters:
//   - timeout: per-fetch timeout for HTTP requests, zero for none
//
// Returns:
//   - *SchemeFetcher: the fetcher
func NewDefaultFetcher(timeout time.Duration) *SchemeFetcher {
	h := &HTTPFetcher{Timeout: timeout}
	return &SchemeFetcher{
		Schemes: map[string]Fetcher{
			"http":  h,
			"https": h,
			"file":  FileFetcher{},
		},
		Fallback: FileFetcher{},
	}
}
