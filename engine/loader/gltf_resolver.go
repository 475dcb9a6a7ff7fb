package loader

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// gltfResolverImpl is the implementation of the gltfResolver interface.
type gltfResolverImpl struct {
	doc     *gltfDocument
	bin     []byte
	base    string
	fetcher Fetcher
	logger  *log.Logger

	mu     sync.RWMutex
	cache  map[string]gltfResource
	flight singleflight.Group

	decodes atomic.Int64
	fetches atomic.Int64
}

// gltfResource is one resolved URI.
type gltfResource struct {
	data     []byte
	mimeType string
}

// gltfResolver turns buffer, bufferView and image references into bytes.
// Every URI is resolved at most once per resolver: results are cached by the literal URI
// string and concurrent requests for the same URI share one in-flight fetch or decode.
// Cached slices are shared and must be treated as read-only.
type gltfResolver interface {
	// BytesForBuffer returns the bytes of a buffer, trimmed to its declared byteLength.
	//
	// Parameters:
	//   - ctx: cancels an external fetch
	//   - index: the buffer index
	//
	// Returns:
	//   - []byte: the buffer bytes
	//   - error: *ResourceError if the bytes cannot be obtained, *FormatError on bad indices or sizes
	BytesForBuffer(ctx context.Context, index int) ([]byte, error)

	// BytesForBufferView returns the [byteOffset, byteOffset+byteLength) window of a view's buffer.
	// The returned slice cannot be extended past the window.
	//
	// Parameters:
	//   - ctx: cancels an external fetch
	//   - index: the bufferView index
	//
	// Returns:
	//   - []byte: the view bytes
	//   - error: error if the buffer cannot be resolved or the window exceeds it
	BytesForBufferView(ctx context.Context, index int) ([]byte, error)

	// BytesForImage returns the encoded bytes and MIME type of an image.
	//
	// Parameters:
	//   - ctx: cancels an external fetch
	//   - index: the image index
	//
	// Returns:
	//   - []byte: the encoded image
	//   - string: the MIME type, possibly empty for external files
	//   - error: error if the image cannot be resolved
	BytesForImage(ctx context.Context, index int) ([]byte, string, error)

	// Prefetch resolves every buffer and image URI in parallel on the pool and waits for all of them.
	//
	// Parameters:
	//   - ctx: cancels outstanding fetches
	//   - pool: the worker pool to run fetches on
	//
	// Returns:
	//   - error: the first resolution error
	Prefetch(ctx context.Context, pool worker.DynamicWorkerPool) error

	// Stats reports how many data URIs were decoded and external URIs fetched.
	//
	// Returns:
	//   - int64: data URI decodes
	//   - int64: external fetches
	Stats() (int64, int64)
}

var _ gltfResolver = &gltfResolverImpl{}

// newGLTFResolver creates a resolver for one document.
//
// Parameters:
//   - doc: the parsed document
//   - bin: the GLB binary chunk, or nil
//   - base: the directory path or URL relative URIs resolve against
//   - fetcher: the fetcher for external URIs
//   - logger: the loader logger
//
// Returns:
//   - gltfResolver: the resolver
func newGLTFResolver(doc *gltfDocument, bin []byte, base string, fetcher Fetcher, logger *log.Logger) gltfResolver {
	return &gltfResolverImpl{
		doc:     doc,
		bin:     bin,
		base:    base,
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]gltfResource),
	}
}

func (r *gltfResolverImpl) BytesForBuffer(ctx context.Context, index int) ([]byte, error) {
	if index < 0 || index >= len(r.doc.Buffers) {
		return nil, newFormatErrorf(fmt.Sprintf("buffer %d", index), errIndexOutOfRange, "document has %d buffers", len(r.doc.Buffers))
	}
	buf := &r.doc.Buffers[index]

	var data []byte
	if buf.URI == "" {
		if r.bin == nil {
			return nil, newResourceError("", fmt.Errorf("buffer %d: %w", index, errMissingBinaryChunk))
		}
		data = r.bin
	} else {
		res, err := r.resolve(ctx, buf.URI)
		if err != nil {
			return nil, err
		}
		data = res.data
	}

	if len(data) < buf.ByteLength {
		return nil, newFormatErrorf(fmt.Sprintf("buffer %d", index), errBufferSizeMismatch,
			"declares %d bytes, resolved %d", buf.ByteLength, len(data))
	}
	return data[:buf.ByteLength:buf.ByteLength], nil
}

func (r *gltfResolverImpl) BytesForBufferView(ctx context.Context, index int) ([]byte, error) {
	if index < 0 || index >= len(r.doc.BufferViews) {
		return nil, newFormatErrorf(fmt.Sprintf("bufferView %d", index), errIndexOutOfRange, "document has %d bufferViews", len(r.doc.BufferViews))
	}
	view := &r.doc.BufferViews[index]

	data, err := r.BytesForBuffer(ctx, view.Buffer)
	if err != nil {
		return nil, err
	}

	start := view.ByteOffset
	end := start + view.ByteLength
	if start < 0 || view.ByteLength < 0 || end > len(data) {
		return nil, newFormatErrorf(fmt.Sprintf("bufferView %d", index), errBufferSizeMismatch,
			"window [%d, %d) exceeds buffer %d of %d bytes", start, end, view.Buffer, len(data))
	}
	return data[start:end:end], nil
}

func (r *gltfResolverImpl) BytesForImage(ctx context.Context, index int) ([]byte, string, error) {
	if index < 0 || index >= len(r.doc.Images) {
		return nil, "", newFormatErrorf(fmt.Sprintf("image %d", index), errIndexOutOfRange, "document has %d images", len(r.doc.Images))
	}
	img := &r.doc.Images[index]

	if img.BufferView != nil {
		data, err := r.BytesForBufferView(ctx, *img.BufferView)
		if err != nil {
			return nil, "", fmt.Errorf("image %d: %w", index, err)
		}
		return data, img.MimeType, nil
	}
	if img.URI == "" {
		return nil, "", newFormatError(fmt.Sprintf("image %d", index), fmt.Errorf("image has neither uri nor bufferView"))
	}

	res, err := r.resolve(ctx, img.URI)
	if err != nil {
		return nil, "", err
	}
	mime := img.MimeType
	if mime == "" {
		mime = res.mimeType
	}
	return res.data, mime, nil
}

func (r *gltfResolverImpl) Prefetch(ctx context.Context, pool worker.DynamicWorkerPool) error {
	seen := make(map[string]struct{})
	var uris []string
	add := func(uri string) {
		if uri == "" {
			return
		}
		if _, ok := seen[uri]; ok {
			return
		}
		seen[uri] = struct{}{}
		uris = append(uris, uri)
	}
	for _, b := range r.doc.Buffers {
		add(b.URI)
	}
	for _, img := range r.doc.Images {
		if img.BufferView == nil {
			add(img.URI)
		}
	}
	if len(uris) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i, uri := range uris {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				if _, err := r.resolve(ctx, uri); err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return nil, err
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return firstErr
}

func (r *gltfResolverImpl) Stats() (int64, int64) {
	return r.decodes.Load(), r.fetches.Load()
}

// --- Helper Functions ---

// resolve returns the cached resource for uri, decoding or fetching it on first use.
func (r *gltfResolverImpl) resolve(ctx context.Context, uri string) (gltfResource, error) {
	r.mu.RLock()
	res, ok := r.cache[uri]
	r.mu.RUnlock()
	if ok {
		return res, nil
	}

	v, err, _ := r.flight.Do(uri, func() (any, error) {
		r.mu.RLock()
		res, ok := r.cache[uri]
		r.mu.RUnlock()
		if ok {
			return res, nil
		}

		var err error
		if strings.HasPrefix(uri, "data:") {
			r.decodes.Add(1)
			res.data, res.mimeType, err = gltfDecodeDataURI(uri)
			if err != nil {
				return gltfResource{}, newResourceError(uri, err)
			}
		} else {
			target, rerr := gltfResolveReference(r.base, uri)
			if rerr != nil {
				return gltfResource{}, newResourceError(uri, rerr)
			}
			r.fetches.Add(1)
			r.logger.Debug("fetching resource", "uri", target)
			res.data, err = r.fetcher.Fetch(ctx, target)
			if err != nil {
				return gltfResource{}, newResourceError(target, err)
			}
			res.mimeType = gltfMimeFromExt(target)
		}

		r.mu.Lock()
		r.cache[uri] = res
		r.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return gltfResource{}, err
	}
	return v.(gltfResource), nil
}

// gltfDecodeDataURI decodes a data URI into raw bytes and its MIME type.
// Format: data:[<mediatype>][;base64],<data>
func gltfDecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: prefix", errInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: no comma found", errInvalidDataURI)
	}

	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", errInvalidDataURI, err)
		}
		return []byte(decoded), mimeType, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some exporters drop the trailing padding.
		if data, err2 := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err2 == nil {
			return data, mimeType, nil
		}
		return nil, "", fmt.Errorf("%w: failed to decode base64: %v", errInvalidDataURI, err)
	}
	return data, mimeType, nil
}

// gltfResolveReference resolves a relative glTF URI against the document base.
// The base is either a URL (http, https, file) or a local directory.
func gltfResolveReference(base, uri string) (string, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid uri: %w", err)
	}
	// A one-letter scheme is a Windows drive letter, not a URL.
	if len(ref.Scheme) > 1 {
		return uri, nil
	}

	if baseURL, err := url.Parse(base); err == nil && len(baseURL.Scheme) > 1 {
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
		return baseURL.ResolveReference(ref).String(), nil
	}

	path, err := url.PathUnescape(uri)
	if err != nil {
		path = uri
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Join(base, filepath.FromSlash(path)), nil
}

// gltfBaseOf returns the base that relative URIs in the document at location resolve against.
func gltfBaseOf(location string) string {
	if u, err := url.Parse(location); err == nil && len(u.Scheme) > 1 {
		if i := strings.LastIndex(u.Path, "/"); i >= 0 {
			u.Path = u.Path[:i+1]
		}
		u.RawQuery = ""
		u.Fragment = ""
		return u.String()
	}
	return filepath.Dir(location)
}

func gltfMimeFromExt(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".bin":
		return "application/octet-stream"
	default:
		return ""
	}
}
