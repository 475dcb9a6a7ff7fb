package loader

import (
	"errors"
	"fmt"
)

// Conditions wrapped inside the typed errors below, matchable with errors.Is.
var (
	errInvalidGLBMagic     = errors.New("invalid GLB magic number")
	errInvalidGLBVersion   = errors.New("invalid GLB version: must be 2")
	errTruncatedGLB        = errors.New("truncated GLB container")
	errMissingJSONChunk    = errors.New("GLB file missing JSON chunk")
	errDuplicateJSONChunk  = errors.New("GLB file has more than one JSON chunk")
	errInvalidGLTFVersion  = errors.New("invalid glTF version: must be 2.x")
	errMissingArray        = errors.New("document is missing a required array")
	errIndexOutOfRange     = errors.New("index out of range")
	errUnknownComponent    = errors.New("unknown component type")
	errUnknownAccessorType = errors.New("unknown accessor type")
	errSkinLengthMismatch  = errors.New("skin joint and matrix counts differ")
	errMissingBinaryChunk  = errors.New("buffer has no URI and the document has no binary chunk")
	errBufferSizeMismatch  = errors.New("buffer size mismatch")
	errInvalidDataURI      = errors.New("invalid data URI")
	errFetchStatus         = errors.New("unexpected fetch status")
	errSparseAccessor      = errors.New("sparse accessors not implemented")
	errInterleavedAccessor = errors.New("interleaved accessor not implemented")
	errRequiredExtension   = errors.New("required extension not implemented")
	errUnsupportedFormat   = errors.New("unsupported model format")
)

// FormatError reports a document that violates the glTF schema invariants the loader depends on:
// bad magic or version, missing required arrays, unknown enum values, mismatched skin arrays.
type FormatError struct {
	// Op names the stage that detected the problem, e.g. "demux" or "accessor 3".
	Op  string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("gltf format error: %s: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ResourceError reports a buffer or image that could not be obtained.
type ResourceError struct {
	// URI is the referenced resource; empty for the embedded binary chunk.
	URI string
	Err error
}

func (e *ResourceError) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("gltf resource error: %v", e.Err)
	}
	return fmt.Sprintf("gltf resource error: %s: %v", gltfShortURI(e.URI), e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// UnsupportedFeatureError reports a structurally valid construct the loader intentionally
// does not implement (sparse or interleaved accessors, compression extensions).
type UnsupportedFeatureError struct {
	Feature string
	Err     error
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("gltf unsupported feature: %s: %v", e.Feature, e.Err)
}

func (e *UnsupportedFeatureError) Unwrap() error {
	return e.Err
}

func newFormatError(op string, err error) error {
	return &FormatError{Op: op, Err: err}
}

func newFormatErrorf(op string, sentinel error, format string, args ...any) error {
	return &FormatError{Op: op, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}

func newResourceError(uri string, err error) error {
	return &ResourceError{URI: uri, Err: err}
}

func newUnsupportedError(feature string, err error) error {
	return &UnsupportedFeatureError{Feature: feature, Err: err}
}

// gltfShortURI keeps data URIs from flooding error messages.
func gltfShortURI(uri string) string {
	const limit = 64
	if len(uri) <= limit {
		return uri
	}
	return uri[:limit] + "..."
}
