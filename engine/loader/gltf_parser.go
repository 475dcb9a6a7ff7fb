package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// gltfKnownExtensions are the extensions a document may list in extensionsRequired.
// Compression extensions are deliberately absent.
var gltfKnownExtensions = []string{
	gltfExtTextureWebP,
	gltfExtTextureTransform,
	gltfExtMaterialsUnlit,
	gltfExtQuantization,
}

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	document *gltfDocument
	bin      []byte
}

// gltfParser turns raw .gltf or .glb bytes into a validated document plus the optional
// GLB binary chunk. It performs no I/O; external resources are the resolver's job.
type gltfParser interface {
	// Parse detects the container by its magic, demuxes a GLB when present and decodes the JSON.
	// The BIN chunk is trimmed to buffers[0].byteLength, dropping its alignment padding.
	//
	// Parameters:
	//   - data: the complete file contents
	//   - isGLB: true forces GLB demuxing (a .glb file), false still detects the GLB magic
	//
	// Returns:
	//   - error: *FormatError for a malformed container, bad JSON or a non-2.x version,
	//     *UnsupportedFeatureError for a required extension this loader does not implement
	Parse(data []byte, isGLB bool) error

	// ParseReader reads r to the end and parses it.
	//
	// Parameters:
	//   - r: reader containing glTF JSON or GLB data
	//   - isGLB: true forces GLB demuxing, false still detects the GLB magic
	//
	// Returns:
	//   - error: error if reading or parsing fails
	ParseReader(r io.Reader, isGLB bool) error

	// Document returns the parsed document, or nil before a successful Parse.
	Document() *gltfDocument

	// Binary returns the GLB BIN chunk, or nil for JSON documents and chunkless GLBs.
	Binary() []byte
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser instance.
//
// Returns:
//   - gltfParser: a new parser instance
func newGLTFParser() gltfParser {
	return &gltfParserImpl{}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) Binary() []byte {
	return p.bin
}

func (p *gltfParserImpl) Parse(data []byte, forceGLB bool) error {
	if forceGLB || isGLB(data) {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

func (p *gltfParserImpl) ParseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	return p.Parse(data, isGLB)
}

// parseGLB splits the container and decodes its JSON chunk.
func (p *gltfParserImpl) parseGLB(data []byte) error {
	container, err := demuxGLB(data)
	if err != nil {
		return err
	}
	if err := p.parseGLTF(container.JSON); err != nil {
		return err
	}
	p.bin = container.BIN
	if len(p.document.Buffers) > 0 && p.document.Buffers[0].URI == "" {
		if n := p.document.Buffers[0].ByteLength; n >= 0 && n < len(p.bin) {
			p.bin = p.bin[:n:n]
		}
	}
	return nil
}

// parseGLTF decodes and validates a glTF JSON document.
func (p *gltfParserImpl) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return newFormatError("parse", fmt.Errorf("failed to parse glTF JSON: %w", err))
	}
	if err := gltfValidateDocument(&doc); err != nil {
		return err
	}
	p.document = &doc
	p.bin = nil
	return nil
}

// --- Helper Functions ---

// gltfValidateDocument checks the asset version and the required-extension list.
func gltfValidateDocument(doc *gltfDocument) error {
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return newFormatErrorf("asset", errInvalidGLTFVersion, "got %q", doc.Asset.Version)
	}
	for _, ext := range doc.ExtensionsRequired {
		if !slices.Contains(gltfKnownExtensions, ext) {
			return newUnsupportedError(ext, errRequiredExtension)
		}
	}
	return nil
}
