package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
)

// testDocBuilder assembles small glTF documents whose accessors all live in buffer 0.
type testDocBuilder struct {
	doc gltfDocument
	bin bytes.Buffer
}

func newTestDocBuilder() *testDocBuilder {
	b := &testDocBuilder{}
	b.doc.Asset.Version = "2.0"
	return b
}

// view appends data to the binary buffer at a 4-byte aligned offset and returns the new bufferView index.
func (b *testDocBuilder) view(data []byte) int {
	for b.bin.Len()%4 != 0 {
		b.bin.WriteByte(0)
	}
	b.doc.BufferViews = append(b.doc.BufferViews, gltfBufferView{
		Buffer:     0,
		ByteOffset: b.bin.Len(),
		ByteLength: len(data),
	})
	b.bin.Write(data)
	return len(b.doc.BufferViews) - 1
}

func (b *testDocBuilder) accessor(view, componentType, count int, accessorType string) int {
	v := view
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{
		BufferView:    &v,
		ComponentType: componentType,
		Count:         count,
		Type:          accessorType,
	})
	return len(b.doc.Accessors) - 1
}

// floats adds a float accessor of the given type.
func (b *testDocBuilder) floats(accessorType string, values []float32) int {
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	n, _ := gltfComponentsFor(accessorType)
	return b.accessor(b.view(raw), gltfComponentTypeFloat, len(values)/n, accessorType)
}

func (b *testDocBuilder) u8(accessorType string, values []uint8) int {
	n, _ := gltfComponentsFor(accessorType)
	return b.accessor(b.view(append([]byte(nil), values...)), gltfComponentTypeUnsignedByte, len(values)/n, accessorType)
}

func (b *testDocBuilder) u16(values []uint16) int {
	raw := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	return b.accessor(b.view(raw), gltfComponentTypeUnsignedShort, len(values), gltfAccessorTypeScalar)
}

func (b *testDocBuilder) u32(values []uint32) int {
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}
	return b.accessor(b.view(raw), gltfComponentTypeUnsignedInt, len(values), gltfAccessorTypeScalar)
}

// mesh adds a mesh with the given primitives and returns its index.
func (b *testDocBuilder) mesh(name string, prims ...gltfPrimitive) int {
	b.doc.Meshes = append(b.doc.Meshes, gltfMesh{Name: name, Primitives: prims})
	return len(b.doc.Meshes) - 1
}

// build finalizes buffer 0 and returns the document with the bytes it references.
func (b *testDocBuilder) build() (*gltfDocument, []byte) {
	bin := append([]byte(nil), b.bin.Bytes()...)
	if len(bin) > 0 {
		b.doc.Buffers = []gltfBuffer{{ByteLength: len(bin)}}
	}
	doc := b.doc
	return &doc, bin
}

// gltfJSON encodes the document as .gltf text with buffer 0 embedded as a data URI.
func (b *testDocBuilder) gltfJSON(t *testing.T) []byte {
	t.Helper()
	doc, bin := b.build()
	if len(bin) > 0 {
		doc.Buffers[0].URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin)
	}
	return mustJSON(t, doc)
}

// glb encodes the document as a GLB with buffer 0 as the BIN chunk.
func (b *testDocBuilder) glb(t *testing.T) []byte {
	t.Helper()
	doc, bin := b.build()
	var buf bytes.Buffer
	if err := PackGLB(&buf, mustJSON(t, doc), bin); err != nil {
		t.Fatalf("PackGLB failed: %v", err)
	}
	return buf.Bytes()
}

func mustJSON(t *testing.T, doc *gltfDocument) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal document: %v", err)
	}
	return data
}

func intPtr(v int) *int {
	return &v
}

func float32Ptr(v float32) *float32 {
	return &v
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// triangle is a 3-vertex position list in the XY plane.
var triangle = []float32{
	0, 0, 0,
	1, 0, 0,
	0, 1, 0,
}
