package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

type testChunk struct {
	chunkType uint32
	payload   []byte
}

// rawGLB writes a GLB container without any of PackGLB's validation, for malformed inputs.
func rawGLB(version uint32, chunks ...testChunk) []byte {
	var body bytes.Buffer
	for _, c := range chunks {
		binary.Write(&body, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(c.payload)), ChunkType: c.chunkType})
		body.Write(c.payload)
	}
	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: version, Length: uint32(12 + body.Len())})
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestPackGLBRoundTrip(t *testing.T) {
	jsonDoc := []byte(`{"asset":{"version":"2.0"}}`)
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	var buf bytes.Buffer
	if err := PackGLB(&buf, jsonDoc, bin); err != nil {
		t.Fatalf("PackGLB failed: %v", err)
	}
	data := buf.Bytes()

	if len(data)%4 != 0 {
		t.Errorf("GLB length %d is not 4-byte aligned", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[8:12]); int(got) != len(data) {
		t.Errorf("header length = %d, want %d", got, len(data))
	}
	if !isGLB(data) {
		t.Fatal("packed data does not carry the GLB magic")
	}

	c, err := demuxGLB(data)
	if err != nil {
		t.Fatalf("demuxGLB failed: %v", err)
	}
	if !bytes.Equal(c.JSON, jsonDoc) {
		t.Errorf("JSON = %q, want %q", c.JSON, jsonDoc)
	}
	if !bytes.Equal(c.BIN, bin) {
		t.Errorf("BIN = %v, want %v", c.BIN, bin)
	}
}

func TestPackGLBWithoutBinary(t *testing.T) {
	var buf bytes.Buffer
	if err := PackGLB(&buf, []byte(`{"asset":{"version":"2.0"}}`), nil); err != nil {
		t.Fatalf("PackGLB failed: %v", err)
	}
	c, err := demuxGLB(buf.Bytes())
	if err != nil {
		t.Fatalf("demuxGLB failed: %v", err)
	}
	if c.BIN != nil {
		t.Errorf("BIN = %v, want nil", c.BIN)
	}
}

func TestDemuxGLBErrors(t *testing.T) {
	jsonChunk := testChunk{gltfGLBChunkJSON, []byte(`{"asset":{"version":"2.0"}}`)}
	binChunk := testChunk{gltfGLBChunkBIN, []byte{0, 0, 0, 0}}

	valid := rawGLB(2, jsonChunk, binChunk)
	badMagic := append([]byte("xxxx"), valid[4:]...)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad magic", badMagic, errInvalidGLBMagic},
		{"bad version", rawGLB(1, jsonChunk), errInvalidGLBVersion},
		{"shorter than header", valid[:8], errTruncatedGLB},
		{"declared length past end", valid[:len(valid)-4], errTruncatedGLB},
		{"no JSON chunk", rawGLB(2, binChunk), errMissingJSONChunk},
		{"two JSON chunks", rawGLB(2, jsonChunk, jsonChunk), errDuplicateJSONChunk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := demuxGLB(tt.data)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDemuxGLBSkipsUnknownChunks(t *testing.T) {
	data := rawGLB(2,
		testChunk{gltfGLBChunkJSON, []byte(`{"asset":{"version":"2.0"}}`)},
		testChunk{0x12345678, []byte{9, 9, 9, 9}},
		testChunk{gltfGLBChunkBIN, []byte{1, 2, 3, 4}},
	)

	c, err := demuxGLB(data)
	if err != nil {
		t.Fatalf("demuxGLB failed: %v", err)
	}
	if !bytes.Equal(c.BIN, []byte{1, 2, 3, 4}) {
		t.Errorf("BIN = %v, want [1 2 3 4]", c.BIN)
	}
}

func TestDemuxGLBIgnoresBytesPastDeclaredLength(t *testing.T) {
	data := rawGLB(2, testChunk{gltfGLBChunkJSON, []byte(`{"asset":{"version":"2.0"}}`)})
	data = append(data, 0xde, 0xad, 0xbe, 0xef)

	if _, err := demuxGLB(data); err != nil {
		t.Fatalf("demuxGLB failed: %v", err)
	}
}

func TestIsGLB(t *testing.T) {
	if isGLB([]byte("glT")) {
		t.Error("3 bytes reported as GLB")
	}
	if isGLB([]byte(`{"asset":{}}`)) {
		t.Error("JSON reported as GLB")
	}
	if !isGLB([]byte("glTF\x02\x00\x00\x00")) {
		t.Error("GLB magic not detected")
	}
}
