package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// gltfContainer is the converged output of both input paths: the JSON document text plus the
// optional GLB binary chunk. For .gltf input BIN is always nil.
type gltfContainer struct {
	JSON []byte
	BIN  []byte
}

// isGLB reports whether data starts with the GLB magic number.
func isGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic
}

// demuxGLB splits a GLB blob into its JSON and BIN chunks without copying.
// The header's totalLength bounds chunk iteration; bytes past it are ignored.
// Exactly one JSON chunk is required, the BIN chunk is optional, and unknown chunk types are skipped.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
//
// Parameters:
//   - data: the raw GLB bytes
//
// Returns:
//   - gltfContainer: the JSON chunk (trailing padding removed) and the BIN chunk, padding
//     included, or nil. The parser trims BIN to buffers[0].byteLength.
//   - error: *FormatError on a bad header, truncated chunk or missing/duplicate JSON chunk
func demuxGLB(data []byte) (gltfContainer, error) {
	if len(data) < 12 {
		return gltfContainer{}, newFormatErrorf("demux", errTruncatedGLB, "%d bytes is smaller than the 12-byte header", len(data))
	}

	var header gltfGLBHeader
	if err := binary.Read(bytes.NewReader(data[:12]), binary.LittleEndian, &header); err != nil {
		return gltfContainer{}, newFormatError("demux", fmt.Errorf("failed to read GLB header: %w", err))
	}
	if header.Magic != gltfGLBMagic {
		return gltfContainer{}, newFormatErrorf("demux", errInvalidGLBMagic, "got 0x%08X", header.Magic)
	}
	if header.Version != gltfGLBVersion {
		return gltfContainer{}, newFormatErrorf("demux", errInvalidGLBVersion, "got %d", header.Version)
	}

	total := int(header.Length)
	if total < 12 || total > len(data) {
		return gltfContainer{}, newFormatErrorf("demux", errTruncatedGLB, "header declares %d bytes, have %d", header.Length, len(data))
	}

	var out gltfContainer
	jsonChunks := 0
	for offset := 12; offset < total; {
		if offset+8 > total {
			return gltfContainer{}, newFormatErrorf("demux", errTruncatedGLB, "chunk header at byte %d", offset)
		}
		var ch gltfGLBChunkHeader
		ch.ChunkLength = binary.LittleEndian.Uint32(data[offset : offset+4])
		ch.ChunkType = binary.LittleEndian.Uint32(data[offset+4 : offset+8])

		start := offset + 8
		end := start + int(ch.ChunkLength)
		if end > total || end < start {
			return gltfContainer{}, newFormatErrorf("demux", errTruncatedGLB, "chunk at byte %d declares %d bytes", offset, ch.ChunkLength)
		}
		chunk := data[start:end:end]

		switch ch.ChunkType {
		case gltfGLBChunkJSON:
			jsonChunks++
			out.JSON = chunk
		case gltfGLBChunkBIN:
			if out.BIN == nil {
				out.BIN = chunk
			}
		}
		offset = end
	}

	switch {
	case jsonChunks == 0:
		return gltfContainer{}, newFormatError("demux", errMissingJSONChunk)
	case jsonChunks > 1:
		return gltfContainer{}, newFormatError("demux", errDuplicateJSONChunk)
	}

	out.JSON = bytes.TrimRight(out.JSON, " \x00")
	if !utf8.Valid(out.JSON) {
		return gltfContainer{}, newFormatError("demux", fmt.Errorf("JSON chunk is not valid UTF-8"))
	}
	return out, nil
}

// PackGLB writes a GLB container holding the given JSON document and optional binary chunk.
// The JSON chunk is padded with spaces and the BIN chunk with zeros to 4-byte alignment.
// A nil or empty bin omits the BIN chunk.
//
// Parameters:
//   - w: the destination writer
//   - jsonDoc: the glTF JSON document text
//   - bin: the binary chunk payload, or nil
//
// Returns:
//   - error: error if writing fails or the result exceeds the 4 GiB GLB limit
func PackGLB(w io.Writer, jsonDoc, bin []byte) error {
	jsonPad := gltfPad4(len(jsonDoc))
	binPad := gltfPad4(len(bin))

	total := 12 + 8 + len(jsonDoc) + jsonPad
	if len(bin) > 0 {
		total += 8 + len(bin) + binPad
	}
	if uint64(total) > uint64(^uint32(0)) {
		return fmt.Errorf("GLB of %d bytes exceeds the 32-bit length field", total)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	header := gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(total)}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write GLB header: %w", err)
	}

	writeChunk := func(chunkType uint32, payload []byte, pad int, padByte byte) error {
		ch := gltfGLBChunkHeader{ChunkLength: uint32(len(payload) + pad), ChunkType: chunkType}
		if err := binary.Write(&buf, binary.LittleEndian, ch); err != nil {
			return err
		}
		buf.Write(payload)
		for i := 0; i < pad; i++ {
			buf.WriteByte(padByte)
		}
		return nil
	}

	if err := writeChunk(gltfGLBChunkJSON, jsonDoc, jsonPad, ' '); err != nil {
		return fmt.Errorf("failed to write JSON chunk: %w", err)
	}
	if len(bin) > 0 {
		if err := writeChunk(gltfGLBChunkBIN, bin, binPad, 0); err != nil {
			return fmt.Errorf("failed to write BIN chunk: %w", err)
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write GLB: %w", err)
	}
	return nil
}

func gltfPad4(n int) int {
	return (4 - n%4) % 4
}
