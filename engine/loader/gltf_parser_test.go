package loader

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseJSONAndGLB(t *testing.T) {
	b := newTestDocBuilder()
	b.mesh("tri", gltfPrimitive{Attributes: map[string]int{"POSITION": b.floats(gltfAccessorTypeVec3, triangle)}})

	p := newGLTFParser()
	if err := p.Parse(b.gltfJSON(t), false); err != nil {
		t.Fatalf("Parse(.gltf) failed: %v", err)
	}
	if p.Binary() != nil {
		t.Error("JSON document reports a binary chunk")
	}
	if len(p.Document().Meshes) != 1 {
		t.Errorf("meshes = %d, want 1", len(p.Document().Meshes))
	}

	glb := newGLTFParser()
	if err := glb.ParseReader(bytes.NewReader(b.glb(t)), true); err != nil {
		t.Fatalf("ParseReader(.glb) failed: %v", err)
	}
	if len(glb.Binary()) != 36 {
		t.Errorf("binary chunk = %d bytes, want 36", len(glb.Binary()))
	}
	if glb.Document().Meshes[0].Name != "tri" {
		t.Errorf("mesh name = %q", glb.Document().Meshes[0].Name)
	}
}

func TestParseRejectsDocuments(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		unsupported bool
		want        error
	}{
		{"not JSON", `{"asset":`, false, nil},
		{"version 1", `{"asset":{"version":"1.0"}}`, false, errInvalidGLTFVersion},
		{"no version", `{"asset":{}}`, false, errInvalidGLTFVersion},
		{"draco required", `{"asset":{"version":"2.0"},"extensionsRequired":["KHR_draco_mesh_compression"]}`, true, errRequiredExtension},
		{"unknown required", `{"asset":{"version":"2.0"},"extensionsRequired":["VENDOR_magic"]}`, true, errRequiredExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newGLTFParser().Parse([]byte(tt.data), false)
			if tt.unsupported {
				var ue *UnsupportedFeatureError
				if !errors.As(err, &ue) {
					t.Fatalf("error = %v, want *UnsupportedFeatureError", err)
				}
			} else {
				var fe *FormatError
				if !errors.As(err, &fe) {
					t.Fatalf("error = %v, want *FormatError", err)
				}
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseAcceptsKnownRequiredExtensions(t *testing.T) {
	data := `{"asset":{"version":"2.1"},"extensionsUsed":["KHR_materials_unlit","EXT_texture_webp"],"extensionsRequired":["EXT_texture_webp"]}`
	if err := newGLTFParser().Parse([]byte(data), false); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestParseReaderForcedGLBRejectsJSON(t *testing.T) {
	err := newGLTFParser().ParseReader(bytes.NewReader([]byte(`{"asset":{"version":"2.0"}}`)), true)
	if !errors.Is(err, errInvalidGLBMagic) {
		t.Fatalf("error = %v, want errInvalidGLBMagic", err)
	}
}

func TestParseForcedGLBRejectsJSON(t *testing.T) {
	err := newGLTFParser().Parse([]byte(`{"asset":{"version":"2.0"}}`), true)
	var fe *FormatError
	if !errors.As(err, &fe) || !errors.Is(err, errInvalidGLBMagic) {
		t.Fatalf("error = %v, want *FormatError wrapping errInvalidGLBMagic", err)
	}
}

func TestParseTrimsBinaryPadding(t *testing.T) {
	b := newTestDocBuilder()
	b.view([]byte{1, 2, 3, 4, 5})
	data := b.glb(t)

	c, err := demuxGLB(data)
	if err != nil {
		t.Fatalf("demuxGLB failed: %v", err)
	}
	if !bytes.Equal(c.BIN, []byte{1, 2, 3, 4, 5, 0, 0, 0}) {
		t.Errorf("demuxed BIN = %v, want the padded chunk", c.BIN)
	}

	p := newGLTFParser()
	if err := p.Parse(data, false); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !bytes.Equal(p.Binary(), []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Binary() = %v, want [1 2 3 4 5]", p.Binary())
	}
}
