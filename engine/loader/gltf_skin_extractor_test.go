package loader

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestExtractSkinIdentityMatrices(t *testing.T) {
	doc := &gltfDocument{
		Nodes: []gltfNode{{Name: "root"}, {Name: "arm"}},
		Skins: []gltfSkin{{Name: "rig", Joints: []int{0, 1}, Skeleton: intPtr(0)}},
	}
	skin, err := newGLTFSkinExtractor(doc, newGLTFResolver(doc, nil, "", nil, testLogger())).ExtractSkin(context.Background(), 0)
	if err != nil {
		t.Fatalf("ExtractSkin failed: %v", err)
	}
	if len(skin.InverseBindMatrices) != 32 {
		t.Fatalf("len(InverseBindMatrices) = %d, want 32", len(skin.InverseBindMatrices))
	}
	if skin.Matrix(1) != mgl32.Ident4() {
		t.Errorf("Matrix(1) = %v, want identity", skin.Matrix(1))
	}
	if skin.Skeleton == nil || *skin.Skeleton != 0 {
		t.Errorf("Skeleton = %v, want 0", skin.Skeleton)
	}
}

func TestExtractSkinFromAccessor(t *testing.T) {
	b := newTestDocBuilder()
	translate := mgl32.Translate3D(1, 2, 3)
	ident := mgl32.Ident4()
	ibm := b.floats(gltfAccessorTypeMat4, append(append([]float32(nil), ident[:]...), translate[:]...))
	b.doc.Nodes = []gltfNode{{}, {}}
	b.doc.Skins = []gltfSkin{{Joints: []int{0, 1}, InverseBindMatrices: intPtr(ibm)}}
	doc, bin := b.build()

	skin, err := newGLTFSkinExtractor(doc, newGLTFResolver(doc, bin, "", nil, testLogger())).ExtractSkin(context.Background(), 0)
	if err != nil {
		t.Fatalf("ExtractSkin failed: %v", err)
	}
	if skin.Matrix(1) != translate {
		t.Errorf("Matrix(1) = %v, want %v", skin.Matrix(1), translate)
	}
}

func TestExtractSkinErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *testDocBuilder)
		want  error
	}{
		{
			name: "matrix count mismatch",
			build: func(b *testDocBuilder) {
				ident := mgl32.Ident4()
				ibm := b.floats(gltfAccessorTypeMat4, ident[:])
				b.doc.Skins = []gltfSkin{{Joints: []int{0, 1}, InverseBindMatrices: intPtr(ibm)}}
			},
			want: errSkinLengthMismatch,
		},
		{
			name: "joint out of range",
			build: func(b *testDocBuilder) {
				b.doc.Skins = []gltfSkin{{Joints: []int{0, 4}}}
			},
			want: errIndexOutOfRange,
		},
		{
			name: "skeleton out of range",
			build: func(b *testDocBuilder) {
				b.doc.Skins = []gltfSkin{{Joints: []int{0}, Skeleton: intPtr(-1)}}
			},
			want: errIndexOutOfRange,
		},
		{
			name: "non-matrix accessor",
			build: func(b *testDocBuilder) {
				ibm := b.floats(gltfAccessorTypeVec4, make([]float32, 8))
				b.doc.Skins = []gltfSkin{{Joints: []int{0, 1}, InverseBindMatrices: intPtr(ibm)}}
			},
			want: errUnknownAccessorType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestDocBuilder()
			b.doc.Nodes = []gltfNode{{}, {}}
			tt.build(b)
			doc, bin := b.build()

			_, err := newGLTFSkinExtractor(doc, newGLTFResolver(doc, bin, "", nil, testLogger())).ExtractAllSkins(context.Background())
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

func TestExtractNodes(t *testing.T) {
	doc := &gltfDocument{
		Scene:  intPtr(0),
		Scenes: []gltfScene{{Name: "main", Nodes: []int{0}}},
		Meshes: []gltfMesh{{}},
		Nodes: []gltfNode{
			{Name: "root", Children: []int{1}, Translation: &[3]float32{1, 2, 3}},
			{
				Name:     "child",
				Mesh:     intPtr(0),
				Rotation: &[4]float32{0, 0, 0.70710677, 0.70710677},
				Scale:    &[3]float32{2, 2, 2},
			},
			{Name: "matrix", Matrix: &[16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 6, 7, 1}, Translation: &[3]float32{9, 9, 9}},
		},
	}

	nodes, scenes, defaultScene, err := newGLTFSkinExtractor(doc, nil).ExtractNodes()
	if err != nil {
		t.Fatalf("ExtractNodes failed: %v", err)
	}
	if defaultScene != 0 || len(scenes) != 1 || scenes[0][0] != 0 {
		t.Errorf("scenes = %v, default %d", scenes, defaultScene)
	}

	if got := nodes[0].Local.Col(3); got != (mgl32.Vec4{1, 2, 3, 1}) {
		t.Errorf("root translation column = %v", got)
	}

	// 90 degrees about Z then scale 2: +X maps to +2Y.
	p := nodes[1].Local.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	want := mgl32.Vec4{0, 2, 0, 1}
	for i := range p {
		if math.Abs(float64(p[i]-want[i])) > 1e-5 {
			t.Errorf("child maps +X to %v, want (0, 2, 0)", p)
			break
		}
	}
	if nodes[1].Mesh == nil || *nodes[1].Mesh != 0 {
		t.Errorf("child mesh = %v", nodes[1].Mesh)
	}

	if got := nodes[2].Local.Col(3); got != (mgl32.Vec4{5, 6, 7, 1}) {
		t.Errorf("matrix node translation = %v, matrix must win over TRS", got)
	}
}

func TestExtractNodesWithoutScene(t *testing.T) {
	doc := &gltfDocument{Nodes: []gltfNode{{}}}
	_, _, defaultScene, err := newGLTFSkinExtractor(doc, nil).ExtractNodes()
	if err != nil {
		t.Fatalf("ExtractNodes failed: %v", err)
	}
	if defaultScene != -1 {
		t.Errorf("default scene = %d, want -1", defaultScene)
	}
}

func TestExtractNodesErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes []gltfNode
		scene *int
	}{
		{"cycle", []gltfNode{{Children: []int{1}}, {Children: []int{0}}}, nil},
		{"self parent", []gltfNode{{Children: []int{0}}}, nil},
		{"two parents", []gltfNode{{Children: []int{2}}, {Children: []int{2}}, {}}, nil},
		{"dangling child", []gltfNode{{Children: []int{3}}}, nil},
		{"dangling mesh", []gltfNode{{Mesh: intPtr(0)}}, nil},
		{"default scene out of range", []gltfNode{{}}, intPtr(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &gltfDocument{Nodes: tt.nodes, Scene: tt.scene}
			_, _, _, err := newGLTFSkinExtractor(doc, nil).ExtractNodes()
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
		})
	}
}
