package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"

	"github.com/go-gl/mathgl/mgl32"
)

// gltfSkinExtractorImpl is the implementation of the gltfSkinExtractor interface.
type gltfSkinExtractorImpl struct {
	doc *gltfDocument
	res gltfResolver
}

// gltfSkinExtractor converts glTF skins and nodes into runtime descriptors.
// Joint and skeleton indices are validated against the node array here, so consumers can
// dereference them without checking.
type gltfSkinExtractor interface {
	// ExtractSkin builds one skin.
	//
	// Parameters:
	//   - ctx: cancels buffer resolution
	//   - skinIndex: the glTF skin index
	//
	// Returns:
	//   - *model.Skin: the skin, with identity matrices when the document declares none
	//   - error: *FormatError on a bad joint index or a matrix count that does not match the joints
	ExtractSkin(ctx context.Context, skinIndex int) (*model.Skin, error)

	// ExtractAllSkins builds every skin in document order.
	ExtractAllSkins(ctx context.Context) ([]*model.Skin, error)

	// ExtractNodes converts the node array and the scene root lists.
	//
	// Returns:
	//   - []model.Node: the nodes, indexed like the document
	//   - [][]int: the root nodes of every scene
	//   - int: the default scene, or -1 when the document names none
	//   - error: *FormatError on a dangling index or a node with more than one parent
	ExtractNodes() ([]model.Node, [][]int, int, error)
}

var _ gltfSkinExtractor = &gltfSkinExtractorImpl{}

// newGLTFSkinExtractor creates a skin extractor.
//
// Parameters:
//   - doc: the document
//   - res: the resolver for matrix accessor bytes
//
// Returns:
//   - gltfSkinExtractor: the extractor
func newGLTFSkinExtractor(doc *gltfDocument, res gltfResolver) gltfSkinExtractor {
	return &gltfSkinExtractorImpl{doc: doc, res: res}
}

func (e *gltfSkinExtractorImpl) ExtractSkin(ctx context.Context, skinIndex int) (*model.Skin, error) {
	op := fmt.Sprintf("skin %d", skinIndex)
	if skinIndex < 0 || skinIndex >= len(e.doc.Skins) {
		return nil, newFormatErrorf(op, errIndexOutOfRange, "document has %d skins", len(e.doc.Skins))
	}
	gs := &e.doc.Skins[skinIndex]

	for i, joint := range gs.Joints {
		if joint < 0 || joint >= len(e.doc.Nodes) {
			return nil, newFormatErrorf(op, errIndexOutOfRange, "joint %d is node %d, document has %d nodes", i, joint, len(e.doc.Nodes))
		}
	}
	if gs.Skeleton != nil && (*gs.Skeleton < 0 || *gs.Skeleton >= len(e.doc.Nodes)) {
		return nil, newFormatErrorf(op, errIndexOutOfRange, "skeleton node %d, document has %d nodes", *gs.Skeleton, len(e.doc.Nodes))
	}

	skin := &model.Skin{
		Name:     gs.Name,
		Joints:   append([]int(nil), gs.Joints...),
		Skeleton: gs.Skeleton,
	}

	if gs.InverseBindMatrices == nil {
		skin.InverseBindMatrices = make([]float32, 0, len(gs.Joints)*16)
		ident := mgl32.Ident4()
		for range gs.Joints {
			skin.InverseBindMatrices = append(skin.InverseBindMatrices, ident[:]...)
		}
		return skin, nil
	}

	view, err := gltfDecodeAccessor(ctx, e.doc, e.res, *gs.InverseBindMatrices)
	if err != nil {
		return nil, fmt.Errorf("%s inverseBindMatrices: %w", op, err)
	}
	floats, ok := view.Components.(f32Components)
	if !ok || view.ComponentCount != 16 {
		return nil, newFormatErrorf(op, errUnknownAccessorType, "inverseBindMatrices must be MAT4 float")
	}
	skin.InverseBindMatrices = []float32(floats)

	if err := skin.Validate(); err != nil {
		return nil, newFormatError(op, fmt.Errorf("%w: %v", errSkinLengthMismatch, err))
	}
	return skin, nil
}

func (e *gltfSkinExtractorImpl) ExtractAllSkins(ctx context.Context) ([]*model.Skin, error) {
	skins := make([]*model.Skin, len(e.doc.Skins))
	for i := range e.doc.Skins {
		skin, err := e.ExtractSkin(ctx, i)
		if err != nil {
			return nil, err
		}
		skins[i] = skin
	}
	return skins, nil
}

func (e *gltfSkinExtractorImpl) ExtractNodes() ([]model.Node, [][]int, int, error) {
	nodeCount := len(e.doc.Nodes)
	nodes := make([]model.Node, nodeCount)
	parent := make([]int, nodeCount)
	for i := range parent {
		parent[i] = -1
	}

	for i := range e.doc.Nodes {
		gn := &e.doc.Nodes[i]
		op := fmt.Sprintf("node %d", i)

		if gn.Mesh != nil && (*gn.Mesh < 0 || *gn.Mesh >= len(e.doc.Meshes)) {
			return nil, nil, -1, newFormatErrorf(op, errIndexOutOfRange, "mesh %d, document has %d", *gn.Mesh, len(e.doc.Meshes))
		}
		if gn.Skin != nil && (*gn.Skin < 0 || *gn.Skin >= len(e.doc.Skins)) {
			return nil, nil, -1, newFormatErrorf(op, errIndexOutOfRange, "skin %d, document has %d", *gn.Skin, len(e.doc.Skins))
		}
		for _, c := range gn.Children {
			if c < 0 || c >= nodeCount {
				return nil, nil, -1, newFormatErrorf(op, errIndexOutOfRange, "child %d, document has %d nodes", c, nodeCount)
			}
			if parent[c] != -1 || c == i {
				return nil, nil, -1, newFormatError(op, fmt.Errorf("node %d has more than one parent", c))
			}
			parent[c] = i
		}

		nodes[i] = model.Node{
			Name:     gn.Name,
			Mesh:     gn.Mesh,
			Skin:     gn.Skin,
			Children: append([]int(nil), gn.Children...),
			Local:    gltfNodeLocal(gn),
		}
	}

	if err := gltfCheckAcyclic(parent); err != nil {
		return nil, nil, -1, err
	}

	scenes := make([][]int, len(e.doc.Scenes))
	for s := range e.doc.Scenes {
		for _, root := range e.doc.Scenes[s].Nodes {
			if root < 0 || root >= nodeCount {
				return nil, nil, -1, newFormatErrorf(fmt.Sprintf("scene %d", s), errIndexOutOfRange, "node %d, document has %d", root, nodeCount)
			}
		}
		scenes[s] = append([]int(nil), e.doc.Scenes[s].Nodes...)
	}

	defaultScene := -1
	if e.doc.Scene != nil {
		if *e.doc.Scene < 0 || *e.doc.Scene >= len(scenes) {
			return nil, nil, -1, newFormatErrorf("scene", errIndexOutOfRange, "default scene %d, document has %d", *e.doc.Scene, len(scenes))
		}
		defaultScene = *e.doc.Scene
	}
	return nodes, scenes, defaultScene, nil
}

// --- Helper Functions ---

// gltfNodeLocal returns a node's local transform. A matrix wins over TRS; missing TRS
// components default to identity.
func gltfNodeLocal(node *gltfNode) mgl32.Mat4 {
	if node.Matrix != nil {
		return mgl32.Mat4(*node.Matrix)
	}

	t := mgl32.Ident4()
	if node.Translation != nil {
		v := node.Translation
		t = mgl32.Translate3D(v[0], v[1], v[2])
	}
	r := mgl32.Ident4()
	if node.Rotation != nil {
		q := node.Rotation
		r = mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}.Normalize().Mat4()
	}
	s := mgl32.Ident4()
	if node.Scale != nil {
		v := node.Scale
		s = mgl32.Scale3D(v[0], v[1], v[2])
	}
	return t.Mul4(r).Mul4(s)
}

// gltfCheckAcyclic walks every node up to its root and fails on a parent cycle.
// parent[i] is -1 for roots.
func gltfCheckAcyclic(parent []int) error {
	state := make([]uint8, len(parent)) // 0 unvisited, 1 on the current walk, 2 reaches a root
	for start := range parent {
		var walk []int
		n := start
		for n != -1 && state[n] == 0 {
			state[n] = 1
			walk = append(walk, n)
			n = parent[n]
		}
		if n != -1 && state[n] == 1 {
			return newFormatError(fmt.Sprintf("node %d", n), fmt.Errorf("node hierarchy contains a cycle"))
		}
		for _, w := range walk {
			state[w] = 2
		}
	}
	return nil
}
