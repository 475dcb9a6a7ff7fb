package loader

import (
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"

	"github.com/go-gl/mathgl/mgl32"
)

// gltfGenerateNormals computes smooth vertex normals for a triangle list that has no NORMAL
// attribute. Each face normal is the cross product of two edges, so larger triangles weigh
// more; the accumulated per-vertex sums are normalized at the end.
//
// Parameters:
//   - positions: the primitive's vertex positions
//   - indices: the triangle list (primitive-relative)
//
// Returns:
//   - []mgl32.Vec3: one unit normal per vertex, +Y for vertices on no triangle
func gltfGenerateNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	n := len(positions)
	accum := make([]mgl32.Vec3, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}
		p0 := positions[i0]
		face := positions[i1].Sub(p0).Cross(positions[i2].Sub(p0))
		accum[i0] = accum[i0].Add(face)
		accum[i1] = accum[i1].Add(face)
		accum[i2] = accum[i2].Add(face)
	}

	for i := range accum {
		if accum[i].Len() < 1e-6 {
			accum[i] = mgl32.Vec3{0, 1, 0}
			continue
		}
		accum[i] = accum[i].Normalize()
	}
	return accum
}

// gltfGenerateTangents computes per-vertex tangents from UV gradients for a triangle list.
// Tangents are Gram-Schmidt orthonormalized against the normal; W holds the bitangent handedness (±1).
//
// Parameters:
//   - positions: the primitive's vertex positions
//   - normals: the primitive's vertex normals
//   - uvs: the primitive's TEXCOORD_0 values
//   - indices: the triangle list (primitive-relative)
//
// Returns:
//   - []mgl32.Vec4: one tangent per vertex, (1,0,0,1) where the UV mapping is degenerate
func gltfGenerateTangents(positions, normals []mgl32.Vec3, uvs []mgl32.Vec2, indices []uint32) []mgl32.Vec4 {
	n := len(positions)
	tan := make([]mgl32.Vec3, n)
	btan := make([]mgl32.Vec3, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}

		edge1 := positions[i1].Sub(positions[i0])
		edge2 := positions[i2].Sub(positions[i0])
		duv1 := uvs[i1].Sub(uvs[i0])
		duv2 := uvs[i2].Sub(uvs[i0])

		det := duv1[0]*duv2[1] - duv1[1]*duv2[0]
		if det == 0 {
			continue
		}
		inv := 1.0 / det

		t := edge1.Mul(duv2[1]).Sub(edge2.Mul(duv1[1])).Mul(inv)
		b := edge2.Mul(duv1[0]).Sub(edge1.Mul(duv2[0])).Mul(inv)

		for _, idx := range [3]uint32{i0, i1, i2} {
			tan[idx] = tan[idx].Add(t)
			btan[idx] = btan[idx].Add(b)
		}
	}

	out := make([]mgl32.Vec4, n)
	for i := range out {
		nrm := normals[i]
		ortho := tan[i].Sub(nrm.Mul(nrm.Dot(tan[i])))
		if ortho.Len() < 1e-6 {
			out[i] = mgl32.Vec4{1, 0, 0, 1}
			continue
		}
		ortho = ortho.Normalize()

		w := float32(1)
		if nrm.Cross(ortho).Dot(btan[i]) < 0 {
			w = -1
		}
		out[i] = ortho.Vec4(w)
	}
	return out
}

// gltfTriangleList returns a triangle-list index array for a primitive, expanding strips and
// fans. Non-indexed primitives use sequential indices. Returns nil for point and line topologies.
func gltfTriangleList(p *gltfRuntimePrimitive, indices []uint32) []uint32 {
	if indices == nil {
		indices = make([]uint32, p.VertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	switch p.Topology {
	case model.TopologyTriangles:
		return indices
	case model.TopologyTriangleStrip:
		var out []uint32
		for i := 0; i+2 < len(indices); i++ {
			if i%2 == 0 {
				out = append(out, indices[i], indices[i+1], indices[i+2])
			} else {
				out = append(out, indices[i+1], indices[i], indices[i+2])
			}
		}
		return out
	case model.TopologyTriangleFan:
		var out []uint32
		for i := 1; i+1 < len(indices); i++ {
			out = append(out, indices[0], indices[i], indices[i+1])
		}
		return out
	default:
		return nil
	}
}
