package loader

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// --- Component Buffers ---

// componentBuffer is the decoded storage of an accessor. It is always exactly one of
// u8Components, i8Components, u16Components, i16Components, u32Components or f32Components;
// consumers type-switch over that closed set.
type componentBuffer interface {
	// Len returns the number of components (count * componentCount).
	Len() int
	isComponentBuffer()
}

type (
	u8Components  []uint8
	i8Components  []int8
	u16Components []uint16
	i16Components []int16
	u32Components []uint32
	f32Components []float32
)

func (c u8Components) Len() int  { return len(c) }
func (c i8Components) Len() int  { return len(c) }
func (c u16Components) Len() int { return len(c) }
func (c i16Components) Len() int { return len(c) }
func (c u32Components) Len() int { return len(c) }
func (c f32Components) Len() int { return len(c) }

func (u8Components) isComponentBuffer()  {}
func (i8Components) isComponentBuffer()  {}
func (u16Components) isComponentBuffer() {}
func (i16Components) isComponentBuffer() {}
func (u32Components) isComponentBuffer() {}
func (f32Components) isComponentBuffer() {}

// gltfAccessorView is a decoded accessor: a typed, tightly packed component array plus the
// metadata the interleaver needs to read it back.
type gltfAccessorView struct {
	Components     componentBuffer
	ComponentType  int
	ComponentCount int
	Count          int
	Normalized     bool

	// ByteStride is componentSize * ComponentCount; source views are always tightly packed.
	ByteStride int

	Min []float32
	Max []float32
}

// Float returns component comp of item i as a float, applying glTF normalization for
// normalized integer accessors.
//
// Parameters:
//   - i: the item index
//   - comp: the component within the item
//
// Returns:
//   - float32: the component value
func (v *gltfAccessorView) Float(i, comp int) float32 {
	idx := i*v.ComponentCount + comp
	switch c := v.Components.(type) {
	case f32Components:
		return c[idx]
	case u8Components:
		if v.Normalized {
			return float32(c[idx]) / math.MaxUint8
		}
		return float32(c[idx])
	case i8Components:
		if v.Normalized {
			return max(float32(c[idx])/math.MaxInt8, -1)
		}
		return float32(c[idx])
	case u16Components:
		if v.Normalized {
			return float32(c[idx]) / math.MaxUint16
		}
		return float32(c[idx])
	case i16Components:
		if v.Normalized {
			return max(float32(c[idx])/math.MaxInt16, -1)
		}
		return float32(c[idx])
	case u32Components:
		if v.Normalized {
			return float32(float64(c[idx]) / math.MaxUint32)
		}
		return float32(c[idx])
	}
	return 0
}

// --- Decoding ---

// gltfComponentsFor maps an accessor type to its component count.
// MAT2 and MAT3 are valid glTF but need column padding for small component types, and are rejected.
func gltfComponentsFor(accessorType string) (int, error) {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1, nil
	case gltfAccessorTypeVec2:
		return 2, nil
	case gltfAccessorTypeVec3:
		return 3, nil
	case gltfAccessorTypeVec4:
		return 4, nil
	case gltfAccessorTypeMat4:
		return 16, nil
	case gltfAccessorTypeMat2, gltfAccessorTypeMat3:
		return 0, newUnsupportedError(accessorType+" accessor", fmt.Errorf("matrix accessors other than MAT4 are not implemented"))
	default:
		return 0, newFormatErrorf("accessor type", errUnknownAccessorType, "%q", accessorType)
	}
}

// gltfComponentSize returns the byte size of a component type, or 0 if the type is unknown.
func gltfComponentSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorBytes validates an accessor and returns exactly the bytes of its
// count * componentCount components.
func gltfAccessorBytes(ctx context.Context, doc *gltfDocument, res gltfResolver, index int) (*gltfAccessor, int, []byte, error) {
	op := fmt.Sprintf("accessor %d", index)
	if doc.Accessors == nil {
		return nil, 0, nil, newFormatErrorf(op, errMissingArray, "accessors")
	}
	if index < 0 || index >= len(doc.Accessors) {
		return nil, 0, nil, newFormatErrorf(op, errIndexOutOfRange, "document has %d accessors", len(doc.Accessors))
	}
	acc := &doc.Accessors[index]

	if acc.Sparse != nil {
		return nil, 0, nil, newUnsupportedError(op, errSparseAccessor)
	}
	if acc.BufferView == nil {
		return nil, 0, nil, newUnsupportedError(op, fmt.Errorf("%w: accessor has no bufferView", errSparseAccessor))
	}
	if doc.BufferViews == nil {
		return nil, 0, nil, newFormatErrorf(op, errMissingArray, "bufferViews")
	}

	componentCount, err := gltfComponentsFor(acc.Type)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	size := gltfComponentSize(acc.ComponentType)
	if size == 0 {
		return nil, 0, nil, newFormatErrorf(op, errUnknownComponent, "%d", acc.ComponentType)
	}
	if acc.Count < 0 || acc.ByteOffset < 0 {
		return nil, 0, nil, newFormatError(op, fmt.Errorf("negative count or byteOffset"))
	}

	itemSize := size * componentCount
	if bv := *acc.BufferView; bv >= 0 && bv < len(doc.BufferViews) {
		if stride := doc.BufferViews[bv].ByteStride; stride != nil && *stride != itemSize {
			return nil, 0, nil, newUnsupportedError(op, fmt.Errorf("%w: view stride %d, item size %d", errInterleavedAccessor, *stride, itemSize))
		}
	}

	data, err := res.BytesForBufferView(ctx, *acc.BufferView)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%s: %w", op, err)
	}

	// Bound count by the view before multiplying; count * itemSize can overflow int.
	if acc.ByteOffset > len(data) || acc.Count > (len(data)-acc.ByteOffset)/itemSize {
		return nil, 0, nil, newFormatErrorf(op, errBufferSizeMismatch,
			"%d items of %d bytes at offset %d, view has %d", acc.Count, itemSize, acc.ByteOffset, len(data))
	}
	need := acc.Count * itemSize
	return acc, componentCount, data[acc.ByteOffset : acc.ByteOffset+need], nil
}

// gltfDecodeAccessor decodes an accessor into a typed component view.
//
// Parameters:
//   - ctx: cancels buffer resolution
//   - doc: the document
//   - res: the resolver for buffer bytes
//   - index: the accessor index
//
// Returns:
//   - *gltfAccessorView: the decoded view, Components.Len() == count * componentCount
//   - error: *UnsupportedFeatureError for sparse or interleaved accessors, *FormatError for bad enums or bounds
func gltfDecodeAccessor(ctx context.Context, doc *gltfDocument, res gltfResolver, index int) (*gltfAccessorView, error) {
	acc, componentCount, raw, err := gltfAccessorBytes(ctx, doc, res, index)
	if err != nil {
		return nil, err
	}

	n := acc.Count * componentCount
	var comps componentBuffer
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		comps = u8Components(append([]uint8(nil), raw...))
	case gltfComponentTypeByte:
		out := make(i8Components, n)
		for i := range out {
			out[i] = int8(raw[i])
		}
		comps = out
	case gltfComponentTypeUnsignedShort:
		comps = u16Components(gltfReadLE(raw, n, binary.LittleEndian.Uint16))
	case gltfComponentTypeShort:
		out := make(i16Components, n)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		comps = out
	case gltfComponentTypeUnsignedInt:
		comps = u32Components(gltfReadLE(raw, n, binary.LittleEndian.Uint32))
	case gltfComponentTypeFloat:
		out := make(f32Components, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		comps = out
	}

	return &gltfAccessorView{
		Components:     comps,
		ComponentType:  acc.ComponentType,
		ComponentCount: componentCount,
		Count:          acc.Count,
		Normalized:     acc.Normalized,
		ByteStride:     gltfComponentSize(acc.ComponentType) * componentCount,
		Min:            acc.Min,
		Max:            acc.Max,
	}, nil
}

// gltfDecodeIndices decodes an index accessor. Indices are SCALAR unsigned integers and are
// never normalized; the result is a u8Components, u16Components or u32Components of length count.
//
// Parameters:
//   - ctx: cancels buffer resolution
//   - doc: the document
//   - res: the resolver for buffer bytes
//   - index: the accessor index
//
// Returns:
//   - componentBuffer: the index array
//   - error: *FormatError for a non-scalar accessor or a non-index component type
func gltfDecodeIndices(ctx context.Context, doc *gltfDocument, res gltfResolver, index int) (componentBuffer, error) {
	op := fmt.Sprintf("indices accessor %d", index)
	if doc.Accessors != nil && index >= 0 && index < len(doc.Accessors) {
		acc := &doc.Accessors[index]
		switch acc.ComponentType {
		case gltfComponentTypeUnsignedByte, gltfComponentTypeUnsignedShort, gltfComponentTypeUnsignedInt:
		default:
			return nil, newFormatErrorf(op, errUnknownComponent, "%d is not an index component type", acc.ComponentType)
		}
		if acc.Type != gltfAccessorTypeScalar {
			return nil, newFormatErrorf(op, errUnknownAccessorType, "indices must be SCALAR, got %q", acc.Type)
		}
	}

	acc, _, raw, err := gltfAccessorBytes(ctx, doc, res, index)
	if err != nil {
		return nil, err
	}

	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		return u8Components(append([]uint8(nil), raw...)), nil
	case gltfComponentTypeUnsignedShort:
		return u16Components(gltfReadLE(raw, acc.Count, binary.LittleEndian.Uint16)), nil
	default:
		return u32Components(gltfReadLE(raw, acc.Count, binary.LittleEndian.Uint32)), nil
	}
}

// --- Helper Functions ---

// gltfReadLE decodes n little-endian unsigned values from raw.
func gltfReadLE[T constraints.Unsigned](raw []byte, n int, read func([]byte) T) []T {
	out := make([]T, n)
	size := len(raw) / max(n, 1)
	for i := range out {
		out[i] = read(raw[i*size:])
	}
	return out
}

// gltfWidenIndices converts an index array to uint32, checking every value against vertexCount.
//
// Parameters:
//   - src: the raw index values
//   - vertexCount: the exclusive upper bound for every index
//
// Returns:
//   - []uint32: the widened indices
//   - error: error naming the first out-of-range index
func gltfWidenIndices[T constraints.Unsigned](src []T, vertexCount int) ([]uint32, error) {
	out := make([]uint32, len(src))
	for i, v := range src {
		if uint64(v) >= uint64(vertexCount) {
			return nil, fmt.Errorf("%w: index %d at position %d, primitive has %d vertices", errIndexOutOfRange, uint64(v), i, vertexCount)
		}
		out[i] = uint32(v)
	}
	return out, nil
}

// gltfIndicesToUint32 widens any index componentBuffer to uint32 with a range check.
func gltfIndicesToUint32(buf componentBuffer, vertexCount int) ([]uint32, error) {
	switch c := buf.(type) {
	case u8Components:
		return gltfWidenIndices([]uint8(c), vertexCount)
	case u16Components:
		return gltfWidenIndices([]uint16(c), vertexCount)
	case u32Components:
		return gltfWidenIndices([]uint32(c), vertexCount)
	default:
		return nil, fmt.Errorf("%w: %T is not an index buffer", errUnknownComponent, buf)
	}
}
