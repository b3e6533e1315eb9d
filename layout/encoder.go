// Package layout computes std140 memory layouts for uniform variables.
//
// Offsets are tracked internally in 4-byte components and reported in bytes.
// The std140 rules implemented here are:
//   - scalars align to 4 bytes, two-component vectors to 8, three- and
//     four-component vectors to 16
//   - every array element occupies a 16-byte stride (a matrix array element
//     occupies one 16-byte register per column, or per row when row-major)
//   - matrices are stored as 16-byte registers, one per column or row
//   - structs begin and end on a 16-byte boundary
package layout

import "github.com/gogpu/glprog/gltype"

// componentsPerRegister is the number of 4-byte components in a 16-byte
// std140 register.
const componentsPerRegister = 4

// BlockMemberInfo is where a uniform lives inside a block.
// All values are in bytes.
type BlockMemberInfo struct {
	Offset           int
	ArrayStride      int
	MatrixStride     int
	IsRowMajorMatrix bool
}

// Unused is the member info of a location that has no storage in a block.
var Unused = BlockMemberInfo{Offset: -1, ArrayStride: -1, MatrixStride: -1}

// IsUnused reports whether info is the Unused sentinel.
func (info BlockMemberInfo) IsUnused() bool { return info.Offset == -1 }

// Encoder assigns block offsets to a sequence of variables.
type Encoder interface {
	// EnterAggregate is called before the first field of a struct.
	EnterAggregate()
	// ExitAggregate is called after the last field of a struct.
	ExitAggregate()
	// EncodeType places one variable of type t at the next suitably aligned
	// offset and returns where it went.
	EncodeType(t gltype.Type, arraySizes []int, rowMajor bool) BlockMemberInfo
	// CurrentOffset returns the next free byte offset.
	CurrentOffset() int
	// BlockSize returns the size of the block encoded so far.
	BlockSize() int
}

// Std140Encoder lays out variables using the std140 rules.
type Std140Encoder struct {
	offset   int // components
	maxAlign int // components
}

// NewStd140Encoder returns an encoder positioned at offset 0.
func NewStd140Encoder() *Std140Encoder {
	return &Std140Encoder{}
}

// EnterAggregate aligns the current offset to a register boundary.
func (e *Std140Encoder) EnterAggregate() { e.align(componentsPerRegister) }

// ExitAggregate aligns the current offset to a register boundary.
func (e *Std140Encoder) ExitAggregate() { e.align(componentsPerRegister) }

// EncodeType implements Encoder.
func (e *Std140Encoder) EncodeType(t gltype.Type, arraySizes []int, rowMajor bool) BlockMemberInfo {
	arrayStride, matrixStride := e.layoutInfo(t, arraySizes, rowMajor)
	info := BlockMemberInfo{
		Offset:           e.offset * gltype.ComponentSize,
		ArrayStride:      arrayStride * gltype.ComponentSize,
		MatrixStride:     matrixStride * gltype.ComponentSize,
		IsRowMajorMatrix: rowMajor && t.IsMatrix(),
	}
	e.advance(t, arraySizes, rowMajor, arrayStride, matrixStride)
	return info
}

// CurrentOffset implements Encoder.
func (e *Std140Encoder) CurrentOffset() int { return e.offset * gltype.ComponentSize }

// BlockSize returns the current offset rounded up to the largest base
// alignment encoded so far.
func (e *Std140Encoder) BlockSize() int {
	size := e.offset
	if e.maxAlign > 1 {
		size = roundUp(size, e.maxAlign)
	}
	return size * gltype.ComponentSize
}

// layoutInfo aligns the current offset for t and returns its strides in
// components.
func (e *Std140Encoder) layoutInfo(t gltype.Type, arraySizes []int, rowMajor bool) (arrayStride, matrixStride int) {
	var baseAlign int
	switch {
	case t.IsMatrix():
		baseAlign = componentsPerRegister
		matrixStride = componentsPerRegister
		if len(arraySizes) > 0 {
			arrayStride = componentsPerRegister * gltype.MatrixRegisterCount(t, rowMajor)
		}
	case len(arraySizes) > 0:
		baseAlign = componentsPerRegister
		arrayStride = componentsPerRegister
	default:
		baseAlign = componentAlignment(componentCount(t))
	}
	e.align(baseAlign)
	return arrayStride, matrixStride
}

func (e *Std140Encoder) advance(t gltype.Type, arraySizes []int, rowMajor bool, arrayStride, matrixStride int) {
	switch {
	case len(arraySizes) > 0:
		e.offset += arrayStride * ArraySizeProduct(arraySizes)
	case t.IsMatrix():
		e.offset += matrixStride * gltype.MatrixRegisterCount(t, rowMajor)
	default:
		e.offset += componentCount(t)
	}
}

func (e *Std140Encoder) align(n int) {
	if n > e.maxAlign {
		e.maxAlign = n
	}
	e.offset = roundUp(e.offset, n)
}

// DefaultBlockEncoder is a Std140Encoder that gives opaque types no storage.
//
// Samplers and images are bound through descriptors, so they neither align
// nor advance the offset. The info returned for them is never consulted.
type DefaultBlockEncoder struct {
	Std140Encoder
}

// NewDefaultBlockEncoder returns an encoder positioned at offset 0.
func NewDefaultBlockEncoder() *DefaultBlockEncoder {
	return &DefaultBlockEncoder{}
}

// EncodeType implements Encoder.
func (e *DefaultBlockEncoder) EncodeType(t gltype.Type, arraySizes []int, rowMajor bool) BlockMemberInfo {
	if t.IsOpaque() {
		return BlockMemberInfo{Offset: e.CurrentOffset()}
	}
	return e.Std140Encoder.EncodeType(t, arraySizes, rowMajor)
}

// componentCount treats an opaque type as a single component, which only
// matters to a plain Std140Encoder.
func componentCount(t gltype.Type) int {
	if n := t.ComponentCount(); n > 0 {
		return n
	}
	return 1
}

func componentAlignment(n int) int {
	if n <= 2 {
		return n
	}
	return componentsPerRegister
}

func roundUp(v, n int) int {
	if n <= 1 {
		return v
	}
	return (v + n - 1) / n * n
}
