// Package uniform reads and writes uniform values inside a default uniform
// block's byte image.
//
// Every function validates the requested byte range against the block before
// touching it. A request that does not fit returns ErrOutOfRange and leaves
// the block unmodified.
package uniform

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/gogpu/glprog/gltype"
	"github.com/gogpu/glprog/layout"
)

// ErrOutOfRange is returned when a read or write would fall outside the
// block storage or the source slice.
var ErrOutOfRange = errors.New("uniform: access outside block storage")

// Numeric is the set of component types an entry point can carry.
type Numeric interface {
	float32 | int32 | uint32
}

var byteOrder = binary.NativeEndian

// Update writes count elements of componentCount components each from v
// into data, starting at element arrayIndex.
//
// When the array stride equals the element size (or the uniform is not an
// array) the elements are written contiguously. Otherwise each element is
// written at its stride and the bytes between elements are left untouched.
func Update[T Numeric](count, arrayIndex, componentCount int, v []T, info layout.BlockMemberInfo, data []byte) error {
	if count <= 0 {
		return nil
	}
	if err := CheckUpdate(count, arrayIndex, componentCount, len(v), info, len(data)); err != nil {
		return err
	}
	start, stride, elementSize := updateSpan(arrayIndex, componentCount, info)

	if stride == elementSize {
		putComponents(data[start:start+elementSize*count], v[:count*componentCount])
		return nil
	}
	for i := 0; i < count; i++ {
		dst := data[start+i*stride:]
		putComponents(dst[:elementSize], v[i*componentCount:(i+1)*componentCount])
	}
	return nil
}

// UpdateBool writes numeric values into a bool uniform. Each component is
// stored as a 32-bit 1 when nonzero and 0 otherwise.
func UpdateBool[T Numeric](count, arrayIndex, componentCount int, v []T, info layout.BlockMemberInfo, data []byte) error {
	if count <= 0 {
		return nil
	}
	if err := CheckUpdate(count, arrayIndex, componentCount, len(v), info, len(data)); err != nil {
		return err
	}
	start, stride, _ := updateSpan(arrayIndex, componentCount, info)

	for i := 0; i < count; i++ {
		dst := data[start+i*stride:]
		src := v[i*componentCount:]
		for c := 0; c < componentCount; c++ {
			var b uint32
			if src[c] != 0 {
				b = 1
			}
			byteOrder.PutUint32(dst[c*gltype.ComponentSize:], b)
		}
	}
	return nil
}

// CheckUpdate returns the error Update or UpdateBool would return for a
// source of n components and a block of size bytes, without writing.
func CheckUpdate(count, arrayIndex, componentCount, n int, info layout.BlockMemberInfo, size int) error {
	if count <= 0 {
		return nil
	}
	if n < count*componentCount {
		return ErrOutOfRange
	}
	start, stride, elementSize := updateSpan(arrayIndex, componentCount, info)
	if !fits(start, stride, elementSize, count, size) {
		return ErrOutOfRange
	}
	return nil
}

func updateSpan(arrayIndex, componentCount int, info layout.BlockMemberInfo) (start, stride, elementSize int) {
	elementSize = componentCount * gltype.ComponentSize
	stride = info.ArrayStride
	if stride == 0 {
		stride = elementSize
	}
	return info.Offset + arrayIndex*info.ArrayStride, stride, elementSize
}

// Read copies the componentCount components of element arrayIndex into dst.
func Read[T Numeric](componentCount, arrayIndex int, dst []T, info layout.BlockMemberInfo, data []byte) error {
	if len(dst) < componentCount {
		return ErrOutOfRange
	}
	elementSize := componentCount * gltype.ComponentSize
	start := info.Offset + arrayIndex*info.ArrayStride
	if !fits(start, 0, elementSize, 1, len(data)) {
		return ErrOutOfRange
	}
	for c := 0; c < componentCount; c++ {
		dst[c] = getComponent[T](data[start+c*gltype.ComponentSize:])
	}
	return nil
}

// SetMatrix writes count cols x rows matrices from v starting at element
// arrayIndex of a matrix uniform with elementCount elements.
//
// v holds dense column-major matrices, or row-major ones when transpose is
// set. Each matrix is expanded into 16-byte registers: one per column, or
// one per row when the block stores it row-major. Register padding is
// zeroed.
func SetMatrix(cols, rows, arrayIndex, elementCount, count int, transpose bool, v []float32, info layout.BlockMemberInfo, data []byte) error {
	if count <= 0 {
		return nil
	}
	if err := CheckMatrix(cols, rows, arrayIndex, elementCount, count, len(v), info, len(data)); err != nil {
		return err
	}
	registers, regSize, matStride, stride, start := matrixSpan(cols, rows, arrayIndex, info)

	regComponents := matStride / gltype.ComponentSize
	for i := 0; i < count; i++ {
		dst := data[start+i*stride:]
		src := v[i*cols*rows:]
		for r := 0; r < registers; r++ {
			for c := 0; c < regComponents; c++ {
				var f float32
				if c < regSize {
					col, row := r, c
					if info.IsRowMajorMatrix {
						col, row = c, r
					}
					f = src[sourceIndex(col, row, cols, rows, transpose)]
				}
				byteOrder.PutUint32(dst[r*matStride+c*gltype.ComponentSize:], math.Float32bits(f))
			}
		}
	}
	return nil
}

// CheckMatrix returns the error SetMatrix would return for a source of n
// floats and a block of size bytes, without writing.
func CheckMatrix(cols, rows, arrayIndex, elementCount, count, n int, info layout.BlockMemberInfo, size int) error {
	if count <= 0 {
		return nil
	}
	if arrayIndex < 0 || arrayIndex+count > elementCount || n < count*cols*rows {
		return ErrOutOfRange
	}
	registers, _, matStride, stride, start := matrixSpan(cols, rows, arrayIndex, info)
	if !fits(start, stride, registers*matStride, count, size) {
		return ErrOutOfRange
	}
	return nil
}

// matrixSpan returns the register layout of a matrix element and where
// element arrayIndex starts.
func matrixSpan(cols, rows, arrayIndex int, info layout.BlockMemberInfo) (registers, regSize, matStride, stride, start int) {
	registers, regSize = cols, rows
	if info.IsRowMajorMatrix {
		registers, regSize = rows, cols
	}
	matStride = info.MatrixStride
	if matStride == 0 {
		matStride = 4 * gltype.ComponentSize
	}
	stride = info.ArrayStride
	if stride == 0 {
		stride = registers * matStride
	}
	return registers, regSize, matStride, stride, info.Offset + arrayIndex*info.ArrayStride
}

// GetMatrix reads matrix element arrayIndex into dst as a dense
// column-major cols x rows matrix.
func GetMatrix(cols, rows, arrayIndex int, dst []float32, info layout.BlockMemberInfo, data []byte) error {
	if len(dst) < cols*rows {
		return ErrOutOfRange
	}
	registers := cols
	if info.IsRowMajorMatrix {
		registers = rows
	}
	matStride := info.MatrixStride
	if matStride == 0 {
		matStride = 4 * gltype.ComponentSize
	}
	start := info.Offset + arrayIndex*info.ArrayStride
	if !fits(start, 0, registers*matStride, 1, len(data)) {
		return ErrOutOfRange
	}
	src := data[start:]
	for col := 0; col < cols; col++ {
		for row := 0; row < rows; row++ {
			off := col*matStride + row*gltype.ComponentSize
			if info.IsRowMajorMatrix {
				off = row*matStride + col*gltype.ComponentSize
			}
			dst[col*rows+row] = math.Float32frombits(byteOrder.Uint32(src[off:]))
		}
	}
	return nil
}

func sourceIndex(col, row, cols, rows int, transpose bool) int {
	if transpose {
		return row*cols + col
	}
	return col*rows + row
}

// fits reports whether count elements of elementSize bytes, spaced stride
// bytes apart from start, lie inside a buffer of n bytes.
func fits(start, stride, elementSize, count, n int) bool {
	if start < 0 || count <= 0 {
		return false
	}
	end := start + (count-1)*stride + elementSize
	return end <= n
}

func putComponents[T Numeric](dst []byte, v []T) {
	for i, x := range v {
		putComponent(dst[i*gltype.ComponentSize:], x)
	}
}

func putComponent[T Numeric](dst []byte, v T) {
	switch x := any(v).(type) {
	case float32:
		byteOrder.PutUint32(dst, math.Float32bits(x))
	case int32:
		byteOrder.PutUint32(dst, uint32(x))
	case uint32:
		byteOrder.PutUint32(dst, x)
	}
}

func getComponent[T Numeric](src []byte) T {
	bits := byteOrder.Uint32(src)
	var out T
	switch p := any(&out).(type) {
	case *float32:
		*p = math.Float32frombits(bits)
	case *int32:
		*p = int32(bits)
	case *uint32:
		*p = bits
	}
	return out
}
