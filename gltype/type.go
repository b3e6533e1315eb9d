// Package gltype describes the GLSL variable types a program object can
// declare as uniforms.
//
// The table mirrors the GL type enumeration closely enough that entry points
// such as glUniform3iv can be expressed as "write a value of type IntVec3",
// while staying a plain Go enum with no dependency on a GL header.
package gltype

// Type is a GLSL variable type.
type Type uint16

const (
	// None is the zero value and never a valid uniform type.
	None Type = iota

	Bool
	BoolVec2
	BoolVec3
	BoolVec4

	Int
	IntVec2
	IntVec3
	IntVec4

	Uint
	UintVec2
	UintVec3
	UintVec4

	Float
	FloatVec2
	FloatVec3
	FloatVec4

	FloatMat2
	FloatMat3
	FloatMat4
	FloatMat2x3
	FloatMat3x2
	FloatMat2x4
	FloatMat4x2
	FloatMat3x4
	FloatMat4x3

	Sampler2D
	Sampler3D
	SamplerCube
	Sampler2DArray
	Sampler2DShadow
	IntSampler2D
	UintSampler2D
	// Sampler is a standalone sampler object with no texture attached.
	Sampler

	Image2D
	Image3D
	ImageCube
	Image2DArray

	typeCount
)

// ComponentType is the scalar kind a type is built from.
type ComponentType uint8

const (
	ComponentNone ComponentType = iota
	ComponentBool
	ComponentInt
	ComponentUint
	ComponentFloat
)

// String returns the GLSL name of the component type.
func (c ComponentType) String() string {
	switch c {
	case ComponentBool:
		return "bool"
	case ComponentInt:
		return "int"
	case ComponentUint:
		return "uint"
	case ComponentFloat:
		return "float"
	default:
		return "none"
	}
}

// ComponentSize is the byte size of one component of any non-opaque type.
// Booleans are stored as 32-bit integers.
const ComponentSize = 4

// TypeInfo is the static description of a Type.
type TypeInfo struct {
	Type          Type
	Name          string
	ComponentType ComponentType
	Rows          int
	Columns       int
	// ComponentCount is Rows * Columns.
	ComponentCount int
	IsSampler      bool
	IsImage        bool
}

// IsOpaque reports whether the type consumes no uniform memory.
func (ti *TypeInfo) IsOpaque() bool { return ti.IsSampler || ti.IsImage }

// IsMatrix reports whether the type has more than one column.
func (ti *TypeInfo) IsMatrix() bool { return ti.Columns > 1 }

// ExternalSize is the dense byte size of one value of the type.
func (ti *TypeInfo) ExternalSize() int { return ti.ComponentCount * ComponentSize }

var typeInfos [typeCount]TypeInfo

func scalar(t Type, name string, ct ComponentType, rows int) {
	typeInfos[t] = TypeInfo{Type: t, Name: name, ComponentType: ct, Rows: rows, Columns: 1, ComponentCount: rows}
}

func matrix(t Type, name string, cols, rows int) {
	typeInfos[t] = TypeInfo{Type: t, Name: name, ComponentType: ComponentFloat, Rows: rows, Columns: cols, ComponentCount: rows * cols}
}

func opaque(t Type, name string, ct ComponentType, image bool) {
	typeInfos[t] = TypeInfo{Type: t, Name: name, ComponentType: ct, IsSampler: !image, IsImage: image}
}

func init() {
	typeInfos[None] = TypeInfo{Name: "none"}

	scalar(Bool, "bool", ComponentBool, 1)
	scalar(BoolVec2, "bvec2", ComponentBool, 2)
	scalar(BoolVec3, "bvec3", ComponentBool, 3)
	scalar(BoolVec4, "bvec4", ComponentBool, 4)
	scalar(Int, "int", ComponentInt, 1)
	scalar(IntVec2, "ivec2", ComponentInt, 2)
	scalar(IntVec3, "ivec3", ComponentInt, 3)
	scalar(IntVec4, "ivec4", ComponentInt, 4)
	scalar(Uint, "uint", ComponentUint, 1)
	scalar(UintVec2, "uvec2", ComponentUint, 2)
	scalar(UintVec3, "uvec3", ComponentUint, 3)
	scalar(UintVec4, "uvec4", ComponentUint, 4)
	scalar(Float, "float", ComponentFloat, 1)
	scalar(FloatVec2, "vec2", ComponentFloat, 2)
	scalar(FloatVec3, "vec3", ComponentFloat, 3)
	scalar(FloatVec4, "vec4", ComponentFloat, 4)

	matrix(FloatMat2, "mat2", 2, 2)
	matrix(FloatMat3, "mat3", 3, 3)
	matrix(FloatMat4, "mat4", 4, 4)
	matrix(FloatMat2x3, "mat2x3", 2, 3)
	matrix(FloatMat3x2, "mat3x2", 3, 2)
	matrix(FloatMat2x4, "mat2x4", 2, 4)
	matrix(FloatMat4x2, "mat4x2", 4, 2)
	matrix(FloatMat3x4, "mat3x4", 3, 4)
	matrix(FloatMat4x3, "mat4x3", 4, 3)

	opaque(Sampler2D, "sampler2D", ComponentFloat, false)
	opaque(Sampler3D, "sampler3D", ComponentFloat, false)
	opaque(SamplerCube, "samplerCube", ComponentFloat, false)
	opaque(Sampler2DArray, "sampler2DArray", ComponentFloat, false)
	opaque(Sampler2DShadow, "sampler2DShadow", ComponentFloat, false)
	opaque(IntSampler2D, "isampler2D", ComponentInt, false)
	opaque(UintSampler2D, "usampler2D", ComponentUint, false)
	opaque(Sampler, "sampler", ComponentNone, false)
	opaque(Image2D, "image2D", ComponentFloat, true)
	opaque(Image3D, "image3D", ComponentFloat, true)
	opaque(ImageCube, "imageCube", ComponentFloat, true)
	opaque(Image2DArray, "image2DArray", ComponentFloat, true)
}

// Info returns the static description of t. Unknown types describe as None.
func Info(t Type) *TypeInfo {
	if t >= typeCount {
		return &typeInfos[None]
	}
	return &typeInfos[t]
}

// Valid reports whether t names a known type other than None.
func (t Type) Valid() bool { return t > None && t < typeCount }

// String returns the GLSL spelling of the type.
func (t Type) String() string {
	if !t.Valid() {
		return "Unknown"
	}
	return typeInfos[t].Name
}

// IsMatrix reports whether t is a matrix type.
func (t Type) IsMatrix() bool { return Info(t).IsMatrix() }

// IsSampler reports whether t is a sampler type.
func (t Type) IsSampler() bool { return Info(t).IsSampler }

// IsImage reports whether t is an image type.
func (t Type) IsImage() bool { return Info(t).IsImage }

// IsOpaque reports whether t is a sampler or image type.
func (t Type) IsOpaque() bool { return Info(t).IsOpaque() }

// ComponentCount returns the number of scalar components in t.
func (t Type) ComponentCount() int { return Info(t).ComponentCount }

// MatrixRegisterCount is the number of 4-component registers a matrix of
// type t occupies: its rows when stored row-major, its columns otherwise.
func MatrixRegisterCount(t Type, rowMajor bool) int {
	ti := Info(t)
	if rowMajor {
		return ti.Rows
	}
	return ti.Columns
}

// BoolVectorType returns the boolean type with the same component count as
// the numeric vector type t, or None if t has no boolean counterpart.
//
// A bool uniform may be written through any numeric entry point of the same
// width; this is how callers detect that case.
func BoolVectorType(t Type) Type {
	ti := Info(t)
	if ti.IsMatrix() || ti.IsOpaque() {
		return None
	}
	switch ti.ComponentType {
	case ComponentInt, ComponentUint, ComponentFloat:
	default:
		return None
	}
	switch ti.ComponentCount {
	case 1:
		return Bool
	case 2:
		return BoolVec2
	case 3:
		return BoolVec3
	case 4:
		return BoolVec4
	}
	return None
}

// VectorType returns the vector type of the given component type and size,
// or None if no such type exists.
func VectorType(ct ComponentType, size int) Type {
	var base Type
	switch ct {
	case ComponentBool:
		base = Bool
	case ComponentInt:
		base = Int
	case ComponentUint:
		base = Uint
	case ComponentFloat:
		base = Float
	default:
		return None
	}
	if size < 1 || size > 4 {
		return None
	}
	return base + Type(size-1)
}

// MatrixType returns the float matrix type with the given shape, or None.
func MatrixType(cols, rows int) Type {
	for t := FloatMat2; t <= FloatMat4x3; t++ {
		if typeInfos[t].Columns == cols && typeInfos[t].Rows == rows {
			return t
		}
	}
	return None
}

// Parse returns the type whose GLSL spelling is name.
func Parse(name string) (Type, bool) {
	for t := Bool; t < typeCount; t++ {
		if typeInfos[t].Name == name {
			return t, true
		}
	}
	return None, false
}

// MarshalText implements encoding.TextMarshaler using the GLSL spelling.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, ok := Parse(string(b))
	if !ok {
		return &UnknownTypeError{Name: string(b)}
	}
	*t = v
	return nil
}

// UnknownTypeError is returned when a type name cannot be parsed.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string { return "gltype: unknown type " + e.Name }
