package gltype

import "testing"

func TestTypeInfo(t *testing.T) {
	tests := []struct {
		typ      Type
		name     string
		rows     int
		cols     int
		count    int
		ct       ComponentType
		isMatrix bool
		isOpaque bool
	}{
		{Bool, "bool", 1, 1, 1, ComponentBool, false, false},
		{IntVec3, "ivec3", 3, 1, 3, ComponentInt, false, false},
		{UintVec2, "uvec2", 2, 1, 2, ComponentUint, false, false},
		{FloatVec4, "vec4", 4, 1, 4, ComponentFloat, false, false},
		{FloatMat4, "mat4", 4, 4, 16, ComponentFloat, true, false},
		{FloatMat2x3, "mat2x3", 3, 2, 6, ComponentFloat, true, false},
		{FloatMat4x2, "mat4x2", 2, 4, 8, ComponentFloat, true, false},
		{Sampler2D, "sampler2D", 0, 0, 0, ComponentFloat, false, true},
		{Image2D, "image2D", 0, 0, 0, ComponentFloat, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := Info(tt.typ)
			if ti.Name != tt.name || tt.typ.String() != tt.name {
				t.Errorf("name = %q/%q, want %q", ti.Name, tt.typ.String(), tt.name)
			}
			if ti.Rows != tt.rows || ti.Columns != tt.cols {
				t.Errorf("shape = %dx%d, want %dx%d", ti.Columns, ti.Rows, tt.cols, tt.rows)
			}
			if ti.ComponentCount != tt.count {
				t.Errorf("ComponentCount = %d, want %d", ti.ComponentCount, tt.count)
			}
			if ti.ComponentType != tt.ct {
				t.Errorf("ComponentType = %v, want %v", ti.ComponentType, tt.ct)
			}
			if tt.typ.IsMatrix() != tt.isMatrix {
				t.Errorf("IsMatrix = %v, want %v", tt.typ.IsMatrix(), tt.isMatrix)
			}
			if tt.typ.IsOpaque() != tt.isOpaque {
				t.Errorf("IsOpaque = %v, want %v", tt.typ.IsOpaque(), tt.isOpaque)
			}
		})
	}
}

func TestBoolVectorType(t *testing.T) {
	tests := []struct {
		in, want Type
	}{
		{Int, Bool},
		{Float, Bool},
		{UintVec2, BoolVec2},
		{IntVec3, BoolVec3},
		{FloatVec4, BoolVec4},
		{FloatMat2, None},
		{Sampler2D, None},
		{Bool, None},
	}
	for _, tt := range tests {
		if got := BoolVectorType(tt.in); got != tt.want {
			t.Errorf("BoolVectorType(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMatrixRegisterCount(t *testing.T) {
	if got := MatrixRegisterCount(FloatMat2x4, false); got != 2 {
		t.Errorf("column-major mat2x4 registers = %d, want 2", got)
	}
	if got := MatrixRegisterCount(FloatMat2x4, true); got != 4 {
		t.Errorf("row-major mat2x4 registers = %d, want 4", got)
	}
}

func TestVectorAndMatrixType(t *testing.T) {
	if got := VectorType(ComponentUint, 3); got != UintVec3 {
		t.Errorf("VectorType(uint, 3) = %v, want uvec3", got)
	}
	if got := VectorType(ComponentFloat, 5); got != None {
		t.Errorf("VectorType(float, 5) = %v, want None", got)
	}
	if got := MatrixType(3, 4); got != FloatMat3x4 {
		t.Errorf("MatrixType(3, 4) = %v, want mat3x4", got)
	}
	if got := MatrixType(1, 4); got != None {
		t.Errorf("MatrixType(1, 4) = %v, want None", got)
	}
}

func TestTextRoundTrip(t *testing.T) {
	for typ := Bool; typ < typeCount; typ++ {
		b, err := typ.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", typ, err)
		}
		var got Type
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != typ {
			t.Errorf("round trip %v -> %q -> %v", typ, b, got)
		}
	}

	var bad Type
	if err := bad.UnmarshalText([]byte("dmat4")); err == nil {
		t.Error("expected error for unknown type name")
	}
}
