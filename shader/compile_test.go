package shader

import (
	"errors"
	"testing"

	"github.com/gogpu/glprog/gltype"
	"github.com/gogpu/glprog/layout"
)

const testVertexWGSL = `
struct Uniforms {
    mvp: mat4x4<f32>,
    color: vec4<f32>,
    scale: f32,
    offsets: array<vec4<f32>, 3>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

@vertex
fn vs_main(@location(0) pos: vec2<f32>) -> @builtin(position) vec4<f32> {
    return u.mvp * vec4<f32>(pos * u.scale, 0.0, 1.0);
}
`

const testFragmentWGSL = `
@group(0) @binding(0) var<uniform> tint: vec4<f32>;
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

struct FragOut {
    @location(0) color: vec4<f32>,
    @location(1) extra: vec4<f32>,
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> FragOut {
    var out: FragOut;
    out.color = textureSample(tex, samp, pos.xy) * tint;
    out.extra = tint;
    return out;
}
`

func findUniform(vars []layout.Variable, name string) *layout.Variable {
	for i := range vars {
		if vars[i].Name == name {
			return &vars[i]
		}
	}
	return nil
}

func TestCompileVertex(t *testing.T) {
	s, err := Compile(Vertex, testVertexWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if s.EntryPoint != "vs_main" {
		t.Errorf("EntryPoint = %q, want vs_main", s.EntryPoint)
	}
	if len(s.SPIRV) == 0 || s.SPIRV[0] != 0x07230203 {
		t.Fatalf("SPIRV missing magic number")
	}
	if s.OutputCount != 0 {
		t.Errorf("OutputCount = %d, want 0", s.OutputCount)
	}

	tests := []struct {
		name  string
		typ   gltype.Type
		sizes []int
	}{
		{"mvp", gltype.FloatMat4, nil},
		{"color", gltype.FloatVec4, nil},
		{"scale", gltype.Float, nil},
		{"offsets", gltype.FloatVec4, []int{3}},
		{"tex", gltype.Sampler2D, nil},
		{"samp", gltype.Sampler, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := findUniform(s.Uniforms, tt.name)
			if v == nil {
				t.Fatalf("uniform %q not reflected", tt.name)
			}
			if v.Type != tt.typ {
				t.Errorf("Type = %v, want %v", v.Type, tt.typ)
			}
			if len(v.ArraySizes) != len(tt.sizes) {
				t.Fatalf("ArraySizes = %v, want %v", v.ArraySizes, tt.sizes)
			}
			for i := range tt.sizes {
				if v.ArraySizes[i] != tt.sizes[i] {
					t.Errorf("ArraySizes = %v, want %v", v.ArraySizes, tt.sizes)
				}
			}
			if v.HasLocation() {
				t.Errorf("unexpected explicit location %d", v.Location)
			}
		})
	}

	if v := findUniform(s.Uniforms, "mvp"); v != nil && !v.Active {
		t.Error("mvp should be active")
	}
}

func TestCompileFragmentOutputs(t *testing.T) {
	s, err := Compile(Fragment, testFragmentWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if s.OutputCount != 2 {
		t.Errorf("OutputCount = %d, want 2", s.OutputCount)
	}
	tint := findUniform(s.Uniforms, "tint")
	if tint == nil || tint.Type != gltype.FloatVec4 || !tint.Active {
		t.Errorf("tint = %+v, want active vec4", tint)
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile(TessControl, testVertexWGSL); !errors.Is(err, ErrUnsupportedStage) {
		t.Errorf("Compile(TessControl) error = %v, want ErrUnsupportedStage", err)
	}
	if _, err := Compile(Fragment, testVertexWGSL); !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("Compile(Fragment) error = %v, want ErrNoEntryPoint", err)
	}
	if _, err := Compile(Vertex, "fn broken("); err == nil {
		t.Error("Compile() of invalid source should fail")
	}
}

const testMat2WGSL = `
struct Uniforms {
    a: f32,
    m: mat2x2<f32>,
    b: f32,
}

@group(0) @binding(0) var<uniform> u: Uniforms;

@vertex
fn vs_main() -> @builtin(position) vec4<f32> {
    return vec4<f32>(u.m[0] * u.a, u.b, 1.0);
}
`

const testTwoBlocksWGSL = `
@group(0) @binding(0) var<uniform> a: vec4<f32>;
@group(0) @binding(1) var<uniform> b: vec4<f32>;

@vertex
fn vs_main() -> @builtin(position) vec4<f32> {
    return a + b;
}
`

const testBoundFragmentWGSL = `
@group(0) @binding(3) var<uniform> tint: vec4<f32>;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return tint;
}
`

func TestCompileRejectsNonStd140Layout(t *testing.T) {
	_, err := Compile(Vertex, testMat2WGSL)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Compile() error = %v, want ErrUnsupportedType", err)
	}
}

func TestCompileRejectsTwoUniformBlocks(t *testing.T) {
	_, err := Compile(Vertex, testTwoBlocksWGSL)
	if !errors.Is(err, ErrMultipleUniformBlocks) {
		t.Fatalf("Compile() error = %v, want ErrMultipleUniformBlocks", err)
	}
}

func TestCompileBindings(t *testing.T) {
	s, err := Compile(Vertex, testVertexWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if s.UniformBinding == nil || *s.UniformBinding != (ResourceBinding{Group: 0, Binding: 0}) {
		t.Errorf("UniformBinding = %+v, want {0 0}", s.UniformBinding)
	}
	want := []ResourceBinding{{0, 1}, {0, 2}}
	if len(s.ResourceBindings) != len(want) {
		t.Fatalf("ResourceBindings = %v, want %v", s.ResourceBindings, want)
	}
	for i := range want {
		if s.ResourceBindings[i] != want[i] {
			t.Errorf("ResourceBindings[%d] = %v, want %v", i, s.ResourceBindings[i], want[i])
		}
	}

	fs, err := Compile(Fragment, testBoundFragmentWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if fs.UniformBinding == nil || fs.UniformBinding.Binding != 3 {
		t.Errorf("UniformBinding = %+v, want binding 3", fs.UniformBinding)
	}
	if len(fs.ResourceBindings) != 0 {
		t.Errorf("ResourceBindings = %v, want none", fs.ResourceBindings)
	}
}

func TestMask(t *testing.T) {
	m := MaskOf(Fragment, Vertex, TessEvaluation)
	got := m.Stages()
	want := []Stage{Vertex, TessEvaluation, Fragment}
	if len(got) != len(want) {
		t.Fatalf("Stages() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Stages()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if first, ok := m.First(); !ok || first != Vertex {
		t.Errorf("First() = %v, %v, want vertex", first, ok)
	}
	if m.Has(Compute) {
		t.Error("Has(Compute) = true")
	}
	if m = m.Without(Vertex); m.Has(Vertex) || m.Count() != 2 {
		t.Errorf("Without(Vertex) = %v", m)
	}
	if m.String() != "{tess_evaluation,fragment}" {
		t.Errorf("String() = %q", m.String())
	}
}

func TestStageText(t *testing.T) {
	for s := Vertex; int(s) < StageCount; s++ {
		b, _ := s.MarshalText()
		var got Stage
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Errorf("round trip %v = %v, %v", s, got, err)
		}
	}
	var s Stage
	if err := s.UnmarshalText([]byte("mesh")); err == nil {
		t.Error("expected error for unknown stage")
	}
}
