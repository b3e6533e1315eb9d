// Package shader describes the stages linked into a program and the
// uniforms each stage declares.
package shader

import (
	"math/bits"
	"strings"

	"github.com/gogpu/glprog/layout"
)

// Stage is a programmable pipeline stage.
// Values are ordered as stages are declared in a program.
type Stage uint8

const (
	Vertex Stage = iota
	TessControl
	TessEvaluation
	Geometry
	Fragment
	Compute

	StageCount = int(Compute) + 1
)

var stageNames = [StageCount]string{
	Vertex:         "vertex",
	TessControl:    "tess_control",
	TessEvaluation: "tess_evaluation",
	Geometry:       "geometry",
	Fragment:       "fragment",
	Compute:        "compute",
}

func (s Stage) String() string {
	if int(s) >= StageCount {
		return "unknown"
	}
	return stageNames[s]
}

// ParseStage returns the stage named name.
func ParseStage(name string) (Stage, bool) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	v, ok := ParseStage(string(b))
	if !ok {
		return &UnknownStageError{Name: string(b)}
	}
	*s = v
	return nil
}

// UnknownStageError is returned when a stage name cannot be parsed.
type UnknownStageError struct {
	Name string
}

func (e *UnknownStageError) Error() string { return "shader: unknown stage " + e.Name }

// Mask is a set of stages.
type Mask uint8

// MaskOf returns the set containing stages.
func MaskOf(stages ...Stage) Mask {
	var m Mask
	for _, s := range stages {
		m = m.With(s)
	}
	return m
}

// With returns m with s added.
func (m Mask) With(s Stage) Mask { return m | 1<<s }

// Without returns m with s removed.
func (m Mask) Without(s Stage) Mask { return m &^ (1 << s) }

// Has reports whether s is in m.
func (m Mask) Has(s Stage) bool { return m&(1<<s) != 0 }

// Empty reports whether m has no stages.
func (m Mask) Empty() bool { return m == 0 }

// Count returns the number of stages in m.
func (m Mask) Count() int { return bits.OnesCount8(uint8(m)) }

// Stages returns the stages of m in declaration order.
func (m Mask) Stages() []Stage {
	out := make([]Stage, 0, m.Count())
	for s := Vertex; int(s) < StageCount; s++ {
		if m.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// First returns the earliest stage in m.
func (m Mask) First() (Stage, bool) {
	if m == 0 {
		return 0, false
	}
	return Stage(bits.TrailingZeros8(uint8(m))), true
}

func (m Mask) String() string {
	names := make([]string, 0, m.Count())
	for _, s := range m.Stages() {
		names = append(names, s.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Shader is one linked stage.
type Shader struct {
	Stage      Stage
	EntryPoint string
	// Uniforms are the stage's default-block and opaque uniform declarations.
	Uniforms []layout.Variable
	// OutputCount is the number of fragment color outputs. Zero for other
	// stages.
	OutputCount int
	// SPIRV is the compiled stage binary, if any.
	SPIRV []uint32

	// UniformBinding is where the binary reads the default block. Nil lets
	// the program choose a free binding.
	UniformBinding *ResourceBinding
	// ResourceBindings are the bindings of the stage's opaque uniforms.
	// The program never places a default block on one of them.
	ResourceBindings []ResourceBinding
}

// ResourceBinding is a @group/@binding pair.
type ResourceBinding struct {
	Group   uint32
	Binding uint32
}

// New declares a stage whose binary, if any, is produced elsewhere.
func New(stage Stage, entryPoint string, uniforms ...layout.Variable) *Shader {
	return &Shader{
		Stage:      stage,
		EntryPoint: entryPoint,
		Uniforms:   uniforms,
	}
}

// WithUniformBinding fixes the default block binding and returns s.
func (s *Shader) WithUniformBinding(group, binding uint32) *Shader {
	s.UniformBinding = &ResourceBinding{Group: group, Binding: binding}
	return s
}

// WithOutputs sets the fragment output count and returns s.
func (s *Shader) WithOutputs(n int) *Shader {
	s.OutputCount = n
	return s
}
