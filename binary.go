package glprog

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/glprog/gltype"
	"github.com/gogpu/glprog/layout"
	"github.com/gogpu/glprog/shader"
)

const binaryVersion = 1

// programBinary is the saved form of a linked program. Only link inputs
// are stored; layouts, locations and buffers are recomputed by Load.
type programBinary struct {
	Version           int           `toml:"version"`
	Separable         bool          `toml:"separable"`
	BinaryRetrievable bool          `toml:"binary_retrievable"`
	Stages            []stageBinary `toml:"stage"`
}

type stageBinary struct {
	Stage      string           `toml:"stage"`
	EntryPoint string           `toml:"entry_point"`
	Outputs    int              `toml:"outputs,omitempty"`
	SPIRV      []uint32         `toml:"spirv,omitempty"`
	Uniforms   []variableBinary `toml:"uniform,omitempty"`

	UniformBinding   *bindingBinary  `toml:"uniform_binding,omitempty"`
	ResourceBindings []bindingBinary `toml:"resource_binding,omitempty"`
}

type bindingBinary struct {
	Group   uint32 `toml:"group"`
	Binding uint32 `toml:"binding"`
}

type variableBinary struct {
	Name       string           `toml:"name"`
	Type       string           `toml:"type,omitempty"`
	ArraySizes []int            `toml:"array_sizes,omitempty"`
	RowMajor   bool             `toml:"row_major,omitempty"`
	InOut      bool             `toml:"inout,omitempty"`
	Active     bool             `toml:"active"`
	Location   int              `toml:"location"`
	Fields     []variableBinary `toml:"field,omitempty"`
}

// Save writes the linked program as a TOML document that Load accepts.
func (p *Program) Save(w io.Writer) error {
	if !p.linked {
		return ErrNotLinked
	}
	bin := programBinary{
		Version:           binaryVersion,
		Separable:         p.separable,
		BinaryRetrievable: p.binaryRetrievable,
	}
	for _, s := range p.exec.shaders {
		sb := stageBinary{
			Stage:      s.Stage.String(),
			EntryPoint: s.EntryPoint,
			Outputs:    s.OutputCount,
			SPIRV:      s.SPIRV,
		}
		for i := range s.Uniforms {
			sb.Uniforms = append(sb.Uniforms, saveVariable(&s.Uniforms[i]))
		}
		if ub := s.UniformBinding; ub != nil {
			sb.UniformBinding = &bindingBinary{Group: ub.Group, Binding: ub.Binding}
		}
		for _, rb := range s.ResourceBindings {
			sb.ResourceBindings = append(sb.ResourceBindings, bindingBinary(rb))
		}
		bin.Stages = append(bin.Stages, sb)
	}
	if err := toml.NewEncoder(w).Encode(bin); err != nil {
		return fmt.Errorf("glprog: save: %w", err)
	}
	return nil
}

// Load replaces the program with one read from r and links it. The
// resulting locations and layouts are identical to those of the saved
// program.
func (p *Program) Load(r io.Reader) error {
	p.Destroy()

	var bin programBinary
	if err := toml.NewDecoder(r).Decode(&bin); err != nil {
		return fmt.Errorf("glprog: load: %w", err)
	}
	if bin.Version != binaryVersion {
		return fmt.Errorf("glprog: load: %w: version %d", ErrIncompatibleBinary, bin.Version)
	}

	for _, sb := range bin.Stages {
		stage, ok := shader.ParseStage(sb.Stage)
		if !ok {
			return fmt.Errorf("glprog: load: %w", &shader.UnknownStageError{Name: sb.Stage})
		}
		s := &shader.Shader{
			Stage:       stage,
			EntryPoint:  sb.EntryPoint,
			OutputCount: sb.Outputs,
			SPIRV:       sb.SPIRV,
		}
		if ub := sb.UniformBinding; ub != nil {
			s.UniformBinding = &shader.ResourceBinding{Group: ub.Group, Binding: ub.Binding}
		}
		for _, rb := range sb.ResourceBindings {
			s.ResourceBindings = append(s.ResourceBindings, shader.ResourceBinding(rb))
		}
		for i := range sb.Uniforms {
			v, err := loadVariable(&sb.Uniforms[i])
			if err != nil {
				p.Destroy()
				return fmt.Errorf("glprog: load: %w", err)
			}
			s.Uniforms = append(s.Uniforms, v)
		}
		p.Attach(s)
	}
	p.separable = bin.Separable
	p.binaryRetrievable = bin.BinaryRetrievable
	return p.Link()
}

func saveVariable(v *layout.Variable) variableBinary {
	vb := variableBinary{
		Name:       v.Name,
		ArraySizes: v.ArraySizes,
		RowMajor:   v.RowMajor,
		InOut:      v.InOut,
		Active:     v.Active,
		Location:   v.Location,
	}
	if v.Type != gltype.None {
		vb.Type = v.Type.String()
	}
	for i := range v.Fields {
		vb.Fields = append(vb.Fields, saveVariable(&v.Fields[i]))
	}
	return vb
}

func loadVariable(vb *variableBinary) (layout.Variable, error) {
	v := layout.Variable{
		Name:       vb.Name,
		ArraySizes: vb.ArraySizes,
		RowMajor:   vb.RowMajor,
		InOut:      vb.InOut,
		Active:     vb.Active,
		Location:   vb.Location,
	}
	if vb.Type != "" {
		t, ok := gltype.Parse(vb.Type)
		if !ok {
			return layout.Variable{}, &gltype.UnknownTypeError{Name: vb.Type}
		}
		v.Type = t
	}
	for i := range vb.Fields {
		f, err := loadVariable(&vb.Fields[i])
		if err != nil {
			return layout.Variable{}, err
		}
		v.Fields = append(v.Fields, f)
	}
	return v, nil
}
