package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/glprog/gltype"
	"github.com/gogpu/glprog/layout"
)

var (
	// ErrUnsupportedStage is returned when WGSL has no entry point kind for
	// the requested stage.
	ErrUnsupportedStage = errors.New("shader: stage cannot be compiled from WGSL")

	// ErrNoEntryPoint is returned when the source declares no entry point
	// for the requested stage.
	ErrNoEntryPoint = errors.New("shader: no entry point for stage")

	// ErrUnsupportedType is returned when a uniform's type has no GL
	// equivalent, or when the compiled layout of a uniform is not std140.
	ErrUnsupportedType = errors.New("shader: unsupported uniform type")

	// ErrMultipleUniformBlocks is returned when a stage declares more than
	// one var<uniform> global. A stage has exactly one default block.
	ErrMultipleUniformBlocks = errors.New("shader: more than one var<uniform> in stage")
)

// Compile compiles WGSL source for one stage and reflects its uniforms.
//
// The stage's single var<uniform> global becomes its default block; a
// global of struct type contributes its members as individual uniforms.
// The global's layout must match std140, so matrices with two rows are
// rejected. Texture and sampler globals become opaque uniforms. A uniform
// is active when any function in the module references it. Bindings are
// carried over so the program's bind group agrees with the binary.
func Compile(stage Stage, source string) (*Shader, error) {
	irStage, ok := irStageOf(stage)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStage, stage)
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shader: parse %s: %w", stage, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("shader: lower %s: %w", stage, err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("shader: validate %s: %w", stage, err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("shader: validate %s: %w", stage, &verrs[0])
	}

	ep := findEntryPoint(module, irStage)
	if ep == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, stage)
	}

	r, err := reflectUniforms(module)
	if err != nil {
		return nil, fmt.Errorf("shader: reflect %s: %w", stage, err)
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("shader: generate %s: %w", stage, err)
	}

	s := &Shader{
		Stage:            stage,
		EntryPoint:       ep.Name,
		Uniforms:         r.uniforms,
		SPIRV:            words(code),
		UniformBinding:   r.uniformBinding,
		ResourceBindings: r.resourceBindings,
	}
	if stage == Fragment {
		s.OutputCount = countOutputs(module, ep)
	}
	return s, nil
}

func irStageOf(s Stage) (ir.ShaderStage, bool) {
	switch s {
	case Vertex:
		return ir.StageVertex, true
	case Fragment:
		return ir.StageFragment, true
	case Compute:
		return ir.StageCompute, true
	default:
		return 0, false
	}
}

func findEntryPoint(m *ir.Module, stage ir.ShaderStage) *ir.EntryPoint {
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == stage {
			return &m.EntryPoints[i]
		}
	}
	return nil
}

// words converts a little-endian SPIR-V byte stream to 32-bit words.
func words(b []byte) []uint32 {
	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return code
}

type reflection struct {
	uniforms         []layout.Variable
	uniformBinding   *ResourceBinding
	resourceBindings []ResourceBinding
}

func reflectUniforms(m *ir.Module) (reflection, error) {
	used := referencedGlobals(m)

	var (
		r     reflection
		block *ir.GlobalVariable
	)
	for h := range m.GlobalVariables {
		gv := &m.GlobalVariables[h]
		active := used[ir.GlobalVariableHandle(h)]

		switch gv.Space {
		case ir.SpaceUniform:
			if block != nil {
				return reflection{}, fmt.Errorf("%w: %s and %s", ErrMultipleUniformBlocks, block.Name, gv.Name)
			}
			block = gv
			vars, err := blockVariables(m, gv)
			if err != nil {
				return reflection{}, err
			}
			if err := checkStd140(m, gv, vars); err != nil {
				return reflection{}, err
			}
			for i := range vars {
				setActive(&vars[i], active)
			}
			r.uniforms = append(r.uniforms, vars...)
			if gv.Binding != nil {
				r.uniformBinding = &ResourceBinding{Group: gv.Binding.Group, Binding: gv.Binding.Binding}
			}

		case ir.SpaceHandle:
			t, sizes, ok := opaqueOf(m, gv.Type)
			if !ok {
				continue
			}
			v := layout.NewVariable(gv.Name, t, sizes...)
			v.Active = active
			r.uniforms = append(r.uniforms, v)
			if gv.Binding != nil {
				r.resourceBindings = append(r.resourceBindings,
					ResourceBinding{Group: gv.Binding.Group, Binding: gv.Binding.Binding})
			}
		}
	}
	return r, nil
}

// blockVariables returns the uniforms a var<uniform> global declares: the
// members of a struct global, or the global itself.
func blockVariables(m *ir.Module, gv *ir.GlobalVariable) ([]layout.Variable, error) {
	st, ok := m.Types[gv.Type].Inner.(ir.StructType)
	if !ok {
		v, err := variableOf(m, gv.Name, gv.Type)
		if err != nil {
			return nil, err
		}
		return []layout.Variable{v}, nil
	}
	vars := make([]layout.Variable, 0, len(st.Members))
	for _, member := range st.Members {
		v, err := variableOf(m, member.Name, member.Type)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// checkStd140 compares the layout naga gave gv with the std140 layout of
// its default block. Any difference means the uploaded bytes would not be
// what the binary reads.
func checkStd140(m *ir.Module, gv *ir.GlobalVariable, vars []layout.Variable) error {
	infos, size := layout.InitDefaultUniformBlock(vars)
	st, ok := m.Types[gv.Type].Inner.(ir.StructType)
	if !ok {
		return checkMember(m, gv.Type, gv.Name, 0, infos)
	}
	for _, member := range st.Members {
		if err := checkMember(m, member.Type, member.Name, member.Offset, infos); err != nil {
			return err
		}
	}
	if int(st.Span) != size {
		return fmt.Errorf("%w: %s is %d bytes, std140 block is %d", ErrUnsupportedType, gv.Name, st.Span, size)
	}
	return nil
}

func checkMember(m *ir.Module, th ir.TypeHandle, name string, offset uint32, infos layout.BlockLayoutMap) error {
	var arrayStride uint32
	switch t := m.Types[th].Inner.(type) {
	case ir.StructType:
		for _, member := range t.Members {
			if err := checkMember(m, member.Type, name+"."+member.Name, offset+member.Offset, infos); err != nil {
				return err
			}
		}
		return nil
	case ir.ArrayType:
		switch m.Types[t.Base].Inner.(type) {
		case ir.StructType, ir.ArrayType:
			for i := uint32(0); i < *t.Size.Constant; i++ {
				if err := checkMember(m, t.Base, layout.ElementName(name, int(i)), offset+i*t.Stride, infos); err != nil {
					return err
				}
			}
			return nil
		}
		arrayStride = t.Stride
		th = t.Base
	}

	info, ok := infos[name]
	if !ok {
		return fmt.Errorf("%w: %s has no std140 placement", ErrUnsupportedType, name)
	}
	if info.Offset != int(offset) {
		return fmt.Errorf("%w: %s at offset %d, std140 offset %d", ErrUnsupportedType, name, offset, info.Offset)
	}
	if info.ArrayStride != int(arrayStride) {
		return fmt.Errorf("%w: %s has array stride %d, std140 stride %d", ErrUnsupportedType, name, arrayStride, info.ArrayStride)
	}
	if mt, ok := m.Types[th].Inner.(ir.MatrixType); ok {
		if stride := columnStride(mt); info.MatrixStride != stride {
			return fmt.Errorf("%w: %s has column stride %d, std140 stride %d", ErrUnsupportedType, name, stride, info.MatrixStride)
		}
	}
	return nil
}

// columnStride is the byte distance between matrix columns in a WGSL
// host-shareable layout: the alignment of the column vector.
func columnStride(mt ir.MatrixType) int {
	if mt.Rows == 2 {
		return 8
	}
	return 16
}

func setActive(v *layout.Variable, active bool) {
	v.Active = active
	for i := range v.Fields {
		setActive(&v.Fields[i], active)
	}
}

func referencedGlobals(m *ir.Module) map[ir.GlobalVariableHandle]bool {
	used := make(map[ir.GlobalVariableHandle]bool)
	scan := func(f *ir.Function) {
		for _, e := range f.Expressions {
			if g, ok := e.Kind.(ir.ExprGlobalVariable); ok {
				used[g.Variable] = true
			}
		}
	}
	for i := range m.Functions {
		scan(&m.Functions[i])
	}
	for i := range m.EntryPoints {
		scan(&m.EntryPoints[i].Function)
	}
	return used
}

// variableOf converts a host-shareable IR type to a uniform declaration.
func variableOf(m *ir.Module, name string, th ir.TypeHandle) (layout.Variable, error) {
	var sizes []int
	for {
		arr, ok := m.Types[th].Inner.(ir.ArrayType)
		if !ok {
			break
		}
		if arr.Size.Constant == nil {
			return layout.Variable{}, fmt.Errorf("%w: runtime-sized array %s", ErrUnsupportedType, name)
		}
		sizes = append(sizes, int(*arr.Size.Constant))
		th = arr.Base
	}

	if st, ok := m.Types[th].Inner.(ir.StructType); ok {
		fields := make([]layout.Variable, 0, len(st.Members))
		for _, member := range st.Members {
			f, err := variableOf(m, member.Name, member.Type)
			if err != nil {
				return layout.Variable{}, err
			}
			fields = append(fields, f)
		}
		return layout.NewStruct(name, fields, sizes...), nil
	}

	t := glTypeOf(m.Types[th].Inner)
	if t == gltype.None {
		return layout.Variable{}, fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}
	return layout.NewVariable(name, t, sizes...), nil
}

func glTypeOf(inner ir.TypeInner) gltype.Type {
	switch t := inner.(type) {
	case ir.ScalarType:
		return gltype.VectorType(componentOf(t), 1)
	case ir.VectorType:
		return gltype.VectorType(componentOf(t.Scalar), int(t.Size))
	case ir.MatrixType:
		if t.Scalar.Kind != ir.ScalarFloat || t.Scalar.Width != 4 {
			return gltype.None
		}
		return gltype.MatrixType(int(t.Columns), int(t.Rows))
	}
	return gltype.None
}

func componentOf(s ir.ScalarType) gltype.ComponentType {
	if s.Kind == ir.ScalarBool {
		return gltype.ComponentBool
	}
	if s.Width != 4 {
		return gltype.ComponentNone
	}
	switch s.Kind {
	case ir.ScalarSint:
		return gltype.ComponentInt
	case ir.ScalarUint:
		return gltype.ComponentUint
	case ir.ScalarFloat:
		return gltype.ComponentFloat
	}
	return gltype.ComponentNone
}

// opaqueOf maps a texture or sampler type, possibly arrayed, to a GL
// opaque type.
func opaqueOf(m *ir.Module, th ir.TypeHandle) (gltype.Type, []int, bool) {
	var sizes []int
	for {
		arr, ok := m.Types[th].Inner.(ir.ArrayType)
		if !ok || arr.Size.Constant == nil {
			break
		}
		sizes = append(sizes, int(*arr.Size.Constant))
		th = arr.Base
	}

	switch t := m.Types[th].Inner.(type) {
	case ir.SamplerType:
		return gltype.Sampler, sizes, true
	case ir.ImageType:
		if t.Class == ir.ImageClassStorage {
			switch {
			case t.Dim == ir.Dim3D:
				return gltype.Image3D, sizes, true
			case t.Dim == ir.DimCube:
				return gltype.ImageCube, sizes, true
			case t.Arrayed:
				return gltype.Image2DArray, sizes, true
			default:
				return gltype.Image2D, sizes, true
			}
		}
		switch {
		case t.Class == ir.ImageClassDepth:
			return gltype.Sampler2DShadow, sizes, true
		case t.Dim == ir.Dim3D:
			return gltype.Sampler3D, sizes, true
		case t.Dim == ir.DimCube:
			return gltype.SamplerCube, sizes, true
		case t.Arrayed:
			return gltype.Sampler2DArray, sizes, true
		case t.SampledKind == ir.ScalarSint:
			return gltype.IntSampler2D, sizes, true
		case t.SampledKind == ir.ScalarUint:
			return gltype.UintSampler2D, sizes, true
		default:
			return gltype.Sampler2D, sizes, true
		}
	}
	return gltype.None, nil, false
}

// countOutputs returns the number of @location results of a fragment entry
// point.
func countOutputs(m *ir.Module, ep *ir.EntryPoint) int {
	res := ep.Function.Result
	if res == nil {
		return 0
	}
	if isLocation(res.Binding) {
		return 1
	}
	st, ok := m.Types[res.Type].Inner.(ir.StructType)
	if !ok {
		return 0
	}
	n := 0
	for _, member := range st.Members {
		if isLocation(member.Binding) {
			n++
		}
	}
	return n
}

func isLocation(b *ir.Binding) bool {
	if b == nil || *b == nil {
		return false
	}
	switch (*b).(type) {
	case ir.LocationBinding, *ir.LocationBinding:
		return true
	}
	return false
}
