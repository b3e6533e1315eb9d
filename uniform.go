package glprog

import (
	"fmt"
	"math"

	"github.com/gogpu/glprog/gltype"
	"github.com/gogpu/glprog/internal/uniform"
	"github.com/gogpu/glprog/layout"
	"github.com/gogpu/glprog/shader"
)

// resolve maps location to its uniform. u is nil for unused locations.
func (p *Program) resolve(location int) (u *LinkedUniform, arrayIndex int, err error) {
	if !p.linked {
		return nil, 0, ErrNotLinked
	}
	if location == -1 {
		return nil, 0, nil
	}
	if location < 0 || location >= len(p.res.locations) {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidLocation, location)
	}
	u, arrayIndex, _ = p.res.lookup(location)
	return u, arrayIndex, nil
}

// clampCount limits count to the elements left after arrayIndex. A
// negative count is invalid.
func clampCount(count int, u *LinkedUniform, arrayIndex int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: count %d for %q", ErrInvalidValue, count, u.Name)
	}
	if count <= 1 {
		return count, nil
	}
	return min(count, u.ElementCount()-arrayIndex), nil
}

// setUniform writes count elements of entryType from v at location into
// every stage that stores it.
func setUniform[T uniform.Numeric](p *Program, location, count int, v []T, entryType gltype.Type) error {
	u, arrayIndex, err := p.resolve(location)
	if err != nil || u == nil {
		return err
	}
	if u.Type.IsOpaque() {
		return fmt.Errorf("%w: %s %q set as %s", ErrTypeMismatch, u.Type, u.Name, entryType)
	}

	var update func(count, arrayIndex, componentCount int, v []T, info layout.BlockMemberInfo, data []byte) error
	switch u.Type {
	case entryType:
		update = uniform.Update[T]
	case gltype.BoolVectorType(entryType):
		update = uniform.UpdateBool[T]
	default:
		return fmt.Errorf("%w: %s %q set as %s", ErrTypeMismatch, u.Type, u.Name, entryType)
	}

	count, err = clampCount(count, u, arrayIndex)
	if err != nil || count == 0 {
		return err
	}
	componentCount := entryType.ComponentCount()
	exec := p.exec
	stages := exec.storingStages(location)
	for _, st := range stages {
		b := exec.blocks[st]
		if err := uniform.CheckUpdate(count, arrayIndex, componentCount, len(v), b.Info(location), len(b.UniformData)); err != nil {
			return fmt.Errorf("glprog: set %q: %w", u.Name, err)
		}
	}
	for _, st := range stages {
		b := exec.blocks[st]
		if err := update(count, arrayIndex, componentCount, v, b.Info(location), b.UniformData); err != nil {
			return fmt.Errorf("glprog: set %q: %w", u.Name, err)
		}
		exec.dirty = exec.dirty.With(st)
	}
	return nil
}

// setUniformMatrix writes count cols x rows matrices from v at location.
func (p *Program) setUniformMatrix(cols, rows, location, count int, transpose bool, v []float32) error {
	u, arrayIndex, err := p.resolve(location)
	if err != nil || u == nil {
		return err
	}
	if want := gltype.MatrixType(cols, rows); u.Type != want {
		return fmt.Errorf("%w: %s %q set as %s", ErrTypeMismatch, u.Type, u.Name, want)
	}

	count, err = clampCount(count, u, arrayIndex)
	if err != nil || count == 0 {
		return err
	}
	exec := p.exec
	stages := exec.storingStages(location)
	for _, st := range stages {
		b := exec.blocks[st]
		if err := uniform.CheckMatrix(cols, rows, arrayIndex, u.ElementCount(), count, len(v), b.Info(location), len(b.UniformData)); err != nil {
			return fmt.Errorf("glprog: set %q: %w", u.Name, err)
		}
	}
	for _, st := range stages {
		b := exec.blocks[st]
		if err := uniform.SetMatrix(cols, rows, arrayIndex, u.ElementCount(), count, transpose, v, b.Info(location), b.UniformData); err != nil {
			return fmt.Errorf("glprog: set %q: %w", u.Name, err)
		}
		exec.dirty = exec.dirty.With(st)
	}
	return nil
}

// storingStages returns the linked stages whose block has storage for
// location. A write is checked against all of them before any is changed.
func (e *executable) storingStages(location int) []shader.Stage {
	var out []shader.Stage
	for _, st := range e.linked.Stages() {
		if !e.blocks[st].Info(location).IsUnused() {
			out = append(out, st)
		}
	}
	return out
}

// setTextureUnits records the units of a sampler uniform. Samplers have no
// default block storage.
func (p *Program) setTextureUnits(u *LinkedUniform, arrayIndex, count int, v []int32) error {
	count, err := clampCount(count, u, arrayIndex)
	if err != nil || count == 0 {
		return err
	}
	if len(v) < count {
		return fmt.Errorf("glprog: set %q: %w", u.Name, uniform.ErrOutOfRange)
	}
	index := p.res.byName[u.Name]
	units, ok := p.textureUnits[index]
	if !ok {
		units = make([]int32, u.ElementCount())
		p.textureUnits[index] = units
	}
	copy(units[arrayIndex:arrayIndex+count], v[:count])
	return nil
}

// getUniform reads the element at location into dst, converting from the
// declared component type.
func getUniform[T uniform.Numeric](p *Program, location int, dst []T) error {
	u, arrayIndex, err := p.resolve(location)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: %d is not in use", ErrInvalidLocation, location)
	}
	if u.IsSampler() {
		if len(dst) < 1 {
			return uniform.ErrOutOfRange
		}
		var unit int32
		if units, ok := p.textureUnits[p.res.byName[u.Name]]; ok {
			unit = units[arrayIndex]
		}
		dst[0] = T(unit)
		return nil
	}
	if u.Type.IsOpaque() {
		return fmt.Errorf("%w: %s %q is not readable", ErrTypeMismatch, u.Type, u.Name)
	}

	st, _ := u.ActiveStages.First()
	b := p.exec.blocks[st]
	info := b.Info(location)
	if info.IsUnused() {
		return fmt.Errorf("%w: %q has no storage in %s", ErrLinkConsistency, u.Name, st)
	}

	ti := gltype.Info(u.Type)
	n := ti.ComponentCount
	if len(dst) < n {
		return fmt.Errorf("glprog: get %q: %w", u.Name, uniform.ErrOutOfRange)
	}

	switch {
	case ti.IsMatrix():
		tmp := make([]float32, n)
		err = uniform.GetMatrix(ti.Columns, ti.Rows, arrayIndex, tmp, info, b.UniformData)
		convertComponents(dst, tmp)
	case ti.ComponentType == gltype.ComponentFloat:
		tmp := make([]float32, n)
		err = uniform.Read(n, arrayIndex, tmp, info, b.UniformData)
		convertComponents(dst, tmp)
	case ti.ComponentType == gltype.ComponentUint:
		tmp := make([]uint32, n)
		err = uniform.Read(n, arrayIndex, tmp, info, b.UniformData)
		convertComponents(dst, tmp)
	default:
		tmp := make([]int32, n)
		err = uniform.Read(n, arrayIndex, tmp, info, b.UniformData)
		convertComponents(dst, tmp)
	}
	if err != nil {
		return fmt.Errorf("glprog: get %q: %w", u.Name, err)
	}
	return nil
}

// convertComponents converts src into dst. Floats are rounded to the
// nearest integer when dst is integral.
func convertComponents[D, S uniform.Numeric](dst []D, src []S) {
	var zero D
	_, toFloat := any(zero).(float32)
	for i, s := range src {
		if f, ok := any(s).(float32); ok && !toFloat {
			dst[i] = D(math.Round(float64(f)))
			continue
		}
		dst[i] = D(s)
	}
}

// SetUniform1fv sets count float values starting at location.
func (p *Program) SetUniform1fv(location, count int, v []float32) error {
	return setUniform(p, location, count, v, gltype.Float)
}

// SetUniform2fv sets count vec2 values starting at location.
func (p *Program) SetUniform2fv(location, count int, v []float32) error {
	return setUniform(p, location, count, v, gltype.FloatVec2)
}

// SetUniform3fv sets count vec3 values starting at location.
func (p *Program) SetUniform3fv(location, count int, v []float32) error {
	return setUniform(p, location, count, v, gltype.FloatVec3)
}

// SetUniform4fv sets count vec4 values starting at location.
func (p *Program) SetUniform4fv(location, count int, v []float32) error {
	return setUniform(p, location, count, v, gltype.FloatVec4)
}

// SetUniform1iv sets count int values starting at location. On a sampler
// location the values are texture units.
func (p *Program) SetUniform1iv(location, count int, v []int32) error {
	u, arrayIndex, err := p.resolve(location)
	if err != nil || u == nil {
		return err
	}
	if u.IsSampler() {
		return p.setTextureUnits(u, arrayIndex, count, v)
	}
	return setUniform(p, location, count, v, gltype.Int)
}

// SetUniform2iv sets count ivec2 values starting at location.
func (p *Program) SetUniform2iv(location, count int, v []int32) error {
	return setUniform(p, location, count, v, gltype.IntVec2)
}

// SetUniform3iv sets count ivec3 values starting at location.
func (p *Program) SetUniform3iv(location, count int, v []int32) error {
	return setUniform(p, location, count, v, gltype.IntVec3)
}

// SetUniform4iv sets count ivec4 values starting at location.
func (p *Program) SetUniform4iv(location, count int, v []int32) error {
	return setUniform(p, location, count, v, gltype.IntVec4)
}

// SetUniform1uiv sets count uint values starting at location.
func (p *Program) SetUniform1uiv(location, count int, v []uint32) error {
	return setUniform(p, location, count, v, gltype.Uint)
}

// SetUniform2uiv sets count uvec2 values starting at location.
func (p *Program) SetUniform2uiv(location, count int, v []uint32) error {
	return setUniform(p, location, count, v, gltype.UintVec2)
}

// SetUniform3uiv sets count uvec3 values starting at location.
func (p *Program) SetUniform3uiv(location, count int, v []uint32) error {
	return setUniform(p, location, count, v, gltype.UintVec3)
}

// SetUniform4uiv sets count uvec4 values starting at location.
func (p *Program) SetUniform4uiv(location, count int, v []uint32) error {
	return setUniform(p, location, count, v, gltype.UintVec4)
}

// SetUniformMatrix2fv sets count mat2 values. v is column-major unless
// transpose is set.
func (p *Program) SetUniformMatrix2fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(2, 2, location, count, transpose, v)
}

// SetUniformMatrix3fv sets count mat3 values.
func (p *Program) SetUniformMatrix3fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(3, 3, location, count, transpose, v)
}

// SetUniformMatrix4fv sets count mat4 values.
func (p *Program) SetUniformMatrix4fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(4, 4, location, count, transpose, v)
}

// SetUniformMatrix2x3fv sets count mat2x3 values: 2 columns, 3 rows.
func (p *Program) SetUniformMatrix2x3fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(2, 3, location, count, transpose, v)
}

// SetUniformMatrix3x2fv sets count mat3x2 values.
func (p *Program) SetUniformMatrix3x2fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(3, 2, location, count, transpose, v)
}

// SetUniformMatrix2x4fv sets count mat2x4 values.
func (p *Program) SetUniformMatrix2x4fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(2, 4, location, count, transpose, v)
}

// SetUniformMatrix4x2fv sets count mat4x2 values.
func (p *Program) SetUniformMatrix4x2fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(4, 2, location, count, transpose, v)
}

// SetUniformMatrix3x4fv sets count mat3x4 values.
func (p *Program) SetUniformMatrix3x4fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(3, 4, location, count, transpose, v)
}

// SetUniformMatrix4x3fv sets count mat4x3 values.
func (p *Program) SetUniformMatrix4x3fv(location, count int, transpose bool, v []float32) error {
	return p.setUniformMatrix(4, 3, location, count, transpose, v)
}

// GetUniformfv reads the uniform element at location as floats. Matrices
// are returned column-major.
func (p *Program) GetUniformfv(location int, dst []float32) error {
	return getUniform(p, location, dst)
}

// GetUniformiv reads the uniform element at location as ints. Samplers
// report their texture unit.
func (p *Program) GetUniformiv(location int, dst []int32) error {
	return getUniform(p, location, dst)
}

// GetUniformuiv reads the uniform element at location as uints.
func (p *Program) GetUniformuiv(location int, dst []uint32) error {
	return getUniform(p, location, dst)
}

// GetUniformbv reads the uniform element at location as bools: a component
// is true when it is nonzero.
func (p *Program) GetUniformbv(location int, dst []bool) error {
	tmp := make([]float32, len(dst))
	if err := getUniform(p, location, tmp); err != nil {
		return err
	}
	for i, f := range tmp {
		dst[i] = f != 0
	}
	return nil
}
