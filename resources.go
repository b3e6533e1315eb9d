package glprog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/glprog/gltype"
	"github.com/gogpu/glprog/layout"
	"github.com/gogpu/glprog/shader"
)

// LinkedUniform is one leaf uniform of a linked program.
type LinkedUniform struct {
	// Name is the full resource name. Array leaves end in "[0]".
	Name string
	Type gltype.Type
	// ArraySizes holds the leaf's own array dimension, if any. Outer
	// dimensions of arrays of arrays are part of Name.
	ArraySizes []int
	RowMajor   bool
	// DefaultBlock reports whether the uniform lives in the default block.
	DefaultBlock bool
	// InOut marks a fragment inout variable.
	InOut bool
	// ActiveStages are the stages that reference the uniform.
	ActiveStages shader.Mask
	// Location is the location of element 0.
	Location int
}

// ElementCount returns the number of array elements, 1 for non-arrays.
func (u *LinkedUniform) ElementCount() int { return layout.ArraySizeProduct(u.ArraySizes) }

// IsArray reports whether the uniform is an array.
func (u *LinkedUniform) IsArray() bool { return len(u.ArraySizes) > 0 }

// IsSampler reports whether the uniform is a sampler.
func (u *LinkedUniform) IsSampler() bool { return u.Type.IsSampler() }

// IsImage reports whether the uniform is an image.
func (u *LinkedUniform) IsImage() bool { return u.Type.IsImage() }

// VariableLocation maps one uniform location to a uniform element.
type VariableLocation struct {
	// Index is the uniform index, or -1 for an unused location.
	Index      int
	ArrayIndex int
	// Ignored marks a location reserved by an inactive uniform.
	Ignored bool
}

var unusedLocation = VariableLocation{Index: -1}

// Used reports whether the location refers to an active uniform.
func (l VariableLocation) Used() bool { return l.Index >= 0 && !l.Ignored }

// resources is the program-wide uniform table built by link.
type resources struct {
	uniforms  []LinkedUniform
	locations []VariableLocation
	byName    map[string]int
}

// mergedVariable is one uniform declaration shared by all stages that
// declare it.
type mergedVariable struct {
	v      layout.Variable
	active shader.Mask
}

// linkResources merges the uniforms of stages, flattens them into leaves
// and assigns locations. The result depends only on stages, so the same
// stages always produce the same table.
func linkResources(stages []*shader.Shader) (*resources, error) {
	merged, err := mergeUniforms(stages)
	if err != nil {
		return nil, err
	}

	var leaves []leaf
	for i := range merged {
		m := &merged[i]
		base := m.v.Location
		flatten(&leaves, &m.v, m.v.Name, m.v.ArraySizes, m.active, &base)
	}
	return assignLocations(leaves)
}

func mergeUniforms(stages []*shader.Shader) ([]mergedVariable, error) {
	var merged []mergedVariable
	index := make(map[string]int)
	for _, s := range stages {
		for i := range s.Uniforms {
			v := &s.Uniforms[i]
			j, ok := index[v.Name]
			if !ok {
				index[v.Name] = len(merged)
				m := mergedVariable{v: *v}
				if v.Active {
					m.active = m.active.With(s.Stage)
				}
				merged = append(merged, m)
				continue
			}
			m := &merged[j]
			if !m.v.Equal(v) {
				return nil, fmt.Errorf("%w: %q in %s", ErrUniformMismatch, v.Name, s.Stage)
			}
			if v.HasLocation() {
				if m.v.HasLocation() && m.v.Location != v.Location {
					return nil, fmt.Errorf("%w: %q has locations %d and %d",
						ErrLocationConflict, v.Name, m.v.Location, v.Location)
				}
				m.v.Location = v.Location
			}
			if v.Active {
				m.active = m.active.With(s.Stage)
			}
		}
	}
	return merged, nil
}

// leaf is a flattened uniform before location assignment.
type leaf struct {
	u        LinkedUniform
	explicit int
}

// flatten appends the leaves of v. loc is the next explicit location, or
// NoLocation, and advances as leaves consume locations.
func flatten(out *[]leaf, v *layout.Variable, name string, arraySizes []int, active shader.Mask, loc *int) {
	switch {
	case len(arraySizes) > 1:
		for i := 0; i < arraySizes[0]; i++ {
			flatten(out, v, layout.ElementName(name, i), arraySizes[1:], active, loc)
		}
	case v.IsStruct() && len(arraySizes) == 1:
		for i := 0; i < arraySizes[0]; i++ {
			flattenStruct(out, v, layout.ElementName(name, i), active, loc)
		}
	case v.IsStruct():
		flattenStruct(out, v, name, active, loc)
	default:
		u := LinkedUniform{
			Name:         name,
			Type:         v.Type,
			RowMajor:     v.RowMajor,
			DefaultBlock: !v.InOut,
			InOut:        v.InOut,
			ActiveStages: active,
			Location:     layout.NoLocation,
		}
		if len(arraySizes) == 1 {
			u.Name = layout.ElementName(name, 0)
			u.ArraySizes = []int{arraySizes[0]}
		}
		l := leaf{u: u, explicit: *loc}
		if *loc != layout.NoLocation {
			*loc += u.ElementCount()
		}
		*out = append(*out, l)
	}
}

func flattenStruct(out *[]leaf, v *layout.Variable, name string, active shader.Mask, loc *int) {
	for i := range v.Fields {
		f := &v.Fields[i]
		flatten(out, f, name+"."+f.Name, f.ArraySizes, active, loc)
	}
}

// assignLocations reserves explicit locations first, then packs the
// remaining active uniforms into the first free runs.
func assignLocations(leaves []leaf) (*resources, error) {
	r := &resources{byName: make(map[string]int)}

	grow := func(n int) {
		for len(r.locations) < n {
			r.locations = append(r.locations, unusedLocation)
		}
	}

	for i := range leaves {
		l := &leaves[i]
		if l.explicit == layout.NoLocation {
			continue
		}
		n := l.u.ElementCount()
		grow(l.explicit + n)
		for e := 0; e < n; e++ {
			if loc := r.locations[l.explicit+e]; loc.Index >= 0 || loc.Ignored {
				return nil, fmt.Errorf("%w: %q at location %d", ErrLocationConflict, l.u.Name, l.explicit+e)
			}
		}
		if l.u.ActiveStages.Empty() {
			for e := 0; e < n; e++ {
				r.locations[l.explicit+e] = VariableLocation{Index: -1, ArrayIndex: e, Ignored: true}
			}
			continue
		}
		r.add(l.u, l.explicit)
	}

	next := 0
	for i := range leaves {
		l := &leaves[i]
		if l.explicit != layout.NoLocation || l.u.ActiveStages.Empty() {
			continue
		}
		n := l.u.ElementCount()
		start := r.freeRun(next, n)
		grow(start + n)
		r.add(l.u, start)
		next = start + n
	}
	return r, nil
}

// freeRun returns the first location at or after from where n consecutive
// locations are free.
func (r *resources) freeRun(from, n int) int {
	start := from
	for i := from; i < len(r.locations) && i-start < n; i++ {
		if loc := r.locations[i]; loc.Index >= 0 || loc.Ignored {
			start = i + 1
		}
	}
	return start
}

func (r *resources) add(u LinkedUniform, location int) {
	index := len(r.uniforms)
	u.Location = location
	r.uniforms = append(r.uniforms, u)
	r.byName[u.Name] = index
	for e := 0; e < u.ElementCount(); e++ {
		r.locations[location+e] = VariableLocation{Index: index, ArrayIndex: e}
	}
}

// location resolves a uniform name to a location. It accepts the bare name
// of an array, its "[0]" form, and "[n]" element names. It returns -1 when
// nothing matches.
func (r *resources) location(name string) int {
	if i, ok := r.byName[name]; ok {
		return r.uniforms[i].Location
	}
	if i, ok := r.byName[name+"[0]"]; ok {
		return r.uniforms[i].Location
	}
	open := strings.LastIndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return -1
	}
	n, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil || n < 0 {
		return -1
	}
	i, ok := r.byName[name[:open]+"[0]"]
	if !ok {
		return -1
	}
	u := &r.uniforms[i]
	if n >= u.ElementCount() {
		return -1
	}
	return u.Location + n
}

// lookup returns the uniform and array index at location, or ok == false
// for unused locations.
func (r *resources) lookup(location int) (u *LinkedUniform, arrayIndex int, ok bool) {
	loc := r.locations[location]
	if !loc.Used() {
		return nil, 0, false
	}
	return &r.uniforms[loc.Index], loc.ArrayIndex, true
}
