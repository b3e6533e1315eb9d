package layout

import (
	"strconv"
	"strings"

	"github.com/gogpu/glprog/gltype"
)

// NoLocation marks a variable without an explicit location qualifier.
const NoLocation = -1

// Variable is one uniform declared by a shader stage.
type Variable struct {
	Name string
	// Type is gltype.None for structs.
	Type gltype.Type
	// ArraySizes lists array dimensions outermost first. Empty for non-arrays.
	ArraySizes []int
	Fields     []Variable
	RowMajor   bool
	// InOut marks a fragment inout variable. It is read from the
	// framebuffer and takes no default block storage.
	InOut bool
	// Active reports whether the stage references the variable.
	Active bool
	// Location is the explicit location qualifier, or NoLocation.
	Location int
}

// NewVariable returns an active variable without an explicit location.
func NewVariable(name string, t gltype.Type, arraySizes ...int) Variable {
	return Variable{
		Name:       name,
		Type:       t,
		ArraySizes: arraySizes,
		Active:     true,
		Location:   NoLocation,
	}
}

// NewStruct returns an active struct variable without an explicit location.
func NewStruct(name string, fields []Variable, arraySizes ...int) Variable {
	return Variable{
		Name:       name,
		ArraySizes: arraySizes,
		Fields:     fields,
		Active:     true,
		Location:   NoLocation,
	}
}

// IsStruct reports whether v has fields.
func (v *Variable) IsStruct() bool { return len(v.Fields) > 0 }

// IsArray reports whether v has at least one array dimension.
func (v *Variable) IsArray() bool { return len(v.ArraySizes) > 0 }

// ArraySizeProduct returns the number of elements in v, 1 for non-arrays.
func (v *Variable) ArraySizeProduct() int { return ArraySizeProduct(v.ArraySizes) }

// HasLocation reports whether v carries an explicit location.
func (v *Variable) HasLocation() bool { return v.Location >= 0 }

// ArraySizeProduct returns the product of sizes, 1 when sizes is empty.
func ArraySizeProduct(sizes []int) int {
	n := 1
	for _, s := range sizes {
		n *= s
	}
	return n
}

// ElementName returns name[i].
func ElementName(name string, i int) string {
	return name + "[" + strconv.Itoa(i) + "]"
}

// StripLastArrayIndex removes one trailing "[0]" from name, if present.
func StripLastArrayIndex(name string) string {
	return strings.TrimSuffix(name, "[0]")
}

// Equal reports whether two declarations describe the same uniform shape.
// Activity is per stage and is not compared.
func (v *Variable) Equal(o *Variable) bool {
	if v.Name != o.Name || v.Type != o.Type || v.RowMajor != o.RowMajor || v.InOut != o.InOut {
		return false
	}
	if len(v.ArraySizes) != len(o.ArraySizes) || len(v.Fields) != len(o.Fields) {
		return false
	}
	for i := range v.ArraySizes {
		if v.ArraySizes[i] != o.ArraySizes[i] {
			return false
		}
	}
	for i := range v.Fields {
		if !v.Fields[i].Equal(&o.Fields[i]) {
			return false
		}
	}
	return true
}
