package layout

// BlockLayoutMap maps a uniform name to its placement in one block.
type BlockLayoutMap map[string]BlockMemberInfo

// GetUniformBlockInfo encodes vars in declaration order and records the
// placement of every leaf in out.
//
// Leaf names follow GLSL resource naming: struct fields are "s.f", elements
// of a struct array are "s[i].f", and an array of arrays is split into
// entries "a[i]" that each hold the innermost array. Array leaves are
// recorded under their base name, without a trailing "[0]".
func GetUniformBlockInfo(vars []Variable, prefix string, enc Encoder, out BlockLayoutMap) {
	for i := range vars {
		v := &vars[i]
		name := v.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		encodeVariable(v, name, v.ArraySizes, enc, out)
	}
}

func encodeVariable(v *Variable, name string, arraySizes []int, enc Encoder, out BlockLayoutMap) {
	switch {
	case len(arraySizes) > 1:
		for i := 0; i < arraySizes[0]; i++ {
			encodeVariable(v, ElementName(name, i), arraySizes[1:], enc, out)
		}
	case v.IsStruct() && len(arraySizes) == 1:
		for i := 0; i < arraySizes[0]; i++ {
			encodeStruct(v, ElementName(name, i), enc, out)
		}
	case v.IsStruct():
		encodeStruct(v, name, enc, out)
	default:
		out[name] = enc.EncodeType(v.Type, arraySizes, v.RowMajor)
	}
}

func encodeStruct(v *Variable, name string, enc Encoder, out BlockLayoutMap) {
	enc.EnterAggregate()
	for i := range v.Fields {
		f := &v.Fields[i]
		encodeVariable(f, name+"."+f.Name, f.ArraySizes, enc, out)
	}
	enc.ExitAggregate()
}

// InitDefaultUniformBlock lays out a stage's default uniform block.
// It returns the placement of every leaf and the block size in bytes.
// Opaque uniforms take no space, so a list of only samplers and images
// yields size 0. InOut variables are not part of the block.
func InitDefaultUniformBlock(vars []Variable) (BlockLayoutMap, int) {
	out := make(BlockLayoutMap)
	if len(vars) == 0 {
		return out, 0
	}
	block := vars
	for i := range vars {
		if vars[i].InOut {
			block = make([]Variable, 0, len(vars))
			for j := range vars {
				if !vars[j].InOut {
					block = append(block, vars[j])
				}
			}
			break
		}
	}
	enc := NewDefaultBlockEncoder()
	GetUniformBlockInfo(block, "", enc, out)
	return out, enc.BlockSize()
}
