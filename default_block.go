package glprog

import (
	"fmt"

	"github.com/gogpu/glprog/layout"
	"github.com/gogpu/glprog/shader"
)

// DefaultUniformBlock is one stage's default uniform block: its std140 byte
// image and the placement of every uniform location inside it.
type DefaultUniformBlock struct {
	// UniformData is the block image. Its length is the block size.
	UniformData []byte
	// UniformLayout is indexed by uniform location. Locations the stage
	// does not store hold layout.Unused.
	UniformLayout []layout.BlockMemberInfo
}

// Size returns the block size in bytes.
func (b *DefaultUniformBlock) Size() int { return len(b.UniformData) }

// Info returns the placement of location, or layout.Unused when the stage
// does not store it.
func (b *DefaultUniformBlock) Info(location int) layout.BlockMemberInfo {
	if location < 0 || location >= len(b.UniformLayout) {
		return layout.Unused
	}
	return b.UniformLayout[location]
}

// stageBlocks holds one block per linked stage, nil elsewhere.
type stageBlocks [shader.StageCount]*DefaultUniformBlock

// initDefaultUniformBlocks lays out every stage's default block and fills
// the per-location tables from res. It returns the blocks and the stages
// with non-empty storage.
func initDefaultUniformBlocks(stages []*shader.Shader, res *resources) (stageBlocks, shader.Mask, error) {
	var (
		blocks  stageBlocks
		maps    [shader.StageCount]layout.BlockLayoutMap
		sizes   [shader.StageCount]int
		present shader.Mask
	)
	for _, s := range stages {
		maps[s.Stage], sizes[s.Stage] = layout.InitDefaultUniformBlock(s.Uniforms)
		blocks[s.Stage] = &DefaultUniformBlock{
			UniformLayout: make([]layout.BlockMemberInfo, 0, len(res.locations)),
		}
		present = present.With(s.Stage)
		Logger().Debug("glprog: default block", "stage", s.Stage, "size", sizes[s.Stage])
	}

	for location, loc := range res.locations {
		if !loc.Used() {
			for _, st := range present.Stages() {
				blocks[st].UniformLayout = append(blocks[st].UniformLayout, layout.Unused)
			}
			continue
		}

		u := &res.uniforms[loc.Index]
		name := ""
		if u.DefaultBlock && !u.IsSampler() && !u.IsImage() && !u.InOut {
			name = u.Name
			if u.IsArray() {
				name = layout.StripLastArrayIndex(name)
			}
		}

		found := false
		for _, st := range present.Stages() {
			info := layout.Unused
			if name != "" {
				if m, ok := maps[st][name]; ok {
					info = m
					found = true
				}
			}
			blocks[st].UniformLayout = append(blocks[st].UniformLayout, info)
		}
		if name != "" && !found {
			return stageBlocks{}, 0, fmt.Errorf("%w: %q at location %d", ErrLinkConsistency, u.Name, location)
		}
	}

	return blocks, resizeUniformBlockMemory(&blocks, sizes), nil
}

// resizeUniformBlockMemory allocates every block's zero-filled image and
// returns the stages whose blocks need an initial upload.
func resizeUniformBlockMemory(blocks *stageBlocks, sizes [shader.StageCount]int) shader.Mask {
	var dirty shader.Mask
	for st, b := range blocks {
		if b == nil {
			continue
		}
		b.UniformData = make([]byte, sizes[st])
		if sizes[st] > 0 {
			dirty = dirty.With(shader.Stage(st))
		}
	}
	return dirty
}
