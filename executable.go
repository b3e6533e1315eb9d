package glprog

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glprog/shader"
)

// executable is the linked, runnable state of a program: the default
// blocks with their dirty set, and the GPU objects built from them.
type executable struct {
	blocks      stageBlocks
	linked      shader.Mask
	dirty       shader.Mask
	shaders     []*shader.Shader
	entryPoints [shader.StageCount]string
	// outputs is the fragment output count.
	outputs int

	device         hal.Device
	modules        [shader.StageCount]hal.ShaderModule
	bindings       [shader.StageCount]uint32
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	buffers        [shader.StageCount]hal.Buffer
}

// stageVisibility maps a stage to the WebGPU stage it runs in. Stages
// without a WebGPU counterpart run ahead of rasterization.
func stageVisibility(s shader.Stage) gputypes.ShaderStages {
	switch s {
	case shader.Fragment:
		return gputypes.ShaderStageFragment
	case shader.Compute:
		return gputypes.ShaderStageCompute
	default:
		return gputypes.ShaderStageVertex
	}
}

// createLayouts builds one uniform binding per stage with a non-empty
// block, at the binding Link assigned, then the pipeline layout and one
// shader module per stage binary.
// On error the caller releases whatever was created through destroy.
func (e *executable) createLayouts(device hal.Device, stages []*shader.Shader) error {
	e.device = device

	var entries []gputypes.BindGroupLayoutEntry
	for _, s := range stages {
		b := e.blocks[s.Stage]
		if b == nil || b.Size() == 0 {
			continue
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    e.bindings[s.Stage],
			Visibility: stageVisibility(s.Stage),
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: uint64(b.Size()),
			},
		})
	}

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "glprog_default_uniforms",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create default uniform bind group layout: %w", err)
	}
	e.bindLayout = bindLayout

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glprog_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	e.pipelineLayout = pipelineLayout

	for _, s := range stages {
		if len(s.SPIRV) == 0 {
			continue
		}
		module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  "glprog_" + s.Stage.String(),
			Source: hal.ShaderSource{SPIRV: s.SPIRV},
		})
		if err != nil {
			return fmt.Errorf("create %s shader module: %w", s.Stage, err)
		}
		e.modules[s.Stage] = module
	}
	return nil
}

// assignBindings picks the group 0 binding of every non-empty default
// block. A binding the stage binary declares is kept as is; the others get
// the lowest binding no block or opaque resource uses.
func assignBindings(blocks stageBlocks, stages []*shader.Shader) ([shader.StageCount]uint32, error) {
	var out [shader.StageCount]uint32
	taken := make(map[uint32]string)
	for _, s := range stages {
		for _, rb := range s.ResourceBindings {
			if rb.Group == 0 {
				taken[rb.Binding] = s.Stage.String() + " resource"
			}
		}
	}

	hasBlock := func(s *shader.Shader) bool {
		b := blocks[s.Stage]
		return b != nil && b.Size() > 0
	}
	for _, s := range stages {
		if !hasBlock(s) || s.UniformBinding == nil {
			continue
		}
		ub := *s.UniformBinding
		if ub.Group != 0 {
			return out, fmt.Errorf("%w: %s block in group %d", ErrBindingConflict, s.Stage, ub.Group)
		}
		if owner, ok := taken[ub.Binding]; ok {
			return out, fmt.Errorf("%w: %s block at binding %d used by %s", ErrBindingConflict, s.Stage, ub.Binding, owner)
		}
		taken[ub.Binding] = s.Stage.String() + " block"
		out[s.Stage] = ub.Binding
	}

	var next uint32
	for _, s := range stages {
		if !hasBlock(s) || s.UniformBinding != nil {
			continue
		}
		for taken[next] != "" {
			next++
		}
		taken[next] = s.Stage.String() + " block"
		out[s.Stage] = next
	}
	return out, nil
}

// upload writes every dirty, non-empty block to its uniform buffer,
// creating the buffer on first use.
func (e *executable) upload(queue hal.Queue) error {
	for _, st := range e.dirty.Stages() {
		b := e.blocks[st]
		if b == nil || b.Size() == 0 {
			e.dirty = e.dirty.Without(st)
			continue
		}
		if e.buffers[st] == nil {
			if e.device == nil {
				return ErrNoDevice
			}
			buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
				Label: "glprog_" + st.String() + "_uniforms",
				Size:  uint64(b.Size()),
				Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("create %s uniform buffer: %w", st, err)
			}
			e.buffers[st] = buf
		}
		if err := queue.WriteBuffer(e.buffers[st], 0, b.UniformData); err != nil {
			return fmt.Errorf("upload %s uniforms: %w", st, err)
		}
		e.dirty = e.dirty.Without(st)
	}
	return nil
}

// destroy releases every GPU object.
func (e *executable) destroy() {
	if e.device == nil {
		return
	}
	for i, buf := range e.buffers {
		if buf != nil {
			e.device.DestroyBuffer(buf)
			e.buffers[i] = nil
		}
	}
	for i, m := range e.modules {
		if m != nil {
			e.device.DestroyShaderModule(m)
			e.modules[i] = nil
		}
	}
	if e.pipelineLayout != nil {
		e.device.DestroyPipelineLayout(e.pipelineLayout)
		e.pipelineLayout = nil
	}
	if e.bindLayout != nil {
		e.device.DestroyBindGroupLayout(e.bindLayout)
		e.bindLayout = nil
	}
}
