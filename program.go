package glprog

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glprog/pipeline"
	"github.com/gogpu/glprog/shader"
)

// PipelineCache builds and shares pipelines. pipeline.Cache implements it.
type PipelineCache interface {
	// WarmUp returns the pipeline for key on behalf of link-time warm-up.
	WarmUp(key pipeline.Key, build pipeline.BuildFunc) (hal.RenderPipeline, error)
	// Demand returns the pipeline for key on behalf of a draw.
	Demand(key pipeline.Key, build pipeline.BuildFunc) (hal.RenderPipeline, error)
	// Forget drops the pipelines built for a link serial.
	Forget(program uint64) int
}

var (
	programIDs  atomic.Uint64
	linkSerials atomic.Uint64
)

// Program is a GL program object: a set of shader stages, their linked
// uniform table and one default uniform block per stage.
//
// Program is not safe for concurrent use.
type Program struct {
	id     uint64
	serial uint64
	cfg    config

	stages            [shader.StageCount]*shader.Shader
	separable         bool
	binaryRetrievable bool

	linked bool
	res    *resources
	exec   *executable
	// textureUnits holds the units assigned to sampler uniforms, by
	// uniform index.
	textureUnits map[int][]int32
}

// New creates an empty, unlinked program.
func New(opts ...Option) *Program {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Program{
		id:  programIDs.Add(1),
		cfg: cfg,
	}
}

// ID returns the program's process-unique identifier.
func (p *Program) ID() uint64 { return p.id }

// Serial identifies the current link. Every Link, successful or not,
// takes a new serial, and pipelines are cached per serial.
func (p *Program) Serial() uint64 { return p.serial }

// Attach adds s to the program, replacing any shader of the same stage.
// The change takes effect at the next Link.
func (p *Program) Attach(s *shader.Shader) {
	p.stages[s.Stage] = s
}

// Detach removes the shader of stage.
func (p *Program) Detach(stage shader.Stage) {
	p.stages[stage] = nil
}

// Shader returns the attached shader of stage, or nil.
func (p *Program) Shader(stage shader.Stage) *shader.Shader {
	return p.stages[stage]
}

// SetSeparable records the separable flag. Separable programs are not
// warmed up.
func (p *Program) SetSeparable(separable bool) { p.separable = separable }

// Separable reports the separable flag.
func (p *Program) Separable() bool { return p.separable }

// SetBinaryRetrievableHint records the hint. It has no other effect.
func (p *Program) SetBinaryRetrievableHint(retrievable bool) { p.binaryRetrievable = retrievable }

// BinaryRetrievableHint reports the recorded hint.
func (p *Program) BinaryRetrievableHint() bool { return p.binaryRetrievable }

// Validate reports whether the program can execute in the current state.
// Nothing here can invalidate a linked program, so it always succeeds.
func (p *Program) Validate() bool { return true }

// IsLinked reports whether the last Link succeeded.
func (p *Program) IsLinked() bool { return p.linked }

// LinkedStages returns the stages of the last successful link.
func (p *Program) LinkedStages() shader.Mask {
	if !p.linked {
		return 0
	}
	return p.exec.linked
}

// Link links the attached stages.
//
// It merges and flattens the stages' uniforms, assigns locations, lays out
// every stage's default block, assigns each block its binding and, with a
// device, creates the pipeline layout and shader modules. If a pipeline
// cache and device are configured and Features.CreatePipelineDuringLink is
// set, it then warms up one pipeline. On any error the program is left reset and unlinked.
func (p *Program) Link() error {
	p.Reset()
	p.serial = linkSerials.Add(1)

	stages := p.attached()
	if len(stages) == 0 {
		return fmt.Errorf("glprog: link: %w", ErrNoStages)
	}

	res, err := linkResources(stages)
	if err != nil {
		return fmt.Errorf("glprog: link: %w", err)
	}
	blocks, dirty, err := initDefaultUniformBlocks(stages, res)
	if err != nil {
		return fmt.Errorf("glprog: link: %w", err)
	}

	bindings, err := assignBindings(blocks, stages)
	if err != nil {
		return fmt.Errorf("glprog: link: %w", err)
	}

	exec := &executable{blocks: blocks, dirty: dirty, shaders: stages, bindings: bindings}
	for _, s := range stages {
		exec.linked = exec.linked.With(s.Stage)
		exec.entryPoints[s.Stage] = s.EntryPoint
		if s.Stage == shader.Fragment {
			exec.outputs = s.OutputCount
		}
	}
	p.res, p.exec = res, exec
	p.textureUnits = make(map[int][]int32)

	if p.cfg.device != nil {
		if err := exec.createLayouts(p.cfg.device, stages); err != nil {
			p.Reset()
			return fmt.Errorf("glprog: link: %w", err)
		}
	}
	p.linked = true

	if err := p.warmUpOnLink(); err != nil {
		p.Reset()
		return fmt.Errorf("glprog: link: %w", err)
	}

	p.log().Debug("glprog: linked",
		"program", p.id,
		"serial", p.serial,
		"stages", exec.linked,
		"uniforms", len(res.uniforms),
		"locations", len(res.locations))
	return nil
}

// Reset drops every link product: uniform table, default blocks, GPU
// objects and the cached pipelines of the current serial. The attached
// shaders and flags are kept.
func (p *Program) Reset() {
	if p.exec != nil {
		if p.cfg.cache != nil {
			p.cfg.cache.Forget(p.serial)
		}
		p.exec.destroy()
	}
	p.linked = false
	p.res = nil
	p.exec = nil
	p.textureUnits = nil
}

// Destroy resets the program and detaches every shader.
func (p *Program) Destroy() {
	p.Reset()
	p.stages = [shader.StageCount]*shader.Shader{}
}

// UniformLocation returns the location of the named uniform, or -1.
// Array uniforms answer to "a", "a[0]" and "a[n]".
func (p *Program) UniformLocation(name string) int {
	if !p.linked {
		return -1
	}
	return p.res.location(name)
}

// DefaultBlock returns the default uniform block of a linked stage, or nil.
func (p *Program) DefaultBlock(stage shader.Stage) *DefaultUniformBlock {
	if !p.linked {
		return nil
	}
	return p.exec.blocks[stage]
}

// DirtyStages returns the stages whose default blocks changed since the
// last upload.
func (p *Program) DirtyStages() shader.Mask {
	if !p.linked {
		return 0
	}
	return p.exec.dirty
}

// ClearDirty marks every block as uploaded.
func (p *Program) ClearDirty() {
	if p.linked {
		p.exec.dirty = 0
	}
}

// Upload writes every dirty default block to its uniform buffer.
func (p *Program) Upload(queue hal.Queue) error {
	if !p.linked {
		return ErrNotLinked
	}
	return p.exec.upload(queue)
}

// UniformBuffer returns the uniform buffer of stage and its binding in the
// default uniform bind group. The buffer exists after the first Upload of a
// non-empty block.
func (p *Program) UniformBuffer(stage shader.Stage) (hal.Buffer, uint32) {
	if !p.linked {
		return nil, 0
	}
	return p.exec.buffers[stage], p.exec.bindings[stage]
}

// BindGroupLayout returns the layout of the default uniform bind group.
func (p *Program) BindGroupLayout() hal.BindGroupLayout {
	if !p.linked {
		return nil
	}
	return p.exec.bindLayout
}

// DrawPipeline returns the pipeline for desc, built through the pipeline
// cache. Without a cache the pipeline is built directly and the caller
// owns it.
func (p *Program) DrawPipeline(desc pipeline.Desc) (hal.RenderPipeline, error) {
	if !p.linked {
		return nil, ErrNotLinked
	}
	if p.cfg.device == nil {
		return nil, ErrNoDevice
	}
	build := p.buildFunc(desc)
	if p.cfg.cache == nil {
		return build()
	}
	return p.cfg.cache.Demand(p.pipelineKey(desc), build)
}

func (p *Program) pipelineKey(desc pipeline.Desc) pipeline.Key {
	return pipeline.Key{Program: p.serial, Desc: desc}
}

// buildFunc captures everything the build needs so it can run on another
// goroutine.
func (p *Program) buildFunc(desc pipeline.Desc) pipeline.BuildFunc {
	device := p.cfg.device
	layout := p.exec.pipelineLayout
	label := fmt.Sprintf("glprog_%d_%d", p.id, p.serial)
	vertex := pipeline.Stage{Module: p.exec.modules[shader.Vertex], EntryPoint: p.exec.entryPoints[shader.Vertex]}
	fragment := pipeline.Stage{Module: p.exec.modules[shader.Fragment], EntryPoint: p.exec.entryPoints[shader.Fragment]}

	return func() (hal.RenderPipeline, error) {
		if vertex.Module == nil {
			return nil, fmt.Errorf("glprog: vertex stage has no shader module")
		}
		hd, err := desc.HAL(label, layout, vertex, fragment)
		if err != nil {
			return nil, err
		}
		return device.CreateRenderPipeline(hd)
	}
}

// attached returns the attached shaders in stage order.
func (p *Program) attached() []*shader.Shader {
	var out []*shader.Shader
	for _, s := range p.stages {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (p *Program) log() *slog.Logger {
	if p.cfg.logger != nil {
		return p.cfg.logger
	}
	return Logger()
}
