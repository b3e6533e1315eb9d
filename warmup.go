package glprog

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/glprog/pipeline"
	"github.com/gogpu/glprog/shader"
)

// maxWarmUpOutputs is the largest fragment output count warm-up handles.
const maxWarmUpOutputs = 3

// warmUpFormat is the attachment format assumed for every output.
const warmUpFormat = gputypes.TextureFormatRGBA8Unorm

// warmUpDesc returns the render state warm-up builds for, or false when the
// program is not warmed up.
func (p *Program) warmUpDesc() (pipeline.Desc, bool) {
	var d pipeline.Desc
	exec := p.exec

	switch {
	case p.separable:
		p.log().Debug("glprog: warm-up skipped", "program", p.id, "reason", "separable")
		return d, false
	case exec.linked.Has(shader.Compute):
		p.log().Debug("glprog: warm-up skipped", "program", p.id, "reason", "compute")
		return d, false
	case exec.outputs > maxWarmUpOutputs:
		p.log().Debug("glprog: warm-up skipped", "program", p.id, "reason", "outputs", "outputs", exec.outputs)
		return d, false
	}

	d.InitDefaults()
	d.SetRenderPassSampleCount(1)
	for i := 0; i < exec.outputs; i++ {
		d.SetRenderPassColorAttachmentFormat(i, warmUpFormat)
	}
	if exec.linked.Has(shader.TessControl) || exec.linked.Has(shader.TessEvaluation) {
		d.SetTopology(pipeline.TopologyPatches)
	} else {
		d.SetTopology(pipeline.TopologyTriangleStrip)
	}
	if !d.Topology.Buildable() {
		// Patch lists have no WebGPU topology; a request could only fail.
		p.log().Debug("glprog: warm-up skipped", "program", p.id, "reason", "tessellation", "topology", d.Topology)
		return d, false
	}
	return d, true
}

func (p *Program) canWarmUp() bool {
	return p.cfg.cache != nil && p.cfg.device != nil
}

// warmUpOnLink runs the synchronous link-time warm-up.
func (p *Program) warmUpOnLink() error {
	if !p.cfg.features.CreatePipelineDuringLink || !p.canWarmUp() {
		return nil
	}
	desc, ok := p.warmUpDesc()
	if !ok {
		return nil
	}
	_, err := p.cfg.cache.WarmUp(p.pipelineKey(desc), p.buildFunc(desc))
	if err == nil {
		return nil
	}
	if !p.cfg.features.WarmUpFailureFatal {
		p.log().Warn("glprog: warm-up failed", "program", p.id, "err", err)
		return nil
	}
	return fmt.Errorf("%w: %w", ErrWarmUp, err)
}

// WarmUpAsync issues the warm-up request on a worker goroutine and returns
// a function that waits for it. Call it on a linked program whose
// Features.CreatePipelineDuringLink is off, and wait before the first draw.
//
// ctx is checked only before the request is issued; a build in progress is
// not cancelled. The returned function reports the warm-up error wrapped in
// ErrWarmUp regardless of Features.WarmUpFailureFatal.
func (p *Program) WarmUpAsync(ctx context.Context) (wait func() error) {
	if !p.linked {
		return func() error { return ErrNotLinked }
	}
	if !p.canWarmUp() {
		return func() error { return nil }
	}
	desc, ok := p.warmUpDesc()
	if !ok {
		return func() error { return nil }
	}

	cache := p.cfg.cache
	key, build := p.pipelineKey(desc), p.buildFunc(desc)

	var g errgroup.Group
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := cache.WarmUp(key, build); err != nil {
			return fmt.Errorf("%w: %w", ErrWarmUp, err)
		}
		return nil
	})
	return g.Wait
}
