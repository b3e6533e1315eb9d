// Package glprog implements the default-uniform and pipeline warm-up core of
// a GL program object running on a WebGPU HAL.
//
// # Overview
//
// A Program links a set of shader stages, lays out every stage's loose
// ("default block") uniforms in std140 order, and serves the typed
// glUniform* / glGetUniform* entry points against those byte images. The
// images are uploaded per stage as uniform buffers, and only stages whose
// data changed since the last upload are written.
//
// At link time the program can also build one pipeline with default render
// state so the driver's shader cache is warm before the first real draw.
//
// # Quick Start
//
//	vs, _ := shader.Compile(shader.Vertex, vertexWGSL)
//	fs, _ := shader.Compile(shader.Fragment, fragmentWGSL)
//
//	cache := pipeline.NewCache(device, 0)
//	prog := glprog.New(
//	    glprog.WithDevice(device),
//	    glprog.WithPipelineCache(cache),
//	)
//	prog.Attach(vs)
//	prog.Attach(fs)
//	if err := prog.Link(); err != nil {
//	    return err
//	}
//
//	loc := prog.UniformLocation("color")
//	prog.SetUniform4fv(loc, 1, []float32{1, 0, 0, 1})
//	prog.Upload(queue)
//
// # Packages
//
//   - gltype: the GL variable type table
//   - layout: std140 block layout
//   - shader: stage declarations, WGSL compilation and uniform reflection
//   - pipeline: pipeline state descriptors and the shared pipeline cache
//   - cache: the sharded LRU backing the pipeline cache
//
// # Concurrency
//
// A Program is not safe for concurrent mutation. pipeline.Cache is safe for
// concurrent use and may be shared by any number of programs.
package glprog
