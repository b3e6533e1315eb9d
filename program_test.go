package glprog

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/glprog/gltype"
	"github.com/gogpu/glprog/layout"
	"github.com/gogpu/glprog/pipeline"
	"github.com/gogpu/glprog/shader"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// withBinary gives s a placeholder binary so a shader module is created.
func withBinary(s *shader.Shader) *shader.Shader {
	s.SPIRV = []uint32{0x07230203, 0x00010300, 0, 1, 0}
	return s
}

// fakeCache records requests without building anything.
type fakeCache struct {
	warmUps []pipeline.Key
	demands []pipeline.Key
	forgets []uint64
	err     error
}

func (c *fakeCache) WarmUp(key pipeline.Key, _ pipeline.BuildFunc) (hal.RenderPipeline, error) {
	c.warmUps = append(c.warmUps, key)
	return nil, c.err
}

func (c *fakeCache) Demand(key pipeline.Key, _ pipeline.BuildFunc) (hal.RenderPipeline, error) {
	c.demands = append(c.demands, key)
	return nil, c.err
}

func (c *fakeCache) Forget(program uint64) int {
	c.forgets = append(c.forgets, program)
	return 0
}

func lightStruct() layout.Variable {
	return layout.NewStruct("lights", []layout.Variable{
		layout.NewVariable("pos", gltype.FloatVec3),
		layout.NewVariable("intensity", gltype.Float),
	}, 2)
}

// sampleStages is a vertex and fragment pair sharing "offset".
//
// Locations: mvp 0, offset 1, weights 2-5, color 6, tex 7, enabled 8,
// lights[0].pos 9, lights[0].intensity 10, lights[1].pos 11,
// lights[1].intensity 12.
func sampleStages() (*shader.Shader, *shader.Shader) {
	vs := shader.New(shader.Vertex, "vs_main",
		layout.NewVariable("mvp", gltype.FloatMat4),
		layout.NewVariable("offset", gltype.FloatVec2),
		layout.NewVariable("weights", gltype.Float, 4),
	)
	fs := shader.New(shader.Fragment, "fs_main",
		layout.NewVariable("color", gltype.FloatVec4),
		layout.NewVariable("offset", gltype.FloatVec2),
		layout.NewVariable("tex", gltype.Sampler2D),
		layout.NewVariable("enabled", gltype.Bool),
		lightStruct(),
	).WithOutputs(1)
	return vs, fs
}

func linkedSample(t *testing.T, opts ...Option) *Program {
	t.Helper()
	vs, fs := sampleStages()
	p := New(opts...)
	p.Attach(vs)
	p.Attach(fs)
	require.NoError(t, p.Link())
	return p
}

func TestLinkLocations(t *testing.T) {
	p := linkedSample(t)

	tests := []struct {
		name string
		want int
	}{
		{"mvp", 0},
		{"offset", 1},
		{"weights", 2},
		{"weights[0]", 2},
		{"weights[3]", 5},
		{"weights[4]", -1},
		{"color", 6},
		{"tex", 7},
		{"enabled", 8},
		{"lights[0].pos", 9},
		{"lights[1].intensity", 12},
		{"lights", -1},
		{"missing", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.UniformLocation(tt.name))
		})
	}
	assert.Len(t, p.res.locations, 13)
	assert.Equal(t, shader.MaskOf(shader.Vertex, shader.Fragment), p.LinkedStages())
}

func TestLinkDefaultBlocks(t *testing.T) {
	p := linkedSample(t)

	vs := p.DefaultBlock(shader.Vertex)
	fs := p.DefaultBlock(shader.Fragment)
	require.NotNil(t, vs)
	require.NotNil(t, fs)
	assert.Nil(t, p.DefaultBlock(shader.Geometry))

	assert.Equal(t, 144, vs.Size())
	assert.Equal(t, 64, fs.Size())
	assert.Len(t, vs.UniformLayout, 13)
	assert.Len(t, fs.UniformLayout, 13)

	// mvp lives only in the vertex block.
	assert.Equal(t, 0, vs.Info(0).Offset)
	assert.Equal(t, 16, vs.Info(0).MatrixStride)
	assert.True(t, fs.Info(0).IsUnused())

	// offset is shared at independent offsets.
	assert.Equal(t, 64, vs.Info(1).Offset)
	assert.Equal(t, 16, fs.Info(1).Offset)

	// Every element location of weights points at the array base.
	for loc := 2; loc <= 5; loc++ {
		assert.Equal(t, 80, vs.Info(loc).Offset)
		assert.Equal(t, 16, vs.Info(loc).ArrayStride)
	}

	// Samplers have no storage anywhere.
	assert.True(t, vs.Info(7).IsUnused())
	assert.True(t, fs.Info(7).IsUnused())

	assert.Equal(t, 24, fs.Info(8).Offset)
	assert.Equal(t, 32, fs.Info(9).Offset)
	assert.Equal(t, 44, fs.Info(10).Offset)
	assert.Equal(t, 48, fs.Info(11).Offset)
	assert.Equal(t, 60, fs.Info(12).Offset)

	assert.Equal(t, make([]byte, 144), vs.UniformData)
}

func TestLinkMarksNonEmptyBlocksDirty(t *testing.T) {
	p := New()
	p.Attach(shader.New(shader.Vertex, "main", layout.NewVariable("x", gltype.Float)))
	p.Attach(shader.New(shader.Fragment, "main", layout.NewVariable("tex", gltype.Sampler2D)))
	require.NoError(t, p.Link())

	assert.Equal(t, 0, p.DefaultBlock(shader.Fragment).Size())
	assert.Equal(t, shader.MaskOf(shader.Vertex), p.DirtyStages())
}

func TestLinkNoStages(t *testing.T) {
	p := New()
	err := p.Link()
	assert.ErrorIs(t, err, ErrNoStages)
	assert.False(t, p.IsLinked())
}

func TestLinkUniformMismatch(t *testing.T) {
	p := New()
	p.Attach(shader.New(shader.Vertex, "main", layout.NewVariable("x", gltype.Float)))
	p.Attach(shader.New(shader.Fragment, "main", layout.NewVariable("x", gltype.Int)))

	err := p.Link()
	assert.ErrorIs(t, err, ErrUniformMismatch)
	assert.False(t, p.IsLinked())
	assert.ErrorIs(t, p.SetUniform1fv(0, 1, []float32{1}), ErrNotLinked)
	assert.Equal(t, -1, p.UniformLocation("x"))
}

func TestLinkExplicitLocations(t *testing.T) {
	a := layout.NewVariable("a", gltype.Float)
	a.Location = 3
	d := layout.NewVariable("d", gltype.Float)
	d.Location = 0
	d.Active = false
	unusedNoLocation := layout.NewVariable("unused", gltype.Float)
	unusedNoLocation.Active = false

	p := New()
	p.Attach(shader.New(shader.Vertex, "main",
		a,
		layout.NewVariable("b", gltype.FloatVec4, 2),
		layout.NewVariable("c", gltype.Float),
		d,
		unusedNoLocation,
	))
	require.NoError(t, p.Link())

	assert.Equal(t, 3, p.UniformLocation("a"))
	assert.Equal(t, 1, p.UniformLocation("b"))
	assert.Equal(t, 2, p.UniformLocation("b[1]"))
	assert.Equal(t, 4, p.UniformLocation("c"))
	assert.Equal(t, -1, p.UniformLocation("d"))
	assert.Equal(t, -1, p.UniformLocation("unused"))

	require.Len(t, p.res.locations, 5)
	assert.True(t, p.res.locations[0].Ignored)
	assert.False(t, p.res.locations[0].Used())

	// The inactive uniform still takes block storage.
	vs := p.DefaultBlock(shader.Vertex)
	assert.True(t, vs.Info(0).IsUnused())
	assert.Equal(t, 0, vs.Info(3).Offset)

	// Writing an ignored location is a no-op; reading it is an error.
	assert.NoError(t, p.SetUniform1fv(0, 1, []float32{1}))
	assert.ErrorIs(t, p.GetUniformfv(0, make([]float32, 1)), ErrInvalidLocation)
}

func TestLinkLocationConflict(t *testing.T) {
	a := layout.NewVariable("a", gltype.FloatVec4, 2)
	a.Location = 0
	b := layout.NewVariable("b", gltype.Float)
	b.Location = 1

	p := New()
	p.Attach(shader.New(shader.Vertex, "main", a, b))
	assert.ErrorIs(t, p.Link(), ErrLocationConflict)

	v := layout.NewVariable("x", gltype.Float)
	v.Location = 0
	f := v
	f.Location = 2
	p = New()
	p.Attach(shader.New(shader.Vertex, "main", v))
	p.Attach(shader.New(shader.Fragment, "main", f))
	assert.ErrorIs(t, p.Link(), ErrLocationConflict)
}

func TestLinkArrayOfArrays(t *testing.T) {
	p := New()
	p.Attach(shader.New(shader.Vertex, "main", layout.NewVariable("grid", gltype.Float, 2, 3)))
	require.NoError(t, p.Link())

	assert.Equal(t, 0, p.UniformLocation("grid[0]"))
	assert.Equal(t, 3, p.UniformLocation("grid[1]"))
	assert.Equal(t, 5, p.UniformLocation("grid[1][2]"))

	vs := p.DefaultBlock(shader.Vertex)
	assert.Equal(t, 96, vs.Size())
	assert.Equal(t, 48, vs.Info(3).Offset)

	require.NoError(t, p.SetUniform1fv(p.UniformLocation("grid[1][2]"), 1, []float32{7}))
	got := make([]float32, 1)
	require.NoError(t, p.GetUniformfv(5, got))
	assert.Equal(t, float32(7), got[0])
}

func TestLinkConsistencyFault(t *testing.T) {
	declared := []*shader.Shader{shader.New(shader.Vertex, "main", layout.NewVariable("a", gltype.Float))}
	other := []*shader.Shader{shader.New(shader.Vertex, "main", layout.NewVariable("b", gltype.Float))}

	res, err := linkResources(other)
	require.NoError(t, err)
	_, _, err = initDefaultUniformBlocks(declared, res)
	assert.ErrorIs(t, err, ErrLinkConsistency)
}

func TestLinkInOutTakesNoStorage(t *testing.T) {
	last := layout.NewVariable("lastColor", gltype.FloatVec4)
	last.InOut = true

	p := New()
	p.Attach(shader.New(shader.Fragment, "main", last, layout.NewVariable("k", gltype.Float)))
	require.NoError(t, p.Link())

	loc := p.UniformLocation("lastColor")
	require.GreaterOrEqual(t, loc, 0)
	fs := p.DefaultBlock(shader.Fragment)
	assert.True(t, fs.Info(loc).IsUnused())
	assert.Equal(t, 4, fs.Size())
}

func TestRelinkResetsState(t *testing.T) {
	p := linkedSample(t)
	first := p.Serial()
	loc := p.UniformLocation("color")
	require.NoError(t, p.SetUniform4fv(loc, 1, []float32{1, 2, 3, 4}))

	require.NoError(t, p.Link())
	assert.Greater(t, p.Serial(), first)
	got := make([]float32, 4)
	require.NoError(t, p.GetUniformfv(loc, got))
	assert.Equal(t, []float32{0, 0, 0, 0}, got)

	p.Reset()
	assert.False(t, p.IsLinked())
	assert.Nil(t, p.DefaultBlock(shader.Fragment))
	assert.ErrorIs(t, p.SetUniform4fv(loc, 1, got), ErrNotLinked)
	assert.NotNil(t, p.Shader(shader.Vertex), "Reset keeps attached shaders")

	p.Destroy()
	assert.Nil(t, p.Shader(shader.Vertex))
	assert.ErrorIs(t, p.Link(), ErrNoStages)
}

func TestProgramHooks(t *testing.T) {
	p := New()
	p.SetSeparable(true)
	p.SetBinaryRetrievableHint(true)
	assert.True(t, p.Separable())
	assert.True(t, p.BinaryRetrievableHint())
	assert.True(t, p.Validate())

	q := New()
	assert.NotEqual(t, p.ID(), q.ID())
}

func TestLinkWithDeviceCreatesLayouts(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	vs, fs := sampleStages()
	p := New(WithDevice(device))
	p.Attach(withBinary(vs))
	p.Attach(withBinary(fs))
	require.NoError(t, p.Link())

	assert.NotNil(t, p.BindGroupLayout())
	assert.NotNil(t, p.exec.pipelineLayout)
	assert.NotNil(t, p.exec.modules[shader.Vertex])
	assert.NotNil(t, p.exec.modules[shader.Fragment])
	assert.Equal(t, uint32(0), p.exec.bindings[shader.Vertex])
	assert.Equal(t, uint32(1), p.exec.bindings[shader.Fragment])

	p.Destroy()
	assert.Nil(t, p.BindGroupLayout())
}

func TestDrawPipeline(t *testing.T) {
	p := New()
	_, err := p.DrawPipeline(pipeline.Desc{})
	assert.ErrorIs(t, err, ErrNotLinked)

	p = linkedSample(t)
	_, err = p.DrawPipeline(pipeline.Desc{})
	assert.ErrorIs(t, err, ErrNoDevice)

	device, _, cleanup := createNoopDevice(t)
	defer cleanup()
	cache := &fakeCache{}
	p = linkedSample(t, WithDevice(device), WithPipelineCache(cache),
		WithFeatures(Features{CreatePipelineDuringLink: false}))

	var d pipeline.Desc
	d.InitDefaults()
	_, err = p.DrawPipeline(d)
	require.NoError(t, err)
	require.Len(t, cache.demands, 1)
	assert.Equal(t, pipeline.Key{Program: p.Serial(), Desc: d}, cache.demands[0])
	assert.Empty(t, cache.warmUps)
}

func TestDrawPipelineWithoutCache(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	vs, fs := sampleStages()
	p := New(WithDevice(device))
	p.Attach(withBinary(vs))
	p.Attach(withBinary(fs))
	require.NoError(t, p.Link())

	var d pipeline.Desc
	d.InitDefaults()
	d.SetRenderPassColorAttachmentFormat(0, gputypes.TextureFormatRGBA8Unorm)
	rp, err := p.DrawPipeline(d)
	require.NoError(t, err)
	assert.NotNil(t, rp)

	missing := New(WithDevice(device))
	missing.Attach(shader.New(shader.Vertex, "main"))
	require.NoError(t, missing.Link())
	_, err = missing.DrawPipeline(d)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotLinked))
}
