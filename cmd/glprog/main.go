// Command glprog compiles WGSL stages, links them into a program and prints
// the uniform locations and default block layouts.
//
// Usage:
//
//	glprog -vs shader.wgsl -fs shader.wgsl [-features features.toml] [-save program.toml]
//	glprog -load program.toml
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/glprog"
	"github.com/gogpu/glprog/layout"
	"github.com/gogpu/glprog/pipeline"
	"github.com/gogpu/glprog/shader"
)

func main() {
	var (
		vsPath       = flag.String("vs", "", "WGSL file with the vertex entry point")
		fsPath       = flag.String("fs", "", "WGSL file with the fragment entry point")
		csPath       = flag.String("cs", "", "WGSL file with the compute entry point")
		featuresPath = flag.String("features", "", "TOML file with program features")
		loadPath     = flag.String("load", "", "load a saved program instead of compiling")
		savePath     = flag.String("save", "", "write the linked program to this file")
		gpu          = flag.Bool("noop", false, "link against the noop HAL device and warm up pipelines")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "glprog",
	})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	glprog.SetLogger(slog.New(logger))

	if err := run(logger, options{
		vs: *vsPath, fs: *fsPath, cs: *csPath,
		features: *featuresPath,
		load:     *loadPath,
		save:     *savePath,
		gpu:      *gpu,
	}); err != nil {
		logger.Fatal("failed", "err", err)
	}
}

type options struct {
	vs, fs, cs string
	features   string
	load, save string
	gpu        bool
}

func run(logger *log.Logger, o options) error {
	var opts []glprog.Option

	if o.features != "" {
		f, err := readFeatures(o.features)
		if err != nil {
			return err
		}
		opts = append(opts, glprog.WithFeatures(f))
	}

	var cache *pipeline.Cache
	if o.gpu {
		device, cleanup, err := openNoopDevice()
		if err != nil {
			return err
		}
		defer cleanup()
		cache = pipeline.NewCache(device, 0)
		defer cache.Close()
		opts = append(opts, glprog.WithDevice(device), glprog.WithPipelineCache(cache))
	}

	prog := glprog.New(opts...)
	defer prog.Destroy()

	if o.load != "" {
		f, err := os.Open(o.load)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := prog.Load(f); err != nil {
			return err
		}
	} else {
		if err := compileStages(prog, o); err != nil {
			return err
		}
		if err := prog.Link(); err != nil {
			return err
		}
	}
	logger.Info("linked", "stages", prog.LinkedStages(), "serial", prog.Serial())

	report(os.Stdout, prog)
	if cache != nil {
		s := cache.Stats()
		logger.Info("pipeline cache", "pipelines", cache.Len(), "warm_up_builds", s.WarmUpBuilds)
	}

	if o.save != "" {
		f, err := os.Create(o.save)
		if err != nil {
			return err
		}
		if err := prog.Save(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("saved", "path", o.save)
	}
	return nil
}

func readFeatures(path string) (glprog.Features, error) {
	f, err := os.Open(path)
	if err != nil {
		return glprog.Features{}, err
	}
	defer f.Close()
	return glprog.LoadFeatures(f)
}

func compileStages(prog *glprog.Program, o options) error {
	sources := []struct {
		stage shader.Stage
		path  string
	}{
		{shader.Vertex, o.vs},
		{shader.Fragment, o.fs},
		{shader.Compute, o.cs},
	}
	n := 0
	for _, src := range sources {
		if src.path == "" {
			continue
		}
		text, err := os.ReadFile(src.path)
		if err != nil {
			return err
		}
		s, err := shader.Compile(src.stage, string(text))
		if err != nil {
			return err
		}
		prog.Attach(s)
		n++
	}
	if n == 0 {
		return fmt.Errorf("no stages given; use -vs, -fs or -cs")
	}
	return nil
}

func openNoopDevice() (hal.Device, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, fmt.Errorf("noop: no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, err
	}
	return open.Device, func() {
		open.Device.Destroy()
		instance.Destroy()
	}, nil
}

// report prints every uniform leaf with its location and per-stage
// placement.
func report(w io.Writer, prog *glprog.Program) {
	stages := prog.LinkedStages().Stages()

	fmt.Fprintf(w, "%-32s %4s", "uniform", "loc")
	for _, st := range stages {
		fmt.Fprintf(w, " %16s", st)
	}
	fmt.Fprintln(w)

	seen := make(map[string]bool)
	for _, st := range stages {
		for _, v := range prog.Shader(st).Uniforms {
			for _, name := range leafNames(&v) {
				if seen[name] {
					continue
				}
				seen[name] = true
				loc := prog.UniformLocation(name)
				fmt.Fprintf(w, "%-32s %4d", name, loc)
				for _, s := range stages {
					fmt.Fprintf(w, " %16s", placement(prog.DefaultBlock(s), loc))
				}
				fmt.Fprintln(w)
			}
		}
	}

	for _, st := range stages {
		if b := prog.DefaultBlock(st); b != nil {
			fmt.Fprintf(w, "%s block: %d bytes\n", st, b.Size())
		}
	}
}

func placement(b *glprog.DefaultUniformBlock, loc int) string {
	if b == nil || loc < 0 {
		return "-"
	}
	info := b.Info(loc)
	if info.IsUnused() {
		return "-"
	}
	if info.MatrixStride > 0 {
		return fmt.Sprintf("@%d m%d", info.Offset, info.MatrixStride)
	}
	if info.ArrayStride > 0 {
		return fmt.Sprintf("@%d s%d", info.Offset, info.ArrayStride)
	}
	return fmt.Sprintf("@%d", info.Offset)
}

// leafNames returns the names a location can be queried by: the variable
// itself, or one name per struct field for every struct element.
func leafNames(v *layout.Variable) []string {
	if !v.IsStruct() {
		return []string{v.Name}
	}
	prefixes := []string{v.Name}
	for _, size := range v.ArraySizes {
		var next []string
		for _, p := range prefixes {
			for i := 0; i < size; i++ {
				next = append(next, layout.ElementName(p, i))
			}
		}
		prefixes = next
	}
	var names []string
	for _, p := range prefixes {
		for i := range v.Fields {
			for _, f := range leafNames(&v.Fields[i]) {
				names = append(names, p+"."+f)
			}
		}
	}
	return names
}
