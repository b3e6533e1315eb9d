package glprog

import (
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// Option configures a Program during creation.
//
// Example:
//
//	// CPU-only program: layouts and uniform values, no GPU objects
//	prog := glprog.New()
//
//	// Program with a device and a shared pipeline cache
//	prog := glprog.New(
//	    glprog.WithDevice(device),
//	    glprog.WithPipelineCache(cache),
//	)
type Option func(*config)

// config holds optional configuration for Program creation.
type config struct {
	device   hal.Device
	cache    PipelineCache
	features Features
	logger   *slog.Logger
}

// defaultConfig returns the default program configuration.
func defaultConfig() config {
	return config{
		features: DefaultFeatures(),
	}
}

// WithDevice sets the HAL device used for shader modules, layouts, uniform
// buffers and pipelines. Without a device a program still links and serves
// uniforms, but creates no GPU objects and skips warm-up.
func WithDevice(device hal.Device) Option {
	return func(c *config) {
		c.device = device
	}
}

// WithDeviceProvider takes the HAL device from a host provider.
//
// The provider should expose HalDevice() any returning a hal.Device, as
// gogpu providers do. Providers whose Device() is itself a hal.Device are
// accepted too. Anything else leaves the program without a device.
func WithDeviceProvider(provider gpucontext.DeviceProvider) Option {
	return func(c *config) {
		if provider == nil {
			return
		}
		type halProvider interface {
			HalDevice() any
		}
		if hp, ok := provider.(halProvider); ok {
			if d, ok := hp.HalDevice().(hal.Device); ok && d != nil {
				c.device = d
				return
			}
		}
		if d, ok := provider.Device().(hal.Device); ok && d != nil {
			c.device = d
			return
		}
		Logger().Warn("glprog: device provider does not expose a HAL device")
	}
}

// WithPipelineCache sets the cache warm-up and draw requests go through.
// The cache is usually shared by every program on a device.
func WithPipelineCache(cache PipelineCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

// WithFeatures overrides DefaultFeatures.
func WithFeatures(f Features) Option {
	return func(c *config) {
		c.features = f
	}
}

// WithLogger sets a logger for this program only. Programs without one use
// the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
