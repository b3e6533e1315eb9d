// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glprog/cache"
)

// Source records why a pipeline was requested.
type Source uint8

const (
	// SourceDraw is a request made with real draw-time state.
	SourceDraw Source = iota
	// SourceWarmUp is a speculative request made at link time.
	SourceWarmUp
)

func (s Source) String() string {
	if s == SourceWarmUp {
		return "warm-up"
	}
	return "draw"
}

// Key identifies a pipeline: the program it runs and the state it was built
// for.
type Key struct {
	Program uint64
	Desc    Desc
}

// BuildFunc creates the pipeline for a key on a cache miss.
type BuildFunc func() (hal.RenderPipeline, error)

// Stats is a snapshot of pipeline cache activity.
type Stats struct {
	WarmUpBuilds uint64
	DrawBuilds   uint64
	// WarmUpHits counts draw requests served by a pipeline that warm-up
	// built.
	WarmUpHits uint64
	// Discarded counts pipelines destroyed because a concurrent build of
	// the same key finished first.
	Discarded uint64
	LRU       cache.Stats
}

type entry struct {
	pipeline hal.RenderPipeline
	source   Source
}

// Cache shares built pipelines across programs. It is safe for concurrent
// use and holds no lock while a pipeline is being built.
type Cache struct {
	device  hal.Device
	entries *cache.ShardedCache[Key, *entry]

	mu sync.Mutex
	// programs lists the states built per program. Evicted keys may
	// linger until Forget.
	programs map[uint64][]Desc

	warmUpBuilds atomic.Uint64
	drawBuilds   atomic.Uint64
	warmUpHits   atomic.Uint64
	discarded    atomic.Uint64
}

// NewCache returns a cache that destroys pipelines on device when they are
// evicted. capacity is per shard; <= 0 selects cache.DefaultCapacity.
func NewCache(device hal.Device, capacity int) *Cache {
	c := &Cache{
		device:   device,
		entries:  cache.NewSharded[Key, *entry](capacity, cache.ComparableHasher[Key]()),
		programs: make(map[uint64][]Desc),
	}
	c.entries.OnEvict(func(k Key, e *entry) {
		slogger().Debug("pipeline: evicted", "program", k.Program, "source", e.source)
		c.destroy(e.pipeline)
	})
	return c
}

// WarmUp returns the pipeline for key, building it if needed. A pipeline
// built here is tagged as warm-up.
func (c *Cache) WarmUp(key Key, build BuildFunc) (hal.RenderPipeline, error) {
	return c.Get(key, SourceWarmUp, build)
}

// Demand returns the pipeline for key on behalf of a draw.
func (c *Cache) Demand(key Key, build BuildFunc) (hal.RenderPipeline, error) {
	return c.Get(key, SourceDraw, build)
}

// Get returns the cached pipeline for key, calling build on a miss.
//
// Two goroutines may build the same key concurrently. The first to finish
// is cached; the other's pipeline is destroyed and the cached one returned.
func (c *Cache) Get(key Key, source Source, build BuildFunc) (hal.RenderPipeline, error) {
	if e, ok := c.entries.Get(key); ok {
		if source == SourceDraw && e.source == SourceWarmUp {
			c.warmUpHits.Add(1)
		}
		return e.pipeline, nil
	}

	p, err := build()
	if err != nil {
		return nil, fmt.Errorf("pipeline: build (%s): %w", source, err)
	}

	e, inserted := c.entries.Add(key, &entry{pipeline: p, source: source})
	if !inserted {
		c.discarded.Add(1)
		c.destroy(p)
		return e.pipeline, nil
	}

	c.mu.Lock()
	c.programs[key.Program] = append(c.programs[key.Program], key.Desc)
	c.mu.Unlock()

	if source == SourceWarmUp {
		c.warmUpBuilds.Add(1)
	} else {
		c.drawBuilds.Add(1)
	}
	slogger().Debug("pipeline: built",
		"program", key.Program,
		"source", source,
		"topology", key.Desc.Topology,
		"colors", key.Desc.ColorCount)
	return p, nil
}

// Forget destroys every pipeline built for program and returns how many
// there were. Programs call it when their link serial is retired.
func (c *Cache) Forget(program uint64) int {
	c.mu.Lock()
	descs := c.programs[program]
	delete(c.programs, program)
	c.mu.Unlock()

	n := 0
	for _, d := range descs {
		if e, ok := c.entries.Delete(Key{Program: program, Desc: d}); ok {
			c.destroy(e.pipeline)
			n++
		}
	}
	if n > 0 {
		slogger().Debug("pipeline: forgot program", "program", program, "pipelines", n)
	}
	return n
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int { return c.entries.Len() }

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		WarmUpBuilds: c.warmUpBuilds.Load(),
		DrawBuilds:   c.drawBuilds.Load(),
		WarmUpHits:   c.warmUpHits.Load(),
		Discarded:    c.discarded.Load(),
		LRU:          c.entries.Stats(),
	}
}

// Close destroys every cached pipeline.
func (c *Cache) Close() {
	c.entries.Clear()
	c.mu.Lock()
	c.programs = make(map[uint64][]Desc)
	c.mu.Unlock()
}

func (c *Cache) destroy(p hal.RenderPipeline) {
	if c.device != nil && p != nil {
		c.device.DestroyRenderPipeline(p)
	}
}
