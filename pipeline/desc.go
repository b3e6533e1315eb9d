// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline describes graphics pipeline state and caches the
// pipelines built from it.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MaxColorAttachments is the number of color attachments a Desc can carry.
const MaxColorAttachments = 8

// ErrUnsupportedTopology is returned by Desc.HAL for topologies the HAL
// cannot express.
var ErrUnsupportedTopology = errors.New("pipeline: topology not supported by HAL")

// Topology is the primitive assembly mode of a draw.
type Topology uint8

const (
	TopologyTriangles Topology = iota
	TopologyPoints
	TopologyLines
	TopologyLineStrip
	TopologyTriangleStrip
	// TopologyPatches feeds tessellation. WebGPU has no equivalent.
	TopologyPatches
)

func (t Topology) String() string {
	switch t {
	case TopologyTriangles:
		return "triangles"
	case TopologyPoints:
		return "points"
	case TopologyLines:
		return "lines"
	case TopologyLineStrip:
		return "line_strip"
	case TopologyTriangleStrip:
		return "triangle_strip"
	case TopologyPatches:
		return "patches"
	default:
		return fmt.Sprintf("Topology(%d)", uint8(t))
	}
}

// Buildable reports whether t has a WebGPU primitive topology.
func (t Topology) Buildable() bool {
	_, ok := t.gpu()
	return ok
}

func (t Topology) gpu() (gputypes.PrimitiveTopology, bool) {
	switch t {
	case TopologyTriangles:
		return gputypes.PrimitiveTopologyTriangleList, true
	case TopologyPoints:
		return gputypes.PrimitiveTopologyPointList, true
	case TopologyLines:
		return gputypes.PrimitiveTopologyLineList, true
	case TopologyLineStrip:
		return gputypes.PrimitiveTopologyLineStrip, true
	case TopologyTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, true
	}
	return 0, false
}

// Desc is the render state a graphics pipeline is built for.
// It is comparable and is used directly as a cache key.
type Desc struct {
	Topology  Topology
	CullMode  gputypes.CullMode
	FrontFace gputypes.FrontFace

	SampleCount uint32

	ColorFormats   [MaxColorAttachments]gputypes.TextureFormat
	ColorCount     uint8
	BlendEnabled   bool
	Blend          gputypes.BlendState
	ColorWriteMask gputypes.ColorWriteMask

	// DepthFormat is TextureFormatUndefined when there is no depth attachment.
	DepthFormat  gputypes.TextureFormat
	DepthCompare gputypes.CompareFunction
	DepthWrite   bool
}

// InitDefaults resets d to the default render state: triangle list, no
// culling, counter-clockwise front faces, one sample, no attachments,
// blending disabled, all color channels written.
func (d *Desc) InitDefaults() {
	*d = Desc{
		Topology:       TopologyTriangles,
		CullMode:       gputypes.CullModeNone,
		FrontFace:      gputypes.FrontFaceCCW,
		SampleCount:    1,
		Blend:          gputypes.BlendStateReplace(),
		ColorWriteMask: gputypes.ColorWriteMaskAll,
		DepthCompare:   gputypes.CompareFunctionAlways,
	}
}

// SetTopology sets the primitive mode.
func (d *Desc) SetTopology(t Topology) { d.Topology = t }

// SetRenderPassSampleCount sets the sample count of every attachment.
func (d *Desc) SetRenderPassSampleCount(n uint32) { d.SampleCount = n }

// SetRenderPassColorAttachmentFormat sets the format of color attachment
// index and grows ColorCount to include it. Out-of-range indices are
// ignored.
func (d *Desc) SetRenderPassColorAttachmentFormat(index int, format gputypes.TextureFormat) {
	if index < 0 || index >= MaxColorAttachments {
		return
	}
	d.ColorFormats[index] = format
	if n := uint8(index + 1); n > d.ColorCount {
		d.ColorCount = n
	}
}

// SetDepthAttachment configures the depth attachment.
func (d *Desc) SetDepthAttachment(format gputypes.TextureFormat, compare gputypes.CompareFunction, write bool) {
	d.DepthFormat = format
	d.DepthCompare = compare
	d.DepthWrite = write
}

// Stage is a compiled shader module and the entry point to run in it.
type Stage struct {
	Module     hal.ShaderModule
	EntryPoint string
}

// HAL converts d to a HAL render pipeline descriptor. fragment may have a
// nil Module for depth-only pipelines.
func (d *Desc) HAL(label string, layout hal.PipelineLayout, vertex, fragment Stage) (*hal.RenderPipelineDescriptor, error) {
	topology, ok := d.Topology.gpu()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTopology, d.Topology)
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vertex.Module,
			EntryPoint: vertex.EntryPoint,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  topology,
			FrontFace: d.FrontFace,
			CullMode:  d.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: d.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	}
	if topology == gputypes.PrimitiveTopologyTriangleStrip || topology == gputypes.PrimitiveTopologyLineStrip {
		idx := gputypes.IndexFormatUint32
		desc.Primitive.StripIndexFormat = &idx
	}

	if fragment.Module != nil {
		targets := make([]gputypes.ColorTargetState, d.ColorCount)
		for i := range targets {
			targets[i] = gputypes.ColorTargetState{
				Format:    d.ColorFormats[i],
				WriteMask: d.ColorWriteMask,
			}
			if d.BlendEnabled {
				blend := d.Blend
				targets[i].Blend = &blend
			}
		}
		desc.Fragment = &hal.FragmentState{
			Module:     fragment.Module,
			EntryPoint: fragment.EntryPoint,
			Targets:    targets,
		}
	}

	if d.DepthFormat != gputypes.TextureFormatUndefined {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            d.DepthFormat,
			DepthWriteEnabled: d.DepthWrite,
			DepthCompare:      d.DepthCompare,
		}
	}
	return desc, nil
}
