// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	_ "embed"

	"github.com/pkg/errors"

	"vkflight/driver"
)

// Shader binaries, compiled from the sources alongside them with
// glslc.
var (
	//go:embed shaders/flat.vert.spv
	vertSPV []byte

	//go:embed shaders/flat.frag.spv
	fragSPV []byte
)

// Graph holds the rendering state derived from one chain
// generation: the render pass, the pipeline, one framebuffer and
// one constant-data slot per drawable image. It is destroyed and
// recreated as a unit whenever the chain is rebuilt.
type Graph struct {
	pass     driver.RenderPass
	pipeline driver.Pipeline
	uniforms driver.Uniforms
	fbs      []driver.Framebuf
	extent   driver.Extent2D
	clear    driver.ClearValue
}

// NewGraph creates rendering state against the chain's current
// generation.
func NewGraph(dev driver.Device, chain *Chain) (g *Graph, err error) {
	g = &Graph{
		extent: chain.Extent(),
		clear:  driver.ClearValue{Color: [4]float32{0, 0, 0, 1}},
	}
	defer func() {
		if err != nil {
			g.Destroy()
		}
	}()

	g.pass, err = dev.NewRenderPass(chain.Format())
	if err != nil {
		return nil, errors.Wrap(err, "creating render pass")
	}

	views := chain.Views()
	g.uniforms, err = dev.NewUniforms(len(views), transformSize())
	if err != nil {
		return nil, errors.Wrap(err, "creating constant-data slots")
	}

	g.pipeline, err = dev.NewPipeline(&driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: vertSPV, Name: "main"},
		FragFunc: driver.ShaderFunc{Code: fragSPV, Name: "main"},
		Uniforms: g.uniforms,
		Stride:   vertexStride(),
		Attrs:    vertexAttrs(),
		Pass:     g.pass,
		Extent:   g.extent,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating pipeline")
	}

	for i, v := range views {
		fb, err := g.pass.NewFB(v, g.extent.Width, g.extent.Height)
		if err != nil {
			return nil, errors.Wrapf(err, "creating framebuffer %d", i)
		}
		g.fbs = append(g.fbs, fb)
	}
	return g, nil
}

// ImageCount returns the number of drawable images the graph was
// built against.
func (g *Graph) ImageCount() int { return len(g.fbs) }

// UpdateTransform writes the frame's constant data into image's
// slot. It must only be called when no pending submission reads
// that slot.
func (g *Graph) UpdateTransform(image int, elapsed float64) error {
	data, err := transformData(elapsed, g.extent)
	if err != nil {
		return err
	}
	return g.uniforms.Write(image, data)
}

// Destroy releases the graph's resources. Framebuffers go before
// the pass they were created from.
func (g *Graph) Destroy() {
	for _, fb := range g.fbs {
		fb.Destroy()
	}
	g.fbs = nil
	if g.pipeline != nil {
		g.pipeline.Destroy()
		g.pipeline = nil
	}
	if g.uniforms != nil {
		g.uniforms.Destroy()
		g.uniforms = nil
	}
	if g.pass != nil {
		g.pass.Destroy()
		g.pass = nil
	}
}
