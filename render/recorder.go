// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"github.com/pkg/errors"

	"vkflight/driver"
)

// Recorder holds one pre-recorded command sequence per drawable
// image. Sequences are recorded exactly once, when the recorder is
// created, and resubmitted verbatim every frame; simultaneous use
// lets a sequence be enqueued again while a prior submission of it
// is still executing. Like the graph it is built from, a recorder
// belongs to a single chain generation.
type Recorder struct {
	cmds []driver.CmdBuffer
}

// NewRecorder allocates and records one command sequence per image
// of the graph's generation.
func NewRecorder(dev driver.Device, graph *Graph, mesh *Mesh) (*Recorder, error) {
	cmds, err := dev.NewCmdBuffers(graph.ImageCount())
	if err != nil {
		return nil, errors.Wrap(err, "allocating command buffers")
	}
	r := &Recorder{cmds: cmds}
	for i, cmd := range cmds {
		if err := record(cmd, graph, mesh, i); err != nil {
			r.Destroy()
			return nil, errors.Wrapf(err, "recording sequence %d", i)
		}
	}
	return r, nil
}

func record(cmd driver.CmdBuffer, graph *Graph, mesh *Mesh, image int) error {
	if err := cmd.Begin(true); err != nil {
		return err
	}
	cmd.BeginPass(graph.pass, graph.fbs[image], graph.extent, graph.clear)
	cmd.SetPipeline(graph.pipeline)
	cmd.SetVertexBuf(mesh.verts)
	cmd.SetIndexBuf(driver.Index16, mesh.indices)
	cmd.SetUniforms(graph.uniforms, image)
	cmd.DrawIndexed(mesh.idxCount)
	cmd.EndPass()
	return cmd.End()
}

// Cmd returns the sequence that renders into image.
func (r *Recorder) Cmd(image int) driver.CmdBuffer { return r.cmds[image] }

// Destroy releases the command sequences. No submission of any
// sequence may be pending.
func (r *Recorder) Destroy() {
	for _, cmd := range r.cmds {
		cmd.Destroy()
	}
	r.cmds = nil
}
