// Copyright 2025 The vkflight Authors. All rights reserved.

package vk

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/core1_0"

	"vkflight/driver"
)

// cmdBuffer implements driver.CmdBuffer.
type cmdBuffer struct {
	d  *Device
	cb core1_0.CommandBuffer
}

// NewCmdBuffers implements driver.Device.
func (d *Device) NewCmdBuffers(n int) ([]driver.CmdBuffer, error) {
	cbs, res, err := d.dev.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: n,
	})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: allocating command buffers"))
	}
	out := make([]driver.CmdBuffer, n)
	for i := range cbs {
		out[i] = &cmdBuffer{d: d, cb: cbs[i]}
	}
	return out, nil
}

// Begin implements driver.CmdBuffer.
func (b *cmdBuffer) Begin(simultaneous bool) error {
	var flags core1_0.CommandBufferUsageFlags
	if simultaneous {
		flags = core1_0.CommandBufferUsageSimultaneousUse
	}
	_, err := b.cb.Begin(core1_0.CommandBufferBeginInfo{Flags: flags})
	return errors.Wrap(err, "vk: beginning command buffer")
}

// BeginPass implements driver.CmdBuffer.
func (b *cmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, ext driver.Extent2D, clear driver.ClearValue) {
	b.cb.CmdBeginRenderPass(core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  pass.(*renderPass).rp,
		Framebuffer: fb.(*framebuf).fb,
		RenderArea: core1_0.Rect2D{
			Extent: core1_0.Extent2D{Width: ext.Width, Height: ext.Height},
		},
		ClearValues: []core1_0.ClearValue{
			core1_0.ClearValueFloat(clear.Color),
		},
	})
}

// SetPipeline implements driver.CmdBuffer.
func (b *cmdBuffer) SetPipeline(pl driver.Pipeline) {
	b.cb.CmdBindPipeline(core1_0.PipelineBindPointGraphics, pl.(*pipeline).pl)
}

// SetVertexBuf implements driver.CmdBuffer.
func (b *cmdBuffer) SetVertexBuf(buf driver.Buffer) {
	b.cb.CmdBindVertexBuffers(0, []core1_0.Buffer{buf.(*buffer).b}, []int{0})
}

// SetIndexBuf implements driver.CmdBuffer.
func (b *cmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer) {
	t := core1_0.IndexTypeUInt16
	if format == driver.Index32 {
		t = core1_0.IndexTypeUInt32
	}
	b.cb.CmdBindIndexBuffer(buf.(*buffer).b, 0, t)
}

// SetUniforms implements driver.CmdBuffer.
func (b *cmdBuffer) SetUniforms(u driver.Uniforms, i int) {
	sets := []core1_0.DescriptorSet{u.(*uniforms).sets[i]}
	b.cb.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, b.d.pipeLayout, 0, sets, nil)
}

// DrawIndexed implements driver.CmdBuffer.
func (b *cmdBuffer) DrawIndexed(idxCount int) {
	b.cb.CmdDrawIndexed(idxCount, 1, 0, 0, 0)
}

// EndPass implements driver.CmdBuffer.
func (b *cmdBuffer) EndPass() {
	b.cb.CmdEndRenderPass()
}

// End implements driver.CmdBuffer.
func (b *cmdBuffer) End() error {
	_, err := b.cb.End()
	return errors.Wrap(err, "vk: ending command buffer")
}

// Reset implements driver.CmdBuffer.
func (b *cmdBuffer) Reset() error {
	_, err := b.cb.Reset(0)
	return errors.Wrap(err, "vk: resetting command buffer")
}

// Destroy implements driver.Destroyer.
func (b *cmdBuffer) Destroy() {
	b.d.dev.FreeCommandBuffers([]core1_0.CommandBuffer{b.cb})
}
