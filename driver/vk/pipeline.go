// Copyright 2025 The vkflight Authors. All rights reserved.

package vk

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"

	"vkflight/driver"
)

// renderPass implements driver.RenderPass: a single subpass that
// clears one color attachment and leaves it ready for presentation.
type renderPass struct {
	d  *Device
	rp core1_0.RenderPass
}

// NewRenderPass implements driver.Device.
func (d *Device) NewRenderPass(pf driver.PixelFmt) (driver.RenderPass, error) {
	rp, res, err := d.dev.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         pixelFmtTo(pf),
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		// The external dependency delays the layout transition
		// until the acquire semaphore's wait stage.
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating render pass"))
	}
	return &renderPass{d: d, rp: rp}, nil
}

// NewFB implements driver.RenderPass.
func (p *renderPass) NewFB(view driver.ImageView, width, height int) (driver.Framebuf, error) {
	fb, res, err := p.d.dev.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  p.rp,
		Layers:      1,
		Attachments: []core1_0.ImageView{view.(*imageView).iv},
		Width:       width,
		Height:      height,
	})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating framebuffer"))
	}
	return &framebuf{fb: fb}, nil
}

// Destroy implements driver.Destroyer.
func (p *renderPass) Destroy() { p.rp.Destroy(nil) }

// framebuf implements driver.Framebuf.
type framebuf struct {
	fb core1_0.Framebuffer
}

// Destroy implements driver.Destroyer.
func (f *framebuf) Destroy() { f.fb.Destroy(nil) }

// pipeline implements driver.Pipeline.
type pipeline struct {
	pl core1_0.Pipeline
}

// NewPipeline implements driver.Device. Viewport and scissor are
// static, so the pipeline is tied to the extent it was created for.
func (d *Device) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	vert, res, err := d.dev.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(state.VertFunc.Code),
	})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating vertex shader"))
	}
	defer vert.Destroy(nil)

	frag, res, err := d.dev.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(state.FragFunc.Code),
	})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating fragment shader"))
	}
	defer frag.Destroy(nil)

	var attrs []core1_0.VertexInputAttributeDescription
	for _, a := range state.Attrs {
		attrs = append(attrs, core1_0.VertexInputAttributeDescription{
			Binding:  0,
			Location: a.Nr,
			Format:   vertexFmtTo(a.Format),
			Offset:   a.Offset,
		})
	}

	pls, res, err := d.dev.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: vert,
					Name:   state.VertFunc.Name,
				},
				{
					Stage:  core1_0.StageFragment,
					Module: frag,
					Name:   state.FragFunc.Name,
				},
			},
			VertexInputState: &core1_0.PipelineVertexInputStateCreateInfo{
				VertexBindingDescriptions: []core1_0.VertexInputBindingDescription{
					{
						Binding:   0,
						Stride:    state.Stride,
						InputRate: core1_0.VertexInputRateVertex,
					},
				},
				VertexAttributeDescriptions: attrs,
			},
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology: core1_0.PrimitiveTopologyTriangleList,
			},
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{
					{
						Width:    float32(state.Extent.Width),
						Height:   float32(state.Extent.Height),
						MaxDepth: 1,
					},
				},
				Scissors: []core1_0.Rect2D{
					{
						Extent: core1_0.Extent2D{
							Width:  state.Extent.Width,
							Height: state.Extent.Height,
						},
					},
				},
			},
			RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
				PolygonMode: core1_0.PolygonModeFill,
				CullMode:    core1_0.CullModeBack,
				FrontFace:   core1_0.FrontFaceClockwise,
				LineWidth:   1,
			},
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				RasterizationSamples: core1_0.Samples1,
				MinSampleShading:     1,
			},
			ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
				LogicOp: core1_0.LogicOpCopy,
				Attachments: []core1_0.PipelineColorBlendAttachmentState{
					{
						ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen |
							core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
					},
				},
			},
			Layout:            d.pipeLayout,
			RenderPass:        state.Pass.(*renderPass).rp,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating pipeline"))
	}
	return &pipeline{pl: pls[0]}, nil
}

// Destroy implements driver.Destroyer.
func (p *pipeline) Destroy() { p.pl.Destroy(nil) }

func bytesToBytecode(b []byte) []uint32 {
	code := make([]uint32, len(b)/4)
	for i := range code {
		j := i * 4
		code[i] = uint32(b[j]) | uint32(b[j+1])<<8 | uint32(b[j+2])<<16 | uint32(b[j+3])<<24
	}
	return code
}

// uniforms implements driver.Uniforms: one host-visible uniform
// buffer and one descriptor set per slot.
type uniforms struct {
	d    *Device
	size int
	bufs []core1_0.Buffer
	mems []core1_0.DeviceMemory
	pool core1_0.DescriptorPool
	sets []core1_0.DescriptorSet
}

// NewUniforms implements driver.Device.
func (d *Device) NewUniforms(n, size int) (driver.Uniforms, error) {
	u := &uniforms{d: d, size: size}
	for i := 0; i < n; i++ {
		b, mem, err := d.createBuffer(size,
			core1_0.BufferUsageUniformBuffer,
			core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			if b != nil {
				b.Destroy(nil)
			}
			if mem != nil {
				mem.Free(nil)
			}
			u.Destroy()
			return nil, err
		}
		u.bufs = append(u.bufs, b)
		u.mems = append(u.mems, mem)
	}

	pool, res, err := d.dev.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: n,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: n,
			},
		},
	})
	if err != nil {
		u.Destroy()
		return nil, mapErr(res, errors.Wrap(err, "vk: creating descriptor pool"))
	}
	u.pool = pool

	layouts := make([]core1_0.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = d.descLayout
	}
	u.sets, res, err = d.dev.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: pool,
		SetLayouts:     layouts,
	})
	if err != nil {
		u.Destroy()
		return nil, mapErr(res, errors.Wrap(err, "vk: allocating descriptor sets"))
	}

	var writes []core1_0.WriteDescriptorSet
	for i, set := range u.sets {
		writes = append(writes, core1_0.WriteDescriptorSet{
			DstSet:         set,
			DstBinding:     0,
			DescriptorType: core1_0.DescriptorTypeUniformBuffer,
			BufferInfo: []core1_0.DescriptorBufferInfo{
				{
					Buffer: u.bufs[i],
					Offset: 0,
					Range:  size,
				},
			},
		})
	}
	if err := d.dev.UpdateDescriptorSets(writes, nil); err != nil {
		u.Destroy()
		return nil, errors.Wrap(err, "vk: updating descriptor sets")
	}
	return u, nil
}

// Count implements driver.Uniforms.
func (u *uniforms) Count() int { return len(u.bufs) }

// Write implements driver.Uniforms.
func (u *uniforms) Write(i int, data []byte) error {
	if i < 0 || i >= len(u.mems) {
		return errors.Errorf("vk: uniform slot %d out of range", i)
	}
	if len(data) > u.size {
		return errors.Errorf("vk: uniform write of %d bytes exceeds slot size %d", len(data), u.size)
	}
	return writeMemory(u.mems[i], data)
}

// Destroy implements driver.Destroyer.
func (u *uniforms) Destroy() {
	if u.pool != nil {
		u.pool.Destroy(nil)
		u.pool = nil
		u.sets = nil
	}
	for _, b := range u.bufs {
		b.Destroy(nil)
	}
	u.bufs = nil
	for _, mem := range u.mems {
		mem.Free(nil)
	}
	u.mems = nil
}
