// Copyright 2025 The vkflight Authors. All rights reserved.

package vk

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/core1_0"

	"vkflight/driver"
)

// buffer implements driver.Buffer over a device-local buffer.
type buffer struct {
	b   core1_0.Buffer
	mem core1_0.DeviceMemory
}

// NewBuffer implements driver.Device. The data is uploaded through
// a host-visible staging buffer and the copy is complete on return.
func (d *Device) NewBuffer(data []byte, usg driver.Usage) (driver.Buffer, error) {
	usage := core1_0.BufferUsageTransferDst
	if usg&driver.UVertexData != 0 {
		usage |= core1_0.BufferUsageVertexBuffer
	}
	if usg&driver.UIndexData != 0 {
		usage |= core1_0.BufferUsageIndexBuffer
	}

	staging, stagingMem, err := d.createBuffer(len(data),
		core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if staging != nil {
		defer staging.Destroy(nil)
	}
	if stagingMem != nil {
		defer stagingMem.Free(nil)
	}
	if err != nil {
		return nil, err
	}
	if err := writeMemory(stagingMem, data); err != nil {
		return nil, err
	}

	dst, dstMem, err := d.createBuffer(len(data), usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		if dst != nil {
			dst.Destroy(nil)
		}
		if dstMem != nil {
			dstMem.Free(nil)
		}
		return nil, err
	}
	b := &buffer{b: dst, mem: dstMem}
	if err := d.copyBuffer(staging, dst, len(data)); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// Destroy implements driver.Destroyer.
func (b *buffer) Destroy() {
	b.b.Destroy(nil)
	b.mem.Free(nil)
}

func (d *Device) createBuffer(size int, usage core1_0.BufferUsageFlags, props core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	b, res, err := d.dev.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, nil, mapErr(res, errors.Wrap(err, "vk: creating buffer"))
	}

	req := b.MemoryRequirements()
	typeIdx, err := d.findMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		return b, nil, err
	}
	mem, res, err := d.dev.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	})
	if err != nil {
		return b, nil, mapErr(res, errors.Wrap(err, "vk: allocating buffer memory"))
	}
	if _, err := b.BindBufferMemory(mem, 0); err != nil {
		return b, mem, errors.Wrap(err, "vk: binding buffer memory")
	}
	return b, mem, nil
}

func (d *Device) findMemoryType(typeBits uint32, props core1_0.MemoryPropertyFlags) (int, error) {
	mp := d.phys.MemoryProperties()
	for i, mt := range mp.MemoryTypes {
		if typeBits&(1<<i) != 0 && mt.PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, errors.WithMessage(driver.ErrResourceExhausted, "no suitable memory type")
}

func writeMemory(mem core1_0.DeviceMemory, data []byte) error {
	ptr, res, err := mem.Map(0, len(data), 0)
	if err != nil {
		return mapErr(res, errors.Wrap(err, "vk: mapping staging memory"))
	}
	defer mem.Unmap()
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	return nil
}

// copyBuffer records and submits a one-time transfer and waits for
// it to complete.
func (d *Device) copyBuffer(src, dst core1_0.Buffer, size int) error {
	cbs, res, err := d.dev.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return mapErr(res, errors.Wrap(err, "vk: allocating transfer commands"))
	}
	defer d.dev.FreeCommandBuffers(cbs)

	cb := cbs[0]
	if _, err := cb.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}); err != nil {
		return errors.Wrap(err, "vk: beginning transfer")
	}
	cb.CmdCopyBuffer(src, dst, []core1_0.BufferCopy{{Size: size}})
	if _, err := cb.End(); err != nil {
		return errors.Wrap(err, "vk: ending transfer")
	}

	res, err = d.gfxQueue.q.Submit(nil, []core1_0.SubmitInfo{
		{CommandBuffers: []core1_0.CommandBuffer{cb}},
	})
	if err != nil {
		return mapErr(res, errors.Wrap(err, "vk: submitting transfer"))
	}
	res, err = d.gfxQueue.q.WaitIdle()
	return mapErr(res, errors.Wrap(err, "vk: waiting for transfer"))
}
