// Copyright 2025 The vkflight Authors. All rights reserved.

package vk

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"

	"vkflight/driver"
)

// semaphore implements driver.Semaphore.
type semaphore struct {
	s core1_0.Semaphore
}

// NewSemaphore implements driver.Device.
func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	s, res, err := d.dev.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating semaphore"))
	}
	return &semaphore{s: s}, nil
}

// Destroy implements driver.Destroyer.
func (s *semaphore) Destroy() { s.s.Destroy(nil) }

// vkFence implements driver.Fence.
type vkFence struct {
	d *Device
	f core1_0.Fence
}

// NewFence implements driver.Device.
func (d *Device) NewFence(signaled bool) (driver.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}
	f, res, err := d.dev.CreateFence(nil, core1_0.FenceCreateInfo{Flags: flags})
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating fence"))
	}
	return &vkFence{d: d, f: f}, nil
}

// Wait implements driver.Fence.
func (f *vkFence) Wait(timeout time.Duration) error {
	if timeout < 0 {
		timeout = common.NoTimeout
	}
	res, err := f.f.Wait(timeout)
	if err != nil {
		return mapErr(res, errors.Wrap(err, "vk: waiting for fence"))
	}
	if res == core1_0.VKTimeout {
		return errors.Errorf("vk: fence wait expired after %v", timeout)
	}
	return nil
}

// Reset implements driver.Fence.
func (f *vkFence) Reset() error {
	res, err := f.d.dev.ResetFences([]core1_0.Fence{f.f})
	return mapErr(res, errors.Wrap(err, "vk: resetting fence"))
}

// Destroy implements driver.Destroyer.
func (f *vkFence) Destroy() { f.f.Destroy(nil) }
