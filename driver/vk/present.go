// Copyright 2025 The vkflight Authors. All rights reserved.

package vk

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"

	"vkflight/driver"
)

// SurfaceCaps implements driver.Device.
func (d *Device) SurfaceCaps() (driver.SurfaceCaps, error) {
	caps, _, err := d.surface.PhysicalDeviceSurfaceCapabilities(d.phys)
	if err != nil {
		return driver.SurfaceCaps{}, errors.Wrap(err, "vk: querying surface capabilities")
	}
	c := driver.SurfaceCaps{
		MinImages: caps.MinImageCount,
		MaxImages: caps.MaxImageCount,
		Min: driver.Extent2D{
			Width:  caps.MinImageExtent.Width,
			Height: caps.MinImageExtent.Height,
		},
		Max: driver.Extent2D{
			Width:  caps.MaxImageExtent.Width,
			Height: caps.MaxImageExtent.Height,
		},
	}
	// A current extent of -1 means the surface takes the chain's
	// size rather than dictating one.
	if caps.CurrentExtent.Width != -1 {
		c.Fixed = true
		c.Current = driver.Extent2D{
			Width:  caps.CurrentExtent.Width,
			Height: caps.CurrentExtent.Height,
		}
	}
	return c, nil
}

// SurfaceFormats implements driver.Device. Formats with no driver
// equivalent are filtered out.
func (d *Device) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	formats, _, err := d.surface.PhysicalDeviceSurfaceFormats(d.phys)
	if err != nil {
		return nil, errors.Wrap(err, "vk: querying surface formats")
	}
	var sf []driver.SurfaceFormat
	for _, f := range formats {
		pf := pixelFmtFrom(f.Format)
		if pf == driver.FmtUnknown {
			continue
		}
		sf = append(sf, driver.SurfaceFormat{
			Format: pf,
			Space:  colorSpaceFrom(f.ColorSpace),
		})
	}
	return sf, nil
}

// PresentModes implements driver.Device.
func (d *Device) PresentModes() ([]driver.PresentMode, error) {
	modes, _, err := d.surface.PhysicalDeviceSurfacePresentModes(d.phys)
	if err != nil {
		return nil, errors.Wrap(err, "vk: querying present modes")
	}
	var pm []driver.PresentMode
	for _, m := range modes {
		if dm, ok := presentModeFrom(m); ok {
			pm = append(pm, dm)
		}
	}
	return pm, nil
}

// chain implements driver.Chain over a swapchain.
type chain struct {
	d      *Device
	sc     khr_swapchain.Swapchain
	format driver.PixelFmt
	extent driver.Extent2D
	views  []driver.ImageView
}

// NewChain implements driver.Device.
func (d *Device) NewChain(cfg driver.ChainConfig, old driver.Chain) (driver.Chain, error) {
	caps, _, err := d.surface.PhysicalDeviceSurfaceCapabilities(d.phys)
	if err != nil {
		return nil, errors.Wrap(err, "vk: querying surface capabilities")
	}

	info := khr_swapchain.SwapchainCreateInfo{
		Surface: d.surface,

		MinImageCount: cfg.MinImages,
		ImageFormat:   pixelFmtTo(cfg.Format.Format),
		// Core surfaces only advertise the sRGB nonlinear space;
		// anything else requires a color space extension.
		ImageColorSpace:  khr_surface.ColorSpaceSRGBNonlinear,
		ImageExtent:      core1_0.Extent2D{Width: cfg.Extent.Width, Height: cfg.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentModeTo(cfg.Mode),
		Clipped:        true,
	}
	if d.gfxFamily != d.presFamily {
		info.ImageSharingMode = core1_0.SharingModeConcurrent
		info.QueueFamilyIndices = []int{d.gfxFamily, d.presFamily}
	}
	if o, ok := old.(*chain); ok && o != nil {
		info.OldSwapchain = o.sc
	}

	sc, res, err := d.swapExt.CreateSwapchain(d.dev, nil, info)
	if err != nil {
		return nil, mapErr(res, errors.Wrap(err, "vk: creating swapchain"))
	}
	c := &chain{d: d, sc: sc, format: cfg.Format.Format, extent: cfg.Extent}

	images, _, err := sc.SwapchainImages()
	if err != nil {
		sc.Destroy(nil)
		return nil, errors.Wrap(err, "vk: querying swapchain images")
	}
	for i, img := range images {
		view, res, err := d.dev.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			ViewType: core1_0.ImageViewType2D,
			Image:    img,
			Format:   pixelFmtTo(cfg.Format.Format),
			Components: core1_0.ComponentMapping{
				R: core1_0.ComponentSwizzleIdentity,
				G: core1_0.ComponentSwizzleIdentity,
				B: core1_0.ComponentSwizzleIdentity,
				A: core1_0.ComponentSwizzleIdentity,
			},
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask: core1_0.ImageAspectColor,
				LevelCount: 1,
				LayerCount: 1,
			},
		})
		if err != nil {
			c.Destroy()
			return nil, mapErr(res, errors.Wrapf(err, "vk: creating view %d", i))
		}
		c.views = append(c.views, &imageView{iv: view})
	}
	return c, nil
}

// Views implements driver.Chain.
func (c *chain) Views() []driver.ImageView { return c.views }

// Format implements driver.Chain.
func (c *chain) Format() driver.PixelFmt { return c.format }

// Extent implements driver.Chain.
func (c *chain) Extent() driver.Extent2D { return c.extent }

// Acquire implements driver.Chain.
func (c *chain) Acquire(ready driver.Semaphore) (int, driver.SurfaceStatus, error) {
	idx, res, err := c.sc.AcquireNextImage(common.NoTimeout, ready.(*semaphore).s, nil)
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return -1, driver.SurfaceOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return idx, driver.SurfaceSuboptimal, nil
	}
	if err != nil {
		return -1, driver.SurfaceOK, mapErr(res, errors.Wrap(err, "vk: acquiring image"))
	}
	return idx, driver.SurfaceOK, nil
}

// Destroy implements driver.Destroyer.
func (c *chain) Destroy() {
	for _, v := range c.views {
		v.Destroy()
	}
	c.views = nil
	if c.sc != nil {
		c.sc.Destroy(nil)
		c.sc = nil
	}
}

// imageView implements driver.ImageView.
type imageView struct {
	iv core1_0.ImageView
}

// Destroy implements driver.Destroyer.
func (v *imageView) Destroy() { v.iv.Destroy(nil) }

// queue implements driver.Queue.
type queue struct {
	d *Device
	q core1_0.Queue
}

// Submit implements driver.Queue.
func (q *queue) Submit(sub driver.Submit, fence driver.Fence) error {
	info := core1_0.SubmitInfo{}
	if sub.Wait != nil {
		info.WaitSemaphores = []core1_0.Semaphore{sub.Wait.(*semaphore).s}
		info.WaitDstStageMask = []core1_0.PipelineStageFlags{stageTo(sub.WaitStage)}
	}
	for _, cb := range sub.Cmds {
		info.CommandBuffers = append(info.CommandBuffers, cb.(*cmdBuffer).cb)
	}
	for _, sig := range sub.Signal {
		info.SignalSemaphores = append(info.SignalSemaphores, sig.(*semaphore).s)
	}
	var f core1_0.Fence
	if fence != nil {
		f = fence.(*vkFence).f
	}
	res, err := q.q.Submit(f, []core1_0.SubmitInfo{info})
	if err != nil {
		err = mapErr(res, err)
		if !errors.Is(err, driver.ErrDeviceLost) && !errors.Is(err, driver.ErrResourceExhausted) {
			err = errors.WithMessage(driver.ErrSubmitFailed, err.Error())
		}
		return err
	}
	return nil
}

// Present implements driver.Queue.
func (q *queue) Present(c driver.Chain, index int, wait driver.Semaphore) (driver.SurfaceStatus, error) {
	ch := c.(*chain)
	info := khr_swapchain.PresentInfo{
		Swapchains:   []khr_swapchain.Swapchain{ch.sc},
		ImageIndices: []int{index},
	}
	if wait != nil {
		info.WaitSemaphores = []core1_0.Semaphore{wait.(*semaphore).s}
	}
	res, err := q.d.swapExt.QueuePresent(q.q, info)
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return driver.SurfaceOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return driver.SurfaceSuboptimal, nil
	}
	if err != nil {
		return driver.SurfaceOK, mapErr(res, errors.Wrap(err, "vk: presenting image"))
	}
	return driver.SurfaceOK, nil
}
