// Copyright 2025 The vkflight Authors. All rights reserved.

// Package render implements a frame-paced render loop over the
// driver interfaces: a presentation chain that tracks the surface,
// pre-recorded command sequences, and a scheduler that keeps a
// bounded number of frames in flight.
package render

import (
	"github.com/pkg/errors"

	"vkflight/driver"
)

// Chain owns a presentation chain and the selection policy used to
// create it. Each rebuild produces a new generation; resources
// derived from the chain's images are valid for one generation only.
type Chain struct {
	dev   driver.Device
	chain driver.Chain
	gen   uint
}

// NewChain selects a configuration against the surface's current
// capabilities and creates the first chain generation. drawable is
// the window's drawable size in pixels, used only when the surface
// does not dictate an extent.
func NewChain(dev driver.Device, drawable driver.Extent2D) (*Chain, error) {
	c := &Chain{dev: dev}
	if err := c.create(drawable, nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chain) create(drawable driver.Extent2D, old driver.Chain) error {
	caps, err := c.dev.SurfaceCaps()
	if err != nil {
		return errors.Wrap(err, "querying surface capabilities")
	}
	formats, err := c.dev.SurfaceFormats()
	if err != nil {
		return errors.Wrap(err, "querying surface formats")
	}
	modes, err := c.dev.PresentModes()
	if err != nil {
		return errors.Wrap(err, "querying present modes")
	}
	format, err := chooseFormat(formats)
	if err != nil {
		return err
	}
	mode, err := chooseMode(modes)
	if err != nil {
		return err
	}
	cfg := driver.ChainConfig{
		MinImages: chooseImageCount(caps),
		Format:    format,
		Mode:      mode,
		Extent:    chooseExtent(caps, drawable),
	}
	chain, err := c.dev.NewChain(cfg, old)
	if err != nil {
		return errors.Wrap(err, "creating chain")
	}
	c.chain = chain
	c.gen++
	return nil
}

// Rebuild replaces the chain with a new generation created against
// the surface's current capabilities. The previous chain is handed
// to the new one and then destroyed, so the caller must first
// ensure that no submitted work still references its images.
func (c *Chain) Rebuild(drawable driver.Extent2D) error {
	old := c.chain
	if err := c.create(drawable, old); err != nil {
		return err
	}
	if old != nil {
		old.Destroy()
	}
	return nil
}

// Generation returns the number of chain creations so far. It
// increases by exactly one on every successful Rebuild.
func (c *Chain) Generation() uint { return c.gen }

// Views returns one view per drawable image of the current
// generation.
func (c *Chain) Views() []driver.ImageView { return c.chain.Views() }

// Format returns the current generation's pixel format.
func (c *Chain) Format() driver.PixelFmt { return c.chain.Format() }

// Extent returns the current generation's image extent.
func (c *Chain) Extent() driver.Extent2D { return c.chain.Extent() }

// Acquire obtains the next drawable image of the current generation.
func (c *Chain) Acquire(ready driver.Semaphore) (int, driver.SurfaceStatus, error) {
	return c.chain.Acquire(ready)
}

// Destroy releases the current chain generation.
func (c *Chain) Destroy() {
	if c.chain != nil {
		c.chain.Destroy()
		c.chain = nil
	}
}

// chooseFormat prefers an 8-bit BGRA sRGB format in the sRGB
// nonlinear color space and falls back to the first advertised pair.
func chooseFormat(formats []driver.SurfaceFormat) (driver.SurfaceFormat, error) {
	if len(formats) == 0 {
		return driver.SurfaceFormat{}, errors.WithMessage(driver.ErrSurfaceIncompatible, "no surface formats")
	}
	for _, f := range formats {
		if f.Format == driver.BGRA8sRGB && f.Space == driver.ColorSpaceSRGBNonlinear {
			return f, nil
		}
	}
	return formats[0], nil
}

// chooseMode prefers mailbox for its latency and falls back to FIFO,
// which every surface supports.
func chooseMode(modes []driver.PresentMode) (driver.PresentMode, error) {
	if len(modes) == 0 {
		return 0, errors.WithMessage(driver.ErrSurfaceIncompatible, "no present modes")
	}
	for _, m := range modes {
		if m == driver.ModeMailbox {
			return m, nil
		}
	}
	return driver.ModeFIFO, nil
}

// chooseExtent returns the extent the surface dictates, or the
// drawable size clamped to the supported range when the surface
// leaves the choice to the chain.
func chooseExtent(caps driver.SurfaceCaps, drawable driver.Extent2D) driver.Extent2D {
	if caps.Fixed {
		return caps.Current
	}
	ext := drawable
	if ext.Width < caps.Min.Width {
		ext.Width = caps.Min.Width
	}
	if caps.Max.Width > 0 && ext.Width > caps.Max.Width {
		ext.Width = caps.Max.Width
	}
	if ext.Height < caps.Min.Height {
		ext.Height = caps.Min.Height
	}
	if caps.Max.Height > 0 && ext.Height > caps.Max.Height {
		ext.Height = caps.Max.Height
	}
	return ext
}

// chooseImageCount requests one image above the surface's minimum
// so acquisition does not stall on the driver, clamped to the
// supported maximum.
func chooseImageCount(caps driver.SurfaceCaps) int {
	n := caps.MinImages + 1
	if caps.MaxImages > 0 && n > caps.MaxImages {
		n = caps.MaxImages
	}
	return n
}
