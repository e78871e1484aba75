// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"errors"
	"testing"

	"vkflight/driver"
	"vkflight/driver/drivertest"
)

func TestChooseFormat(t *testing.T) {
	preferred := driver.SurfaceFormat{Format: driver.BGRA8sRGB, Space: driver.ColorSpaceSRGBNonlinear}
	other := driver.SurfaceFormat{Format: driver.RGBA8Unorm, Space: driver.ColorSpaceSRGBNonlinear}

	f, err := chooseFormat([]driver.SurfaceFormat{other, preferred})
	if err != nil {
		t.Fatalf("chooseFormat: unexpected error %v", err)
	}
	if f != preferred {
		t.Fatalf("chooseFormat:\nhave %v\nwant %v", f, preferred)
	}

	f, err = chooseFormat([]driver.SurfaceFormat{other})
	if err != nil {
		t.Fatalf("chooseFormat: unexpected error %v", err)
	}
	if f != other {
		t.Fatalf("chooseFormat:\nhave %v\nwant %v", f, other)
	}

	if _, err = chooseFormat(nil); !errors.Is(err, driver.ErrSurfaceIncompatible) {
		t.Fatalf("chooseFormat error:\nhave %v\nwant %v", err, driver.ErrSurfaceIncompatible)
	}
}

func TestChooseMode(t *testing.T) {
	m, err := chooseMode([]driver.PresentMode{driver.ModeFIFO, driver.ModeMailbox})
	if err != nil {
		t.Fatalf("chooseMode: unexpected error %v", err)
	}
	if m != driver.ModeMailbox {
		t.Fatalf("chooseMode:\nhave %v\nwant %v", m, driver.ModeMailbox)
	}

	m, err = chooseMode([]driver.PresentMode{driver.ModeFIFORelaxed, driver.ModeImmediate, driver.ModeFIFO})
	if err != nil {
		t.Fatalf("chooseMode: unexpected error %v", err)
	}
	if m != driver.ModeFIFO {
		t.Fatalf("chooseMode:\nhave %v\nwant %v", m, driver.ModeFIFO)
	}

	if _, err = chooseMode(nil); !errors.Is(err, driver.ErrSurfaceIncompatible) {
		t.Fatalf("chooseMode error:\nhave %v\nwant %v", err, driver.ErrSurfaceIncompatible)
	}
}

func TestChooseExtent(t *testing.T) {
	caps := driver.SurfaceCaps{
		Min: driver.Extent2D{Width: 16, Height: 16},
		Max: driver.Extent2D{Width: 2048, Height: 2048},
	}
	for _, c := range [...]struct {
		fixed    bool
		drawable driver.Extent2D
		want     driver.Extent2D
	}{
		{false, driver.Extent2D{Width: 800, Height: 600}, driver.Extent2D{Width: 800, Height: 600}},
		{false, driver.Extent2D{Width: 1, Height: 600}, driver.Extent2D{Width: 16, Height: 600}},
		{false, driver.Extent2D{Width: 800, Height: 9999}, driver.Extent2D{Width: 800, Height: 2048}},
		{false, driver.Extent2D{Width: 0, Height: 0}, driver.Extent2D{Width: 16, Height: 16}},
		{true, driver.Extent2D{Width: 800, Height: 600}, driver.Extent2D{Width: 640, Height: 480}},
	} {
		caps.Fixed = c.fixed
		caps.Current = driver.Extent2D{Width: 640, Height: 480}
		ext := chooseExtent(caps, c.drawable)
		if ext != c.want {
			t.Fatalf("chooseExtent(%v, %v):\nhave %v\nwant %v", caps, c.drawable, ext, c.want)
		}
		// Selection over unchanged inputs must be stable.
		if ext2 := chooseExtent(caps, c.drawable); ext2 != ext {
			t.Fatalf("chooseExtent: unstable result:\nhave %v\nwant %v", ext2, ext)
		}
	}
}

func TestChooseImageCount(t *testing.T) {
	for _, c := range [...]struct {
		min, max int
		want     int
	}{
		{2, 8, 3},
		{2, 0, 3},
		{3, 3, 3},
		{1, 2, 2},
	} {
		caps := driver.SurfaceCaps{MinImages: c.min, MaxImages: c.max}
		if n := chooseImageCount(caps); n != c.want {
			t.Fatalf("chooseImageCount(min=%d, max=%d):\nhave %v\nwant %v", c.min, c.max, n, c.want)
		}
	}
}

func TestChainGeneration(t *testing.T) {
	dev := drivertest.New(drivertest.DefaultConfig())
	chain, err := NewChain(dev, driver.Extent2D{Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("NewChain: unexpected error %v", err)
	}
	defer chain.Destroy()

	if g := chain.Generation(); g != 1 {
		t.Fatalf("Chain.Generation:\nhave %v\nwant 1", g)
	}
	if k := len(chain.Views()); k != 3 {
		t.Fatalf("len(Chain.Views):\nhave %v\nwant 3", k)
	}

	dev.SetCaps(driver.SurfaceCaps{
		MinImages: 2,
		MaxImages: 8,
		Current:   driver.Extent2D{Width: 1024, Height: 768},
		Fixed:     true,
		Min:       driver.Extent2D{Width: 1, Height: 1},
		Max:       driver.Extent2D{Width: 4096, Height: 4096},
	})
	if err := chain.Rebuild(driver.Extent2D{Width: 1024, Height: 768}); err != nil {
		t.Fatalf("Chain.Rebuild: unexpected error %v", err)
	}
	if g := chain.Generation(); g != 2 {
		t.Fatalf("Chain.Generation after rebuild:\nhave %v\nwant 2", g)
	}
	want := driver.Extent2D{Width: 1024, Height: 768}
	if ext := chain.Extent(); ext != want {
		t.Fatalf("Chain.Extent after rebuild:\nhave %v\nwant %v", ext, want)
	}
	if n := dev.ChainGenerations(); n != 2 {
		t.Fatalf("chains created:\nhave %v\nwant 2", n)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func TestChainIncompatibleSurface(t *testing.T) {
	cfg := drivertest.DefaultConfig()
	cfg.Formats = nil
	dev := drivertest.New(cfg)
	if _, err := NewChain(dev, driver.Extent2D{Width: 800, Height: 600}); !errors.Is(err, driver.ErrSurfaceIncompatible) {
		t.Fatalf("NewChain error:\nhave %v\nwant %v", err, driver.ErrSurfaceIncompatible)
	}
}
