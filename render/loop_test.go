// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"strings"
	"testing"

	"vkflight/driver"
	"vkflight/driver/drivertest"
)

// fakeSurface scripts window behavior through a per-dispatch hook.
type fakeSurface struct {
	w, h       int
	dispatches int
	onDispatch func(n int)
}

func (s *fakeSurface) DrawableSize() (int, int) { return s.w, s.h }

func (s *fakeSurface) Dispatch() {
	s.dispatches++
	if s.onDispatch != nil {
		s.onDispatch(s.dispatches)
	}
}

func TestLoopRun(t *testing.T) {
	dev := drivertest.New(drivertest.DefaultConfig())
	srf := &fakeSurface{w: 800, h: 600}

	var loop *Loop
	srf.onDispatch = func(int) {
		if dev.Presents() >= 10 {
			loop.NotifyClose()
		}
	}
	loop, err := NewLoop(dev, srf, 2)
	if err != nil {
		t.Fatalf("NewLoop: unexpected error %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run: unexpected error %v", err)
	}
	loop.Destroy()
	dev.Destroy()

	if n := dev.Presents(); n != 10 {
		t.Fatalf("presents:\nhave %v\nwant 10", n)
	}
	if n := dev.IdleWaits(); n < 1 {
		t.Fatalf("idle waits:\nhave %v\nwant at least 1", n)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("device violations:\n%s", strings.Join(v, "\n"))
	}
}

func TestLoopResize(t *testing.T) {
	dev := drivertest.New(drivertest.DefaultConfig())
	srf := &fakeSurface{w: 800, h: 600}

	var loop *Loop
	srf.onDispatch = func(n int) {
		if n == 3 {
			srf.w, srf.h = 1024, 768
			dev.SetCaps(driver.SurfaceCaps{
				MinImages: 2,
				MaxImages: 8,
				Current:   driver.Extent2D{Width: 1024, Height: 768},
				Fixed:     true,
				Min:       driver.Extent2D{Width: 1, Height: 1},
				Max:       driver.Extent2D{Width: 4096, Height: 4096},
			})
			loop.NotifyResize()
		}
		if dev.Presents() >= 6 {
			loop.NotifyClose()
		}
	}
	loop, err := NewLoop(dev, srf, 2)
	if err != nil {
		t.Fatalf("NewLoop: unexpected error %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run: unexpected error %v", err)
	}
	loop.Destroy()
	dev.Destroy()

	if n := dev.ChainGenerations(); n != 2 {
		t.Fatalf("chain generations:\nhave %v\nwant 2", n)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("device violations:\n%s", strings.Join(v, "\n"))
	}
}

// A resize notification arriving while a frame is in the middle of
// scheduling, after its submission but before its present, must not
// interrupt that frame: it still presents against the old chain, and
// the rebuild happens at the next checkpoint.
func TestLoopResizeDuringFrame(t *testing.T) {
	dev := drivertest.New(drivertest.DefaultConfig())
	srf := &fakeSurface{w: 800, h: 600}

	var loop *Loop
	dev.OnSubmit(func(n int) {
		if n == 2 {
			srf.w, srf.h = 400, 300
			dev.SetCaps(driver.SurfaceCaps{
				MinImages: 2,
				MaxImages: 8,
				Current:   driver.Extent2D{Width: 400, Height: 300},
				Fixed:     true,
				Min:       driver.Extent2D{Width: 1, Height: 1},
				Max:       driver.Extent2D{Width: 4096, Height: 4096},
			})
			loop.NotifyResize()
		}
	})
	srf.onDispatch = func(int) {
		if dev.Presents() >= 6 {
			loop.NotifyClose()
		}
	}
	loop, err := NewLoop(dev, srf, 2)
	if err != nil {
		t.Fatalf("NewLoop: unexpected error %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run: unexpected error %v", err)
	}
	loop.Destroy()
	dev.Destroy()

	presented, rebuilt := -1, -1
	for i, ev := range dev.Events() {
		switch {
		case strings.HasPrefix(ev, "present 2:"):
			presented = i
		case strings.HasPrefix(ev, "chain#2 create"):
			rebuilt = i
		}
	}
	if presented < 0 {
		t.Fatal("frame 2 was never presented")
	}
	if rebuilt < 0 {
		t.Fatal("chain was never rebuilt")
	}
	if presented > rebuilt {
		t.Fatal("frame 2 presented after the rebuild")
	}
	if n := dev.ChainGenerations(); n != 2 {
		t.Fatalf("chain generations:\nhave %v\nwant 2", n)
	}
	if n := dev.Presents(); n < 6 {
		t.Fatalf("presents:\nhave %v\nwant at least 6", n)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("device violations:\n%s", strings.Join(v, "\n"))
	}
}

// A minimized window reports a degenerate drawable; the loop must
// keep dispatching events without scheduling frames until the
// drawable comes back.
func TestLoopMinimized(t *testing.T) {
	dev := drivertest.New(drivertest.DefaultConfig())
	srf := &fakeSurface{w: 800, h: 600}

	var loop *Loop
	srf.onDispatch = func(n int) {
		switch {
		case n == 2:
			srf.w, srf.h = 0, 0
			loop.NotifyResize()
		case n >= 5 && srf.w == 0:
			srf.w, srf.h = 800, 600
		}
		if dev.Presents() >= 4 {
			loop.NotifyClose()
		}
	}
	loop, err := NewLoop(dev, srf, 2)
	if err != nil {
		t.Fatalf("NewLoop: unexpected error %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run: unexpected error %v", err)
	}
	loop.Destroy()
	dev.Destroy()

	if n := dev.ChainGenerations(); n != 2 {
		t.Fatalf("chain generations:\nhave %v\nwant 2", n)
	}
	if n := dev.Presents(); n < 4 {
		t.Fatalf("presents:\nhave %v\nwant at least 4", n)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("device violations:\n%s", strings.Join(v, "\n"))
	}
}

// Closing while minimized must not hang the rebuild poll.
func TestLoopCloseWhileMinimized(t *testing.T) {
	dev := drivertest.New(drivertest.DefaultConfig())
	srf := &fakeSurface{w: 800, h: 600}

	var loop *Loop
	srf.onDispatch = func(n int) {
		switch n {
		case 2:
			srf.w, srf.h = 0, 0
			loop.NotifyResize()
		case 4:
			loop.NotifyClose()
		}
	}
	loop, err := NewLoop(dev, srf, 2)
	if err != nil {
		t.Fatalf("NewLoop: unexpected error %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run: unexpected error %v", err)
	}
	loop.Destroy()
	dev.Destroy()

	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("device violations:\n%s", strings.Join(v, "\n"))
	}
}
