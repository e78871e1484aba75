// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"errors"
	"strings"
	"testing"

	"vkflight/driver"
	"vkflight/driver/drivertest"
)

// harness assembles the full rendering state over a scripted device
// and mirrors the loop's rebuild protocol.
type harness struct {
	dev   *drivertest.Device
	mesh  *Mesh
	sched *Scheduler
	chain *Chain
	graph *Graph
	rec   *Recorder
}

func newHarness(t *testing.T, cfg drivertest.Config, frames int) *harness {
	t.Helper()
	h := &harness{dev: drivertest.New(cfg)}
	var err error
	if h.mesh, err = NewMesh(h.dev); err != nil {
		t.Fatalf("NewMesh: unexpected error %v", err)
	}
	if h.sched, err = NewScheduler(h.dev, frames); err != nil {
		t.Fatalf("NewScheduler: unexpected error %v", err)
	}
	if h.chain, err = NewChain(h.dev, driver.Extent2D{Width: 800, Height: 600}); err != nil {
		t.Fatalf("NewChain: unexpected error %v", err)
	}
	if h.graph, err = NewGraph(h.dev, h.chain); err != nil {
		t.Fatalf("NewGraph: unexpected error %v", err)
	}
	if h.rec, err = NewRecorder(h.dev, h.graph, h.mesh); err != nil {
		t.Fatalf("NewRecorder: unexpected error %v", err)
	}
	h.sched.TrackImages(h.graph.ImageCount())
	return h
}

func (h *harness) frame(t *testing.T) bool {
	t.Helper()
	rebuild, err := h.sched.Frame(h.chain, h.graph, h.rec, 0)
	if err != nil {
		t.Fatalf("Scheduler.Frame: unexpected error %v", err)
	}
	return rebuild
}

func (h *harness) rebuild(t *testing.T) {
	t.Helper()
	if err := h.dev.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: unexpected error %v", err)
	}
	h.rec.Destroy()
	h.graph.Destroy()
	if err := h.chain.Rebuild(driver.Extent2D{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Chain.Rebuild: unexpected error %v", err)
	}
	var err error
	if h.graph, err = NewGraph(h.dev, h.chain); err != nil {
		t.Fatalf("NewGraph: unexpected error %v", err)
	}
	if h.rec, err = NewRecorder(h.dev, h.graph, h.mesh); err != nil {
		t.Fatalf("NewRecorder: unexpected error %v", err)
	}
	h.sched.TrackImages(h.graph.ImageCount())
}

func (h *harness) destroy(t *testing.T) {
	t.Helper()
	if err := h.dev.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: unexpected error %v", err)
	}
	h.rec.Destroy()
	h.graph.Destroy()
	h.chain.Destroy()
	h.sched.Destroy()
	h.mesh.Destroy()
	h.dev.Destroy()
}

func (h *harness) checkViolations(t *testing.T) {
	t.Helper()
	if v := h.dev.Violations(); len(v) != 0 {
		t.Fatalf("device violations:\n%s", strings.Join(v, "\n"))
	}
}

// submitFences extracts the fence of every submission, in order.
func submitFences(events []string) []string {
	var fences []string
	for _, e := range events {
		if !strings.HasPrefix(e, "submit ") {
			continue
		}
		f := e[strings.LastIndexByte(e, ' ')+1:]
		fences = append(fences, f)
	}
	return fences
}

func TestFrameSequence(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	for i := 0; i < 10; i++ {
		if rebuild := h.frame(t); rebuild {
			t.Fatalf("Scheduler.Frame %d: spurious rebuild request", i)
		}
	}

	if n := h.sched.Frames(); n != 10 {
		t.Fatalf("Scheduler.Frames:\nhave %v\nwant 10", n)
	}
	if n := h.dev.Acquires(); n != 10 {
		t.Fatalf("acquires:\nhave %v\nwant 10", n)
	}
	if n := h.dev.Submits(); n != 10 {
		t.Fatalf("submits:\nhave %v\nwant 10", n)
	}
	if n := h.dev.Presents(); n != 10 {
		t.Fatalf("presents:\nhave %v\nwant 10", n)
	}
	h.checkViolations(t)
}

// Frame n must run on slot n mod N. Two slots means two fences
// strictly alternating across submissions.
func TestSlotAlternation(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	for i := 0; i < 10; i++ {
		h.frame(t)
	}
	fences := submitFences(h.dev.Events())
	if len(fences) != 10 {
		t.Fatalf("submissions:\nhave %v\nwant 10", len(fences))
	}
	if fences[0] == fences[1] {
		t.Fatalf("slot fences: frames 0 and 1 share fence %v", fences[0])
	}
	for i, f := range fences {
		if f != fences[i%2] {
			t.Fatalf("slot fence of frame %d:\nhave %v\nwant %v", i, f, fences[i%2])
		}
	}
	h.checkViolations(t)
}

// With three slots the fence pattern has period three, not a power
// of two.
func TestSlotWrapPeriodThree(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 3)
	defer h.destroy(t)

	for i := 0; i < 9; i++ {
		h.frame(t)
	}
	fences := submitFences(h.dev.Events())
	if len(fences) != 9 {
		t.Fatalf("submissions:\nhave %v\nwant 9", len(fences))
	}
	if fences[0] == fences[1] || fences[1] == fences[2] || fences[0] == fences[2] {
		t.Fatalf("slot fences: first three frames not distinct: %v", fences[:3])
	}
	for i, f := range fences {
		if f != fences[i%3] {
			t.Fatalf("slot fence of frame %d:\nhave %v\nwant %v", i, f, fences[i%3])
		}
	}
	h.checkViolations(t)
}

// A stale chain at acquisition aborts the frame: no submission, no
// present, no frame counter advance. After the rebuild the same
// frame runs again.
func TestOutOfDateAcquire(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	h.dev.ScriptAcquire(5, driver.SurfaceOutOfDate)

	presented := 0
	for presented < 10 {
		rebuild := h.frame(t)
		if rebuild {
			h.rebuild(t)
		}
		presented = int(h.dev.Presents())
	}

	if n := h.sched.Frames(); n != 10 {
		t.Fatalf("Scheduler.Frames:\nhave %v\nwant 10", n)
	}
	// One extra acquisition for the aborted attempt.
	if n := h.dev.Acquires(); n != 11 {
		t.Fatalf("acquires:\nhave %v\nwant 11", n)
	}
	if n := h.dev.Submits(); n != 10 {
		t.Fatalf("submits:\nhave %v\nwant 10", n)
	}
	if g := h.chain.Generation(); g != 2 {
		t.Fatalf("Chain.Generation:\nhave %v\nwant 2", g)
	}
	h.checkViolations(t)
}

// A suboptimal acquisition keeps the image usable: the frame
// completes and only then is a rebuild requested.
func TestSuboptimalAcquire(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	h.dev.ScriptAcquire(2, driver.SurfaceSuboptimal)

	for i := 0; i < 3; i++ {
		rebuild := h.frame(t)
		if rebuild != (i == 2) {
			t.Fatalf("Scheduler.Frame %d rebuild:\nhave %v\nwant %v", i, rebuild, i == 2)
		}
	}
	if n := h.sched.Frames(); n != 3 {
		t.Fatalf("Scheduler.Frames:\nhave %v\nwant 3", n)
	}
	if n := h.dev.Presents(); n != 3 {
		t.Fatalf("presents:\nhave %v\nwant 3", n)
	}
	h.checkViolations(t)
}

// A suboptimal or stale present still returned the image, so the
// frame counts; the rebuild happens between frames.
func TestSuboptimalPresent(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	h.dev.ScriptPresent(4, driver.SurfaceSuboptimal)

	presented := 0
	for presented < 10 {
		if rebuild := h.frame(t); rebuild {
			h.rebuild(t)
		}
		presented = int(h.dev.Presents())
	}

	if n := h.sched.Frames(); n != 10 {
		t.Fatalf("Scheduler.Frames:\nhave %v\nwant 10", n)
	}
	if n := h.dev.Acquires(); n != 10 {
		t.Fatalf("acquires:\nhave %v\nwant 10", n)
	}
	if g := h.chain.Generation(); g != 2 {
		t.Fatalf("Chain.Generation:\nhave %v\nwant 2", g)
	}
	h.checkViolations(t)
}

// More slots than images forces a newer slot to wait on the fence
// of the older slot that last rendered to the image it acquired.
func TestImageReuseAcrossSlots(t *testing.T) {
	cfg := drivertest.DefaultConfig()
	cfg.Caps.MinImages = 1
	cfg.Caps.MaxImages = 2
	h := newHarness(t, cfg, 3)
	defer h.destroy(t)

	if k := h.graph.ImageCount(); k != 2 {
		t.Fatalf("images:\nhave %v\nwant 2", k)
	}
	for i := 0; i < 12; i++ {
		h.frame(t)
	}
	if n := h.dev.Presents(); n != 12 {
		t.Fatalf("presents:\nhave %v\nwant 12", n)
	}
	h.checkViolations(t)
}

func TestSubmitFailureIsFatal(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)

	h.dev.FailSubmit(0, driver.ErrDeviceLost)

	_, err := h.sched.Frame(h.chain, h.graph, h.rec, 0)
	if !errors.Is(err, driver.ErrDeviceLost) {
		t.Fatalf("Scheduler.Frame error:\nhave %v\nwant %v", err, driver.ErrDeviceLost)
	}
}

func TestSchedulerRejectsZeroSlots(t *testing.T) {
	dev := drivertest.New(drivertest.DefaultConfig())
	if _, err := NewScheduler(dev, 0); err == nil {
		t.Fatalf("NewScheduler(0): error expected")
	}
}
