// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"fmt"
	"reflect"
	"testing"

	"vkflight/driver"
	"vkflight/driver/drivertest"
)

func TestRecordedSequences(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	k := h.graph.ImageCount()
	if k != len(h.chain.Views()) {
		t.Fatalf("sequence count:\nhave %v\nwant %v", k, len(h.chain.Views()))
	}
	ext := h.chain.Extent()
	for i := 0; i < k; i++ {
		cmd, ok := h.rec.Cmd(i).(*drivertest.CmdBuffer)
		if !ok {
			t.Fatalf("Recorder.Cmd(%d): not a test command buffer", i)
		}
		want := []string{
			"begin",
			fmt.Sprintf("begin pass image %d %dx%d", i, ext.Width, ext.Height),
			"set pipeline",
			"set vertex buf",
			"set index buf",
			fmt.Sprintf("set uniforms %d", i),
			"draw indexed 6",
			"end pass",
			"end",
		}
		if ops := cmd.Ops(); !reflect.DeepEqual(ops, want) {
			t.Fatalf("sequence %d:\nhave %v\nwant %v", i, ops, want)
		}
		if img := cmd.Image(); img != i {
			t.Fatalf("sequence %d image:\nhave %v\nwant %v", i, img, i)
		}
	}
}

// Sequences are recorded once; scheduling frames must not re-record
// them.
func TestRecordOnce(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	before := make([][]string, h.graph.ImageCount())
	for i := range before {
		before[i] = h.rec.Cmd(i).(*drivertest.CmdBuffer).Ops()
	}
	for i := 0; i < 6; i++ {
		h.frame(t)
	}
	for i := range before {
		if ops := h.rec.Cmd(i).(*drivertest.CmdBuffer).Ops(); !reflect.DeepEqual(ops, before[i]) {
			t.Fatalf("sequence %d changed during scheduling:\nhave %v\nwant %v", i, ops, before[i])
		}
	}
	h.checkViolations(t)
}

// Rebuilding produces sequences recorded against the new
// generation's extent.
func TestRecorderFollowsGeneration(t *testing.T) {
	h := newHarness(t, drivertest.DefaultConfig(), 2)
	defer h.destroy(t)

	h.frame(t)
	h.dev.SetCaps(driver.SurfaceCaps{
		MinImages: 2,
		MaxImages: 8,
		Current:   driver.Extent2D{Width: 400, Height: 300},
		Fixed:     true,
		Min:       driver.Extent2D{Width: 1, Height: 1},
		Max:       driver.Extent2D{Width: 4096, Height: 4096},
	})
	h.rebuild(t)

	cmd := h.rec.Cmd(0).(*drivertest.CmdBuffer)
	want := "begin pass image 0 400x300"
	if ops := cmd.Ops(); len(ops) < 2 || ops[1] != want {
		t.Fatalf("sequence 0 after rebuild:\nhave %v\nwant pass %q", ops, want)
	}
	h.frame(t)
	h.checkViolations(t)
}
