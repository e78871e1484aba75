// Copyright 2025 The vkflight Authors. All rights reserved.

package driver_test

import (
	"testing"

	"vkflight/driver"
)

func TestSurfaceStatusString(t *testing.T) {
	for _, c := range [...]struct {
		status driver.SurfaceStatus
		want   string
	}{
		{driver.SurfaceOK, "ok"},
		{driver.SurfaceSuboptimal, "suboptimal"},
		{driver.SurfaceOutOfDate, "out of date"},
		{driver.SurfaceStatus(-1), "invalid status"},
	} {
		if s := c.status.String(); s != c.want {
			t.Fatalf("SurfaceStatus.String:\nhave %q\nwant %q", s, c.want)
		}
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	errs := []error{
		driver.ErrNoDevice,
		driver.ErrSurfaceIncompatible,
		driver.ErrResourceExhausted,
		driver.ErrDeviceLost,
		driver.ErrSubmitFailed,
	}
	for i := range errs {
		for j := 0; j < i; j++ {
			if errs[i] == errs[j] {
				t.Fatalf("driver errors: %v and %v are the same value", errs[i], errs[j])
			}
		}
	}
}
