// Copyright 2025 The vkflight Authors. All rights reserved.

// Package driver defines the set of GPU interfaces that the render
// loop consumes.
// It is designed so that a platform-specific API can implement the
// interfaces in a mostly straightforward manner, and so that a
// scripted implementation can stand in for a real device in tests.
package driver

import "errors"

// ErrNoDevice means that no suitable device could be found.
var ErrNoDevice = errors.New("driver: no suitable device found")

// ErrSurfaceIncompatible means that the presentation surface
// advertises no supported format or presentation mode.
// It indicates a configuration failure and is not recoverable.
var ErrSurfaceIncompatible = errors.New("driver: no compatible surface format or present mode")

// ErrResourceExhausted means that host or device memory could not
// be allocated.
var ErrResourceExhausted = errors.New("driver: out of host or device memory")

// ErrDeviceLost means that the device is in an unrecoverable state.
// Upon encountering this error, the application must stop submitting
// work and destroy everything that it created from the Device.
var ErrDeviceLost = errors.New("driver: device lost")

// ErrSubmitFailed means that a queue submission was rejected for a
// reason other than device loss. It is not recoverable.
var ErrSubmitFailed = errors.New("driver: queue submission failed")

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface hold resources that are not
// managed by GC, so Destroy must be called explicitly to ensure
// such resources are released.
type Destroyer interface {
	Destroy()
}
