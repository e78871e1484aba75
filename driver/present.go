// Copyright 2025 The vkflight Authors. All rights reserved.

package driver

// SurfaceStatus reports the relationship between a chain and its
// surface after an acquire or present operation.
// It is a status rather than an error because both recoverable
// conditions leave the device usable: the caller resolves them by
// rebuilding the chain at a well-defined point in its frame loop.
type SurfaceStatus int

const (
	// SurfaceOK means the chain still matches the surface.
	SurfaceOK SurfaceStatus = iota

	// SurfaceSuboptimal means the image was acquired or presented
	// successfully but the chain no longer matches the surface
	// exactly. The frame may proceed; a rebuild should follow.
	SurfaceSuboptimal

	// SurfaceOutOfDate means the chain is stale and the operation
	// did not complete. On acquire, no image was obtained and the
	// ready semaphore was not signaled. The chain must be rebuilt
	// before any further use.
	SurfaceOutOfDate
)

// String returns the name of the status.
func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceOK:
		return "ok"
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out of date"
	}
	return "invalid status"
}

// Chain is the interface that defines a presentation chain: the set
// of drawable images owned by the surface, their shared format and
// extent, and one derived view per image.
//
// To present, one calls Acquire to obtain the index of an image to
// target, submits work that waits on the ready semaphore and signals
// a completion semaphore, and then calls Queue.Present waiting on
// that completion semaphore.
type Chain interface {
	// Destroy releases the chain's images and views.
	// It must only be called once the device is idle or all work
	// referencing the images is fence-confirmed complete;
	// premature destruction while an image is referenced by
	// in-flight work is undefined behavior.
	Destroyer

	// Views returns one view per drawable image, indexed by the
	// image indices returned from Acquire. The slice is valid
	// until Destroy.
	Views() []ImageView

	// Format returns the images' pixel format.
	Format() PixelFmt

	// Extent returns the images' extent.
	Extent() Extent2D

	// Acquire obtains the index of the next drawable image,
	// arranging for ready to be signaled when the image is safe
	// to write. Acquisition order is not necessarily monotonic.
	//
	// A SurfaceOutOfDate status means no image was acquired and
	// the frame must be abandoned. A SurfaceSuboptimal status
	// means the returned index is usable this frame.
	Acquire(ready Semaphore) (int, SurfaceStatus, error)
}
