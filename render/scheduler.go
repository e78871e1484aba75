// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"github.com/pkg/errors"

	"vkflight/driver"
)

// frameSlot is the synchronization state of one in-flight frame.
// Slots are created once, before the first chain generation, and
// survive every rebuild.
type frameSlot struct {
	// imageAcquired is signaled when the acquired image is safe
	// to write.
	imageAcquired driver.Semaphore
	// renderComplete is signaled when the slot's submission
	// finishes, gating presentation.
	renderComplete driver.Semaphore
	// inFlight signals completion of the slot's submission to the
	// CPU. Created signaled so the slot's first use does not
	// block.
	inFlight driver.Fence
}

// Scheduler keeps up to N frames in flight. Frame n runs on slot
// n mod N, so a slot is reused only after N-1 other frames have
// been scheduled, and the wait on the slot's fence bounds how far
// the CPU may run ahead of the device.
type Scheduler struct {
	dev   driver.Device
	slots []frameSlot
	frame uint64

	// imageFences maps each drawable image to the fence of the
	// slot that last submitted work against it, or nil. Image
	// indices come back from acquisition in no particular order,
	// so an image may still be referenced by an older slot's
	// submission when a newer slot obtains it; waiting on the
	// recorded fence prevents overwriting its command sequence's
	// constant data while it is being read.
	imageFences []driver.Fence
}

// NewScheduler creates a scheduler with n frame slots. n must be at
// least 1.
func NewScheduler(dev driver.Device, n int) (*Scheduler, error) {
	if n < 1 {
		return nil, errors.Errorf("render: %d frame slots requested", n)
	}
	s := &Scheduler{dev: dev}
	for i := 0; i < n; i++ {
		var slot frameSlot
		var err error
		if slot.imageAcquired, err = dev.NewSemaphore(); err != nil {
			s.Destroy()
			return nil, errors.Wrapf(err, "creating slot %d", i)
		}
		if slot.renderComplete, err = dev.NewSemaphore(); err != nil {
			slot.imageAcquired.Destroy()
			s.Destroy()
			return nil, errors.Wrapf(err, "creating slot %d", i)
		}
		if slot.inFlight, err = dev.NewFence(true); err != nil {
			slot.imageAcquired.Destroy()
			slot.renderComplete.Destroy()
			s.Destroy()
			return nil, errors.Wrapf(err, "creating slot %d", i)
		}
		s.slots = append(s.slots, slot)
	}
	return s, nil
}

// TrackImages resets the image-to-fence association for a new chain
// generation of k images. It must be called after every chain
// (re)build, once the device is known idle.
func (s *Scheduler) TrackImages(k int) {
	s.imageFences = make([]driver.Fence, k)
}

// Frames returns the number of frames completed through the full
// submit and present path.
func (s *Scheduler) Frames() uint64 { return s.frame }

// SlotCount returns the number of frame slots.
func (s *Scheduler) SlotCount() int { return len(s.slots) }

// Frame schedules one frame: it throttles on the slot's fence,
// acquires an image, writes the frame's constant data, submits the
// image's pre-recorded sequence and queues the present.
//
// A true rebuild result means the chain no longer matches the
// surface and must be rebuilt. If the image acquisition reported
// the chain out of date, no work was submitted and the frame
// counter did not advance; after the rebuild the same slot retries
// the frame. In every other rebuild case the frame completed and
// the rebuild may happen before the next one.
//
// A non-nil error is fatal to the loop.
func (s *Scheduler) Frame(chain *Chain, graph *Graph, rec *Recorder, elapsed float64) (rebuild bool, err error) {
	slot := &s.slots[s.frame%uint64(len(s.slots))]

	// The fence was signaled at creation, so this returns
	// immediately until the slot wraps around.
	if err := slot.inFlight.Wait(-1); err != nil {
		return false, errors.Wrap(err, "waiting for slot fence")
	}

	idx, status, err := chain.Acquire(slot.imageAcquired)
	if err != nil {
		return false, errors.Wrap(err, "acquiring image")
	}
	if status == driver.SurfaceOutOfDate {
		// Nothing was acquired and imageAcquired has no pending
		// signal, so the slot is untouched and the frame can be
		// retried after the rebuild.
		return true, nil
	}
	rebuild = status == driver.SurfaceSuboptimal

	// The image may still be referenced by an older slot's
	// submission.
	if f := s.imageFences[idx]; f != nil && f != slot.inFlight {
		if err := f.Wait(-1); err != nil {
			return false, errors.Wrap(err, "waiting for image fence")
		}
	}
	s.imageFences[idx] = slot.inFlight

	if err := graph.UpdateTransform(idx, elapsed); err != nil {
		return false, errors.Wrap(err, "updating constant data")
	}

	// Reset only once submission is certain; an early reset would
	// deadlock the slot's next wait if this frame aborted.
	if err := slot.inFlight.Reset(); err != nil {
		return false, errors.Wrap(err, "resetting slot fence")
	}
	sub := driver.Submit{
		Wait:      slot.imageAcquired,
		WaitStage: driver.StageColorOutput,
		Cmds:      []driver.CmdBuffer{rec.Cmd(idx)},
		Signal:    []driver.Semaphore{slot.renderComplete},
	}
	if err := s.dev.GraphicsQueue().Submit(sub, slot.inFlight); err != nil {
		return false, errors.Wrap(err, "submitting frame")
	}

	status, err = s.dev.PresentQueue().Present(chain.chain, idx, slot.renderComplete)
	if err != nil {
		return false, errors.Wrap(err, "presenting image")
	}
	if status != driver.SurfaceOK {
		rebuild = true
	}

	s.frame++
	return rebuild, nil
}

// Destroy releases the slots' synchronization objects. All
// submissions must have completed.
func (s *Scheduler) Destroy() {
	for _, slot := range s.slots {
		if slot.inFlight != nil {
			slot.inFlight.Destroy()
		}
		if slot.renderComplete != nil {
			slot.renderComplete.Destroy()
		}
		if slot.imageAcquired != nil {
			slot.imageAcquired.Destroy()
		}
	}
	s.slots = nil
	s.imageFences = nil
}
