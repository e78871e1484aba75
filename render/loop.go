// Copyright 2025 The vkflight Authors. All rights reserved.

package render

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/loov/hrtime"
	"github.com/pkg/errors"

	"vkflight/driver"
)

// Surface provides the windowing state the loop needs. Both methods
// are called from the loop's goroutine only.
type Surface interface {
	// DrawableSize returns the drawable size in pixels. A
	// minimized window reports zero in either dimension.
	DrawableSize() (width, height int)

	// Dispatch processes pending window events without blocking.
	Dispatch()
}

// Loop drives frame scheduling against a window surface and owns
// every rendering resource. NotifyResize and NotifyClose may be
// called from window event handlers; everything else belongs to the
// goroutine that calls Run.
type Loop struct {
	dev   driver.Device
	srf   Surface
	sched *Scheduler
	mesh  *Mesh
	chain *Chain
	graph *Graph
	rec   *Recorder

	resize atomic.Bool
	closed atomic.Bool
}

// NewLoop creates the loop's resources: geometry, frame slots and
// the first chain generation. frames is the number of frames that
// may be in flight at once.
func NewLoop(dev driver.Device, srf Surface, frames int) (*Loop, error) {
	l := &Loop{dev: dev, srf: srf}

	var err error
	if l.mesh, err = NewMesh(dev); err != nil {
		return nil, err
	}
	if l.sched, err = NewScheduler(dev, frames); err != nil {
		l.mesh.Destroy()
		return nil, err
	}

	w, h := srf.DrawableSize()
	if l.chain, err = NewChain(dev, driver.Extent2D{Width: w, Height: h}); err != nil {
		l.sched.Destroy()
		l.mesh.Destroy()
		return nil, err
	}
	if err = l.buildGeneration(); err != nil {
		l.chain.Destroy()
		l.sched.Destroy()
		l.mesh.Destroy()
		return nil, err
	}
	return l, nil
}

// buildGeneration derives graph and recorder from the chain's
// current generation and resets image tracking.
func (l *Loop) buildGeneration() error {
	graph, err := NewGraph(l.dev, l.chain)
	if err != nil {
		return err
	}
	rec, err := NewRecorder(l.dev, graph, l.mesh)
	if err != nil {
		graph.Destroy()
		return err
	}
	l.graph = graph
	l.rec = rec
	l.sched.TrackImages(graph.ImageCount())
	return nil
}

// NotifyResize marks the chain stale so the next frame checkpoint
// rebuilds it. Safe to call from window event handlers.
func (l *Loop) NotifyResize() { l.resize.Store(true) }

// NotifyClose makes Run return after the current frame. Safe to
// call from window event handlers.
func (l *Loop) NotifyClose() { l.closed.Store(true) }

// Run schedules frames until NotifyClose, then waits for the device
// to go idle. A returned error means the device is in an unusable
// state and the loop cannot continue.
func (l *Loop) Run() error {
	start := hrtime.Now()
	statFrames := l.sched.Frames()
	statSince := start

	for !l.closed.Load() {
		l.srf.Dispatch()
		if l.closed.Load() {
			break
		}
		if l.resize.Swap(false) {
			if err := l.rebuild(); err != nil {
				return err
			}
			continue
		}

		elapsed := (hrtime.Now() - start).Seconds()
		rebuild, err := l.sched.Frame(l.chain, l.graph, l.rec, elapsed)
		if err != nil {
			return err
		}
		if rebuild {
			if err := l.rebuild(); err != nil {
				return err
			}
		}

		if n := l.sched.Frames(); n-statFrames >= 600 {
			dt := (hrtime.Now() - statSince).Seconds()
			log.Printf("render: %d frames in %.2fs (%.1f fps)", n-statFrames, dt, float64(n-statFrames)/dt)
			statFrames = n
			statSince = hrtime.Now()
		}
	}
	return errors.Wrap(l.dev.WaitIdle(), "draining device")
}

// rebuild replaces the chain generation and everything derived from
// it. It first waits for the drawable to regain a non-degenerate
// size, dispatching events meanwhile, then drains the device so the
// old generation's images are no longer referenced.
func (l *Loop) rebuild() error {
	w, h := l.srf.DrawableSize()
	for w == 0 || h == 0 {
		if l.closed.Load() {
			return nil
		}
		l.srf.Dispatch()
		time.Sleep(10 * time.Millisecond)
		w, h = l.srf.DrawableSize()
	}

	if err := l.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "draining device for rebuild")
	}

	l.rec.Destroy()
	l.graph.Destroy()
	if err := l.chain.Rebuild(driver.Extent2D{Width: w, Height: h}); err != nil {
		return err
	}
	if err := l.buildGeneration(); err != nil {
		return err
	}
	// The new generation supersedes any resize noted before the
	// size query above.
	l.resize.Store(false)
	return nil
}

// Destroy releases the loop's resources in reverse creation order.
// The device must be idle; Run leaves it so.
func (l *Loop) Destroy() {
	if l.rec != nil {
		l.rec.Destroy()
	}
	if l.graph != nil {
		l.graph.Destroy()
	}
	if l.chain != nil {
		l.chain.Destroy()
	}
	if l.sched != nil {
		l.sched.Destroy()
	}
	if l.mesh != nil {
		l.mesh.Destroy()
	}
}
