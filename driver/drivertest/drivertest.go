// Copyright 2025 The vkflight Authors. All rights reserved.

// Package drivertest provides a scripted, in-memory implementation
// of the driver interfaces for deterministic testing of frame
// scheduling and chain lifecycle code.
//
// The device completes GPU work lazily: a pending submission retires
// when something waits on its fence (or on device idle). Ordering
// rules that a real device enforces in hardware are checked eagerly
// and recorded as violations: submitting against a fence that was
// not reset, waiting on a semaphore with no pending signal, acquiring
// an image that is still acquired, or destroying a chain with work
// in flight.
package drivertest

import (
	"fmt"
	"sync"
	"time"

	"vkflight/driver"
)

// Config describes the simulated surface.
type Config struct {
	Caps    driver.SurfaceCaps
	Formats []driver.SurfaceFormat
	Modes   []driver.PresentMode
}

// DefaultConfig returns a surface with three-image headroom, a
// preferred sRGB format and mailbox support, extent 800x600.
func DefaultConfig() Config {
	return Config{
		Caps: driver.SurfaceCaps{
			MinImages: 2,
			MaxImages: 8,
			Min:       driver.Extent2D{Width: 1, Height: 1},
			Max:       driver.Extent2D{Width: 4096, Height: 4096},
			Current:   driver.Extent2D{Width: 800, Height: 600},
			Fixed:     true,
		},
		Formats: []driver.SurfaceFormat{
			{Format: driver.RGBA8Unorm, Space: driver.ColorSpaceSRGBNonlinear},
			{Format: driver.BGRA8sRGB, Space: driver.ColorSpaceSRGBNonlinear},
		},
		Modes: []driver.PresentMode{driver.ModeFIFO, driver.ModeMailbox},
	}
}

// Device implements driver.Device.
type Device struct {
	mu  sync.Mutex
	cfg Config

	queue *Queue

	nextID  int
	pending []*submission

	acquires int
	submits  int
	presents int

	acquireScript map[int]driver.SurfaceStatus
	presentScript map[int]driver.SurfaceStatus
	submitErr     map[int]error
	onSubmit      func(n int)

	events     []string
	violations []string

	chain     *Chain // current chain, nil after destroy
	chainGen  int
	idleWaits int
	destroyed bool
}

// submission is a batch pending on the simulated GPU.
type submission struct {
	fence  *Fence
	images []int
	chain  *Chain
}

// New creates a scripted device.
func New(cfg Config) *Device {
	d := &Device{
		cfg:           cfg,
		acquireScript: make(map[int]driver.SurfaceStatus),
		presentScript: make(map[int]driver.SurfaceStatus),
		submitErr:     make(map[int]error),
	}
	d.queue = &Queue{d: d}
	return d
}

// ScriptAcquire makes the n-th Acquire call (0-based, counted across
// chain rebuilds) report status.
func (d *Device) ScriptAcquire(n int, status driver.SurfaceStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireScript[n] = status
}

// ScriptPresent makes the n-th Present call report status.
func (d *Device) ScriptPresent(n int, status driver.SurfaceStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentScript[n] = status
}

// FailSubmit makes the n-th Submit call fail with err.
func (d *Device) FailSubmit(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitErr[n] = err
}

// SetCaps replaces the surface capabilities, as a window resize
// would.
func (d *Device) SetCaps(caps driver.SurfaceCaps) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.Caps = caps
}

// OnSubmit installs fn to be called after every successful Submit,
// outside the device lock, with the submission ordinal. Tests use it
// to inject actions between a frame's submission and its present.
func (d *Device) OnSubmit(fn func(n int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSubmit = fn
}

func (d *Device) submitHook() func(int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onSubmit
}

// Counters.
func (d *Device) Acquires() int { d.mu.Lock(); defer d.mu.Unlock(); return d.acquires }
func (d *Device) Submits() int  { d.mu.Lock(); defer d.mu.Unlock(); return d.submits }
func (d *Device) Presents() int { d.mu.Lock(); defer d.mu.Unlock(); return d.presents }

// ChainGenerations returns how many chains have been created.
func (d *Device) ChainGenerations() int { d.mu.Lock(); defer d.mu.Unlock(); return d.chainGen }

// IdleWaits returns how many times WaitIdle was called.
func (d *Device) IdleWaits() int { d.mu.Lock(); defer d.mu.Unlock(); return d.idleWaits }

// Pending returns the number of unretired submissions.
func (d *Device) Pending() int { d.mu.Lock(); defer d.mu.Unlock(); return len(d.pending) }

// Events returns the ordered operation log.
func (d *Device) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Violations returns the ordering rules broken so far.
// A correct caller produces none.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

func (d *Device) logf(format string, args ...any) {
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

func (d *Device) violatef(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) id() int {
	d.nextID++
	return d.nextID
}

// retire completes a pending submission: the fence signals and the
// images it rendered stop being referenced by in-flight work.
func (d *Device) retire(sub *submission) {
	sub.fence.signaled = true
	sub.fence.pending = nil
	for i, p := range d.pending {
		if p == sub {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			break
		}
	}
	d.logf("retire fence#%d", sub.fence.n)
}

// SurfaceCaps implements driver.Device.
func (d *Device) SurfaceCaps() (driver.SurfaceCaps, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Caps, nil
}

// SurfaceFormats implements driver.Device.
func (d *Device) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.SurfaceFormat(nil), d.cfg.Formats...), nil
}

// PresentModes implements driver.Device.
func (d *Device) PresentModes() ([]driver.PresentMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.PresentMode(nil), d.cfg.Modes...), nil
}

// NewChain implements driver.Device.
func (d *Device) NewChain(cfg driver.ChainConfig, old driver.Chain) (driver.Chain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newChainLocked(cfg, old)
}

// Chain implements driver.Chain over simulated images.
type Chain struct {
	d        *Device
	n        int
	cfg      driver.ChainConfig
	views    []driver.ImageView
	acquired []bool
	next     int
	broken   bool
	dead     bool
}

func (d *Device) newChainLocked(cfg driver.ChainConfig, old driver.Chain) (*Chain, error) {
	k := cfg.MinImages
	if k < d.cfg.Caps.MinImages {
		k = d.cfg.Caps.MinImages
	}
	if d.cfg.Caps.MaxImages != 0 && k > d.cfg.Caps.MaxImages {
		k = d.cfg.Caps.MaxImages
	}
	if o, ok := old.(*Chain); ok && o != nil && !o.dead {
		// Handing over a live old chain is allowed; it still has
		// to be destroyed by the caller.
		o.broken = true
	}
	d.chainGen++
	c := &Chain{d: d, n: d.chainGen, cfg: cfg}
	c.views = make([]driver.ImageView, k)
	c.acquired = make([]bool, k)
	for i := range c.views {
		c.views[i] = &ImageView{d: d, chain: c, image: i}
	}
	d.chain = c
	d.logf("chain#%d create k=%d %dx%d", c.n, k, cfg.Extent.Width, cfg.Extent.Height)
	return c, nil
}

// Views implements driver.Chain.
func (c *Chain) Views() []driver.ImageView {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return append([]driver.ImageView(nil), c.views...)
}

// Format implements driver.Chain.
func (c *Chain) Format() driver.PixelFmt { return c.cfg.Format.Format }

// Extent implements driver.Chain.
func (c *Chain) Extent() driver.Extent2D { return c.cfg.Extent }

// Acquire implements driver.Chain.
func (c *Chain) Acquire(ready driver.Semaphore) (int, driver.SurfaceStatus, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	n := c.d.acquires
	c.d.acquires++
	if c.dead {
		c.d.violatef("acquire on destroyed chain#%d", c.n)
	}
	status, scripted := c.d.acquireScript[n]
	if c.broken && !scripted {
		status = driver.SurfaceOutOfDate
	}
	if status == driver.SurfaceOutOfDate {
		c.broken = true
		c.d.logf("acquire %d: out of date", n)
		return -1, driver.SurfaceOutOfDate, nil
	}
	// Round-robin over images not currently acquired.
	k := len(c.views)
	idx := -1
	for i := 0; i < k; i++ {
		cand := (c.next + i) % k
		if !c.acquired[cand] {
			idx = cand
			break
		}
	}
	if idx < 0 {
		c.d.violatef("acquire %d: every image already acquired", n)
		return -1, driver.SurfaceOK, driver.ErrSubmitFailed
	}
	c.next = (idx + 1) % k
	c.acquired[idx] = true
	sem, ok := ready.(*Semaphore)
	if !ok || sem == nil {
		c.d.violatef("acquire %d: no ready semaphore", n)
	} else {
		sem.pending = true
	}
	c.d.logf("acquire %d: image %d %s", n, idx, status)
	return idx, status, nil
}

// Destroy implements driver.Chain.
func (c *Chain) Destroy() {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	for _, sub := range c.d.pending {
		if sub.chain == c {
			c.d.violatef("chain#%d destroyed with work in flight", c.n)
		}
	}
	c.dead = true
	if c.d.chain == c {
		c.d.chain = nil
	}
	c.d.logf("chain#%d destroy", c.n)
}

// ImageView implements driver.ImageView.
type ImageView struct {
	d     *Device
	chain *Chain
	image int
	dead  bool
}

// Destroy implements driver.Destroyer.
func (v *ImageView) Destroy() { v.dead = true }

// Semaphore implements driver.Semaphore.
type Semaphore struct {
	d *Device
	n int
	// pending is set when a queue operation will signal the
	// semaphore, and consumed by the operation that waits on it.
	pending bool
	dead    bool
}

// Destroy implements driver.Destroyer.
func (s *Semaphore) Destroy() { s.dead = true }

// NewSemaphore implements driver.Device.
func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Semaphore{d: d, n: d.id()}, nil
}

// Fence implements driver.Fence.
type Fence struct {
	d        *Device
	n        int
	signaled bool
	pending  *submission
	dead     bool
}

// NewFence implements driver.Device.
func (d *Device) NewFence(signaled bool) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Fence{d: d, n: d.id(), signaled: signaled}, nil
}

// Wait implements driver.Fence. Waiting on a pending fence retires
// its submission; waiting on a fence that is neither signaled nor
// pending would deadlock on real hardware and is reported as such.
func (f *Fence) Wait(timeout time.Duration) error {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	_ = timeout
	if f.signaled {
		return nil
	}
	if f.pending == nil {
		f.d.violatef("wait on fence#%d with no pending submission", f.n)
		return fmt.Errorf("drivertest: fence#%d would never signal", f.n)
	}
	f.d.retire(f.pending)
	return nil
}

// Reset implements driver.Fence.
func (f *Fence) Reset() error {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	if f.pending != nil {
		f.d.violatef("reset of fence#%d while submission pending", f.n)
	}
	f.signaled = false
	return nil
}

// Destroy implements driver.Destroyer.
func (f *Fence) Destroy() { f.dead = true }

// Queue implements driver.Queue.
type Queue struct {
	d *Device
}

// Submit implements driver.Queue.
func (q *Queue) Submit(sub driver.Submit, fence driver.Fence) error {
	n, err := q.submit(sub, fence)
	if err == nil {
		if fn := q.d.submitHook(); fn != nil {
			fn(n)
		}
	}
	return err
}

func (q *Queue) submit(sub driver.Submit, fence driver.Fence) (int, error) {
	q.d.mu.Lock()
	defer q.d.mu.Unlock()
	n := q.d.submits
	q.d.submits++
	if err := q.d.submitErr[n]; err != nil {
		q.d.logf("submit %d: failed", n)
		return n, err
	}
	s := &submission{}
	if f, ok := fence.(*Fence); ok && f != nil {
		if f.signaled {
			q.d.violatef("submit %d: fence#%d not reset before submission", n, f.n)
		}
		if f.pending != nil {
			q.d.violatef("submit %d: fence#%d already pending", n, f.n)
		}
		s.fence = f
		f.pending = s
	} else {
		q.d.violatef("submit %d: no fence", n)
	}
	if w, ok := sub.Wait.(*Semaphore); ok && w != nil {
		if !w.pending {
			q.d.violatef("submit %d: wait semaphore#%d has no pending signal", n, w.n)
		}
		w.pending = false
	}
	for _, sig := range sub.Signal {
		if g, ok := sig.(*Semaphore); ok && g != nil {
			g.pending = true
		}
	}
	images := ""
	for _, cb := range sub.Cmds {
		b, ok := cb.(*CmdBuffer)
		if !ok {
			continue
		}
		if !b.ended {
			q.d.violatef("submit %d: command buffer not ended", n)
		}
		if b.fb != nil {
			s.images = append(s.images, b.fb.view.image)
			s.chain = b.fb.view.chain
			images += fmt.Sprintf(" image %d", b.fb.view.image)
		}
	}
	q.d.pending = append(q.d.pending, s)
	if s.fence != nil {
		q.d.logf("submit %d:%s fence#%d", n, images, s.fence.n)
	}
	return n, nil
}

// Present implements driver.Queue. The image is returned to the
// chain regardless of the reported status.
func (q *Queue) Present(c driver.Chain, index int, wait driver.Semaphore) (driver.SurfaceStatus, error) {
	q.d.mu.Lock()
	defer q.d.mu.Unlock()
	n := q.d.presents
	q.d.presents++
	ch, ok := c.(*Chain)
	if !ok || ch == nil {
		q.d.violatef("present %d: no chain", n)
		return driver.SurfaceOK, driver.ErrSubmitFailed
	}
	if index < 0 || index >= len(ch.acquired) || !ch.acquired[index] {
		q.d.violatef("present %d: image %d not acquired", n, index)
	} else {
		ch.acquired[index] = false
	}
	if w, ok := wait.(*Semaphore); ok && w != nil {
		if !w.pending {
			q.d.violatef("present %d: wait semaphore#%d has no pending signal", n, w.n)
		}
		w.pending = false
	} else {
		q.d.violatef("present %d: no wait semaphore", n)
	}
	status := q.d.presentScript[n]
	if status == driver.SurfaceOutOfDate {
		ch.broken = true
	}
	q.d.logf("present %d: image %d %s", n, index, status)
	return status, nil
}

// GraphicsQueue implements driver.Device.
func (d *Device) GraphicsQueue() driver.Queue { return d.queue }

// PresentQueue implements driver.Device.
func (d *Device) PresentQueue() driver.Queue { return d.queue }

// WaitIdle implements driver.Device.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idleWaits++
	for len(d.pending) > 0 {
		d.retire(d.pending[0])
	}
	d.logf("wait idle")
	return nil
}

// Destroy implements driver.Destroyer.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) > 0 {
		d.violatef("device destroyed with %d submissions in flight", len(d.pending))
	}
	d.destroyed = true
}

// RenderPass implements driver.RenderPass.
type RenderPass struct {
	d    *Device
	pf   driver.PixelFmt
	dead bool
}

// NewRenderPass implements driver.Device.
func (d *Device) NewRenderPass(pf driver.PixelFmt) (driver.RenderPass, error) {
	return &RenderPass{d: d, pf: pf}, nil
}

// NewFB implements driver.RenderPass.
func (p *RenderPass) NewFB(view driver.ImageView, width, height int) (driver.Framebuf, error) {
	v, ok := view.(*ImageView)
	if !ok {
		return nil, fmt.Errorf("drivertest: foreign image view")
	}
	if v.dead {
		p.d.violatef("framebuffer over destroyed view (image %d)", v.image)
	}
	return &Framebuf{d: p.d, view: v, width: width, height: height}, nil
}

// Destroy implements driver.Destroyer.
func (p *RenderPass) Destroy() { p.dead = true }

// Framebuf implements driver.Framebuf.
type Framebuf struct {
	d             *Device
	view          *ImageView
	width, height int
	dead          bool
}

// Destroy implements driver.Destroyer.
func (f *Framebuf) Destroy() { f.dead = true }

// Pipeline implements driver.Pipeline.
type Pipeline struct {
	d     *Device
	state driver.GraphState
	dead  bool
}

// NewPipeline implements driver.Device.
func (d *Device) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	return &Pipeline{d: d, state: *state}, nil
}

// Destroy implements driver.Destroyer.
func (p *Pipeline) Destroy() { p.dead = true }

// Buffer implements driver.Buffer.
type Buffer struct {
	d    *Device
	data []byte
	usg  driver.Usage
	dead bool
}

// NewBuffer implements driver.Device.
func (d *Device) NewBuffer(data []byte, usg driver.Usage) (driver.Buffer, error) {
	return &Buffer{d: d, data: append([]byte(nil), data...), usg: usg}, nil
}

// Destroy implements driver.Destroyer.
func (b *Buffer) Destroy() { b.dead = true }

// Uniforms implements driver.Uniforms.
type Uniforms struct {
	d      *Device
	slots  [][]byte
	writes int
	dead   bool
}

// NewUniforms implements driver.Device.
func (d *Device) NewUniforms(n, size int) (driver.Uniforms, error) {
	u := &Uniforms{d: d}
	u.slots = make([][]byte, n)
	for i := range u.slots {
		u.slots[i] = make([]byte, size)
	}
	return u, nil
}

// Count implements driver.Uniforms.
func (u *Uniforms) Count() int { return len(u.slots) }

// Write implements driver.Uniforms.
func (u *Uniforms) Write(i int, data []byte) error {
	u.d.mu.Lock()
	defer u.d.mu.Unlock()
	if i < 0 || i >= len(u.slots) {
		return fmt.Errorf("drivertest: uniform slot %d out of range", i)
	}
	if len(data) > len(u.slots[i]) {
		return fmt.Errorf("drivertest: uniform write of %d bytes exceeds slot size %d", len(data), len(u.slots[i]))
	}
	copy(u.slots[i], data)
	u.writes++
	return nil
}

// Destroy implements driver.Destroyer.
func (u *Uniforms) Destroy() { u.dead = true }

// CmdBuffer implements driver.CmdBuffer.
type CmdBuffer struct {
	d     *Device
	n     int
	ops   []string
	begun bool
	ended bool
	fb    *Framebuf
	dead  bool
}

// NewCmdBuffers implements driver.Device.
func (d *Device) NewCmdBuffers(n int) ([]driver.CmdBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cbs := make([]driver.CmdBuffer, n)
	for i := range cbs {
		cbs[i] = &CmdBuffer{d: d, n: d.id()}
	}
	return cbs, nil
}

// Ops returns the commands recorded since the last Begin.
func (b *CmdBuffer) Ops() []string {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	return append([]string(nil), b.ops...)
}

// Image returns the image index the buffer renders into, or -1.
func (b *CmdBuffer) Image() int {
	if b.fb == nil {
		return -1
	}
	return b.fb.view.image
}

func (b *CmdBuffer) op(s string) { b.ops = append(b.ops, s) }

// Begin implements driver.CmdBuffer.
func (b *CmdBuffer) Begin(simultaneous bool) error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.ops = b.ops[:0]
	b.begun = true
	b.ended = false
	b.fb = nil
	if !simultaneous {
		// The render loop resubmits recorded sequences; anything
		// else is a caller bug worth surfacing.
		b.d.violatef("cmd#%d begun without simultaneous use", b.n)
	}
	b.op("begin")
	return nil
}

// BeginPass implements driver.CmdBuffer.
func (b *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, ext driver.Extent2D, clear driver.ClearValue) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	if f, ok := fb.(*Framebuf); ok {
		if f.dead {
			b.d.violatef("cmd#%d pass over destroyed framebuffer", b.n)
		}
		b.fb = f
		b.op(fmt.Sprintf("begin pass image %d %dx%d", f.view.image, ext.Width, ext.Height))
	}
}

// SetPipeline implements driver.CmdBuffer.
func (b *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	if p, ok := pl.(*Pipeline); ok && p.dead {
		b.d.violatef("cmd#%d binds destroyed pipeline", b.n)
	}
	b.op("set pipeline")
}

// SetVertexBuf implements driver.CmdBuffer.
func (b *CmdBuffer) SetVertexBuf(buf driver.Buffer) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.op("set vertex buf")
}

// SetIndexBuf implements driver.CmdBuffer.
func (b *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.op("set index buf")
}

// SetUniforms implements driver.CmdBuffer.
func (b *CmdBuffer) SetUniforms(u driver.Uniforms, i int) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.op(fmt.Sprintf("set uniforms %d", i))
}

// DrawIndexed implements driver.CmdBuffer.
func (b *CmdBuffer) DrawIndexed(idxCount int) {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.op(fmt.Sprintf("draw indexed %d", idxCount))
}

// EndPass implements driver.CmdBuffer.
func (b *CmdBuffer) EndPass() {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.op("end pass")
}

// End implements driver.CmdBuffer.
func (b *CmdBuffer) End() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.ended = true
	b.op("end")
	return nil
}

// Reset implements driver.CmdBuffer.
func (b *CmdBuffer) Reset() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.ops = b.ops[:0]
	b.begun = false
	b.ended = false
	b.fb = nil
	return nil
}

// Destroy implements driver.Destroyer.
func (b *CmdBuffer) Destroy() { b.dead = true }
