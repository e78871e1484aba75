// Copyright 2025 The vkflight Authors. All rights reserved.

package driver

import "time"

// Device is the main interface to an underlying implementation.
// It represents a selected GPU plus one graphics queue and one
// presentation queue, created once at startup. All resources that
// the render loop uses are created through it.
type Device interface {
	Destroyer

	// SurfaceCaps returns the current capabilities of the
	// presentation surface. The values may change whenever the
	// window is resized, so callers must re-query before every
	// chain creation.
	SurfaceCaps() (SurfaceCaps, error)

	// SurfaceFormats returns the format/color space pairs that
	// the surface supports, in the order the device advertises
	// them. The slice is never empty on success.
	SurfaceFormats() ([]SurfaceFormat, error)

	// PresentModes returns the presentation modes that the
	// surface supports. ModeFIFO is guaranteed to be present.
	PresentModes() ([]PresentMode, error)

	// NewChain creates a new presentation chain.
	// old, if not nil, is handed to the implementation so it can
	// transfer ownership of still-presentable resources; it must
	// still be destroyed by the caller afterwards.
	NewChain(cfg ChainConfig, old Chain) (Chain, error)

	// NewSemaphore creates a device-side ordering primitive.
	// Semaphores order work between queue operations only; they
	// are never observable from the CPU.
	NewSemaphore() (Semaphore, error)

	// NewFence creates a CPU-observable completion signal.
	NewFence(signaled bool) (Fence, error)

	// NewRenderPass creates a single-subpass render pass that
	// clears a color attachment of the given format on load and
	// leaves it ready for presentation.
	NewRenderPass(pf PixelFmt) (RenderPass, error)

	// NewPipeline creates a graphics pipeline from state.
	NewPipeline(state *GraphState) (Pipeline, error)

	// NewBuffer creates a device-private buffer initialized with
	// data. The upload happens through an internal staging copy
	// and is complete when NewBuffer returns.
	NewBuffer(data []byte, usg Usage) (Buffer, error)

	// NewUniforms creates n host-writable constant-data slots of
	// size bytes each, individually bindable in command buffers.
	NewUniforms(n int, size int) (Uniforms, error)

	// NewCmdBuffers allocates n command buffers from the device's
	// command pool.
	NewCmdBuffers(n int) ([]CmdBuffer, error)

	// GraphicsQueue returns the queue that executes rendering
	// command buffers.
	GraphicsQueue() Queue

	// PresentQueue returns the queue that presents chain images.
	// It may be the same queue returned by GraphicsQueue.
	PresentQueue() Queue

	// WaitIdle blocks until all submitted work on every queue has
	// completed execution.
	WaitIdle() error
}

// Queue is the interface that defines a device execution queue.
// There is no implicit ordering between submissions to independent
// queues; ordering exists only through semaphores and fences.
type Queue interface {
	// Submit enqueues command buffers for execution.
	// fence, if not nil, is signaled when every command buffer in
	// the submission completes; it must be unsignaled when passed.
	Submit(sub Submit, fence Fence) error

	// Present queues the chain image identified by index for
	// presentation, after wait is signaled.
	// The image is returned to the chain even when the reported
	// status is SurfaceSuboptimal or SurfaceOutOfDate.
	Present(c Chain, index int, wait Semaphore) (SurfaceStatus, error)
}

// Submit describes a single queue submission.
type Submit struct {
	// Wait, if not nil, must be signaled before execution reaches
	// WaitStage. Earlier pipeline stages are free to run.
	Wait      Semaphore
	WaitStage Stage
	Cmds      []CmdBuffer
	// Signal semaphores are signaled when execution completes.
	Signal []Semaphore
}

// Stage identifies a pipeline stage used as a wait point.
type Stage int

// Wait stages.
const (
	// StageColorOutput is the stage where color attachment
	// writes happen. Waiting here leaves vertex processing
	// unblocked.
	StageColorOutput Stage = iota
	// StageTop blocks the whole pipeline.
	StageTop
)

// Fence is a CPU-observable signal marking completion of GPU work.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signaled. A negative timeout
	// waits without bound. It returns ErrDeviceLost if the device
	// was lost, and a wrapped timeout error when the wait expires
	// before the signal.
	Wait(timeout time.Duration) error

	// Reset returns the fence to the unsignaled state.
	// It must not be called while the fence is associated with a
	// submission that has not yet completed.
	Reset() error
}

// Semaphore is a device-side-only ordering primitive between queue
// operations.
type Semaphore interface {
	Destroyer
}

// CmdBuffer is the interface that defines a command buffer.
// The render loop records each buffer once per chain generation and
// then submits it repeatedly, so Begin is always called with
// simultaneous use. A buffer may be enqueued by one frame slot while
// a previous submission of the same buffer is still executing.
type CmdBuffer interface {
	Destroyer

	// Begin prepares the command buffer for recording.
	// simultaneous allows the buffer to be resubmitted while a
	// prior submission is still pending.
	Begin(simultaneous bool) error

	// BeginPass begins the render pass against fb, clearing the
	// color attachment to clear.
	BeginPass(pass RenderPass, fb Framebuf, ext Extent2D, clear ClearValue)

	// SetPipeline binds the graphics pipeline.
	SetPipeline(pl Pipeline)

	// SetVertexBuf binds buf as the vertex buffer.
	SetVertexBuf(buf Buffer)

	// SetIndexBuf binds buf as the index buffer.
	SetIndexBuf(format IndexFmt, buf Buffer)

	// SetUniforms binds slot i of u for shader access.
	SetUniforms(u Uniforms, i int)

	// DrawIndexed draws idxCount indices in a single instance.
	// It must only be called during a render pass.
	DrawIndexed(idxCount int)

	// EndPass ends the current render pass.
	EndPass()

	// End ends recording and prepares the buffer for submission.
	End() error

	// Reset discards all recorded commands.
	// It must not be called while a submission of the buffer is
	// pending.
	Reset() error
}

// RenderPass is the interface that defines a render pass into which
// draw commands operate.
type RenderPass interface {
	Destroyer

	// NewFB creates a framebuffer binding view as the pass's
	// color attachment. All framebuffers created from a render
	// pass must be destroyed before the pass itself.
	NewFB(view ImageView, width, height int) (Framebuf, error)
}

// Framebuf is the interface that defines the render target of a
// render pass.
type Framebuf interface {
	Destroyer
}

// Pipeline is the interface that defines a graphics pipeline.
type Pipeline interface {
	Destroyer
}

// ShaderFunc specifies an entry point within a shader binary.
type ShaderFunc struct {
	Code []byte
	Name string
}

// VertexFmt describes the format of a vertex attribute.
type VertexFmt int

// Vertex formats.
const (
	Float32x2 VertexFmt = iota
	Float32x3
	Float32x4
)

// VertexAttr describes one attribute of an interleaved vertex.
type VertexAttr struct {
	Format VertexFmt
	Offset int
	// Nr is the shader input location.
	Nr int
}

// GraphState defines the state a graphics pipeline is created from.
// Viewport and scissor are static, sized by Extent, so the pipeline
// is tied to one chain generation and rebuilt with it.
type GraphState struct {
	VertFunc ShaderFunc
	FragFunc ShaderFunc
	// Uniforms, if not nil, describes the constant-data binding
	// visible to the vertex function.
	Uniforms Uniforms
	// Stride is the byte distance between consecutive vertices of
	// the single interleaved vertex binding.
	Stride int
	Attrs  []VertexAttr
	Pass   RenderPass
	Extent Extent2D
}

// IndexFmt describes the format of index buffer data.
type IndexFmt int

// Index formats.
const (
	Index16 IndexFmt = 2
	Index32 IndexFmt = 4
)

// Usage is a mask indicating valid uses for a buffer.
type Usage int

// Usage flags.
const (
	UVertexData Usage = 1 << iota
	UIndexData
)

// Buffer is the interface that defines a device-private buffer of
// fixed size and contents.
type Buffer interface {
	Destroyer
}

// Uniforms is the interface that defines a set of host-writable
// constant-data slots. One slot exists per drawable image so that a
// write for image i is ordered by the same fence that orders reuse
// of image i's command sequence.
type Uniforms interface {
	Destroyer

	// Count returns the number of slots.
	Count() int

	// Write replaces the contents of slot i.
	// len(data) must not exceed the slot size given at creation.
	Write(i int, data []byte) error
}

// ImageView is the interface that defines a typed view of a
// drawable image.
type ImageView interface {
	Destroyer
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats.
const (
	FmtUnknown PixelFmt = iota
	BGRA8sRGB
	RGBA8sRGB
	BGRA8Unorm
	RGBA8Unorm
)

// ColorSpace describes how presented pixel values are interpreted.
type ColorSpace int

// Color spaces.
const (
	ColorSpaceSRGBNonlinear ColorSpace = iota
	ColorSpaceOther
)

// SurfaceFormat is a supported pixel format/color space pair.
type SurfaceFormat struct {
	Format PixelFmt
	Space  ColorSpace
}

// PresentMode determines how presented images are queued and
// displayed.
type PresentMode int

// Presentation modes.
const (
	// ModeFIFO queues presents strictly and waits for the
	// vertical blank. Every surface supports it.
	ModeFIFO PresentMode = iota
	// ModeMailbox replaces the queued present, bounding latency
	// with triple buffering.
	ModeMailbox
	// ModeImmediate presents without waiting for the vertical
	// blank.
	ModeImmediate
	// ModeFIFORelaxed is FIFO that tears after a missed blank.
	ModeFIFORelaxed
)

// Extent2D is a two-dimensional size in pixels.
type Extent2D struct {
	Width, Height int
}

// SurfaceCaps describes the current capabilities of a presentation
// surface.
type SurfaceCaps struct {
	// MinImages is the fewest images a chain may be created with.
	MinImages int
	// MaxImages is the most images a chain may be created with.
	// Zero means unbounded.
	MaxImages int
	// Current is the extent the surface dictates when Fixed is
	// set. When Fixed is unset the chain chooses its own extent
	// within Min and Max.
	Current Extent2D
	Fixed   bool
	Min     Extent2D
	Max     Extent2D
}

// ChainConfig describes the parameters of a chain creation, as
// selected against SurfaceCaps, SurfaceFormats and PresentModes.
type ChainConfig struct {
	MinImages int
	Format    SurfaceFormat
	Mode      PresentMode
	Extent    Extent2D
}

// ClearValue defines the clear color for a render pass.
type ClearValue struct {
	Color [4]float32
}
