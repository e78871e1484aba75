// Copyright 2025 The vkflight Authors. All rights reserved.

package vk

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"

	"vkflight/driver"
)

func pixelFmtFrom(f core1_0.Format) driver.PixelFmt {
	switch f {
	case core1_0.FormatB8G8R8A8SRGB:
		return driver.BGRA8sRGB
	case core1_0.FormatR8G8B8A8SRGB:
		return driver.RGBA8sRGB
	case core1_0.FormatB8G8R8A8UnsignedNormalized:
		return driver.BGRA8Unorm
	case core1_0.FormatR8G8B8A8UnsignedNormalized:
		return driver.RGBA8Unorm
	}
	return driver.FmtUnknown
}

func pixelFmtTo(pf driver.PixelFmt) core1_0.Format {
	switch pf {
	case driver.BGRA8sRGB:
		return core1_0.FormatB8G8R8A8SRGB
	case driver.RGBA8sRGB:
		return core1_0.FormatR8G8B8A8SRGB
	case driver.BGRA8Unorm:
		return core1_0.FormatB8G8R8A8UnsignedNormalized
	case driver.RGBA8Unorm:
		return core1_0.FormatR8G8B8A8UnsignedNormalized
	}
	return core1_0.FormatUndefined
}

func colorSpaceFrom(cs khr_surface.ColorSpace) driver.ColorSpace {
	if cs == khr_surface.ColorSpaceSRGBNonlinear {
		return driver.ColorSpaceSRGBNonlinear
	}
	return driver.ColorSpaceOther
}

func presentModeFrom(m khr_surface.PresentMode) (driver.PresentMode, bool) {
	switch m {
	case khr_surface.PresentModeFIFO:
		return driver.ModeFIFO, true
	case khr_surface.PresentModeMailbox:
		return driver.ModeMailbox, true
	case khr_surface.PresentModeImmediate:
		return driver.ModeImmediate, true
	case khr_surface.PresentModeFIFORelaxed:
		return driver.ModeFIFORelaxed, true
	}
	return 0, false
}

func presentModeTo(m driver.PresentMode) khr_surface.PresentMode {
	switch m {
	case driver.ModeMailbox:
		return khr_surface.PresentModeMailbox
	case driver.ModeImmediate:
		return khr_surface.PresentModeImmediate
	case driver.ModeFIFORelaxed:
		return khr_surface.PresentModeFIFORelaxed
	}
	return khr_surface.PresentModeFIFO
}

func vertexFmtTo(f driver.VertexFmt) core1_0.Format {
	switch f {
	case driver.Float32x2:
		return core1_0.FormatR32G32SignedFloat
	case driver.Float32x3:
		return core1_0.FormatR32G32B32SignedFloat
	case driver.Float32x4:
		return core1_0.FormatR32G32B32A32SignedFloat
	}
	return core1_0.FormatUndefined
}

func stageTo(s driver.Stage) core1_0.PipelineStageFlags {
	if s == driver.StageTop {
		return core1_0.PipelineStageTopOfPipe
	}
	return core1_0.PipelineStageColorAttachmentOutput
}
