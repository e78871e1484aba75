// Copyright 2025 The vkflight Authors. All rights reserved.

// Package vk implements the driver interfaces on Vulkan, using a
// window's SDL surface for presentation.
package vk

import (
	"log"

	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v2"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v2/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v2/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v2"

	"vkflight/driver"
	"vkflight/wsi"
)

var deviceExtensions = []string{khr_swapchain.ExtensionName}

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

// Options configures device creation.
type Options struct {
	// AppName identifies the application to the implementation.
	AppName string
	// Validation enables the validation layers and routes their
	// messages to the standard logger. The layers must be
	// installed.
	Validation bool
}

// Device implements driver.Device on a Vulkan device with one
// graphics queue and one presentation queue, which may coincide.
type Device struct {
	win       wsi.Window
	loader    core.Loader
	instance  core1_0.Instance
	messenger ext_debug_utils.DebugUtilsMessenger
	surface   khr_surface.Surface
	phys      core1_0.PhysicalDevice
	dev       core1_0.Device
	swapExt   khr_swapchain.Extension

	gfxFamily  int
	presFamily int
	gfxQueue   *queue
	presQueue  *queue

	pool core1_0.CommandPool

	// One uniform-buffer binding at the vertex stage, shared by
	// every pipeline and every descriptor set.
	descLayout core1_0.DescriptorSetLayout
	pipeLayout core1_0.PipelineLayout
}

// Open selects a device able to present to win's surface and
// prepares it for rendering. It fails with driver.ErrNoDevice when
// no installed device qualifies.
func Open(win wsi.Window, opts Options) (d *Device, err error) {
	d = &Device{win: win, gfxFamily: -1, presFamily: -1}
	defer func() {
		if err != nil {
			d.Destroy()
		}
	}()

	d.loader, err = core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "vk: creating loader")
	}
	if err = d.createInstance(opts); err != nil {
		return nil, err
	}
	if opts.Validation {
		debugLoader := ext_debug_utils.CreateExtensionFromInstance(d.instance)
		d.messenger, _, err = debugLoader.CreateDebugUtilsMessenger(d.instance, nil, messengerInfo())
		if err != nil {
			return nil, errors.Wrap(err, "vk: creating debug messenger")
		}
	}

	surfaceLoader := khr_surface.CreateExtensionFromInstance(d.instance)
	d.surface, err = vkng_sdl2.CreateSurface(d.instance, surfaceLoader, win.SDL())
	if err != nil {
		return nil, errors.Wrap(err, "vk: creating surface")
	}

	if err = d.pickPhysical(); err != nil {
		return nil, err
	}
	if err = d.createDevice(); err != nil {
		return nil, err
	}

	d.swapExt = khr_swapchain.CreateExtensionFromDevice(d.dev)
	d.gfxQueue = &queue{d: d, q: d.dev.GetQueue(d.gfxFamily, 0)}
	if d.presFamily == d.gfxFamily {
		d.presQueue = d.gfxQueue
	} else {
		d.presQueue = &queue{d: d, q: d.dev.GetQueue(d.presFamily, 0)}
	}

	d.pool, _, err = d.dev.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: d.gfxFamily,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vk: creating command pool")
	}

	d.descLayout, _, err = d.dev.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				StageFlags:      core1_0.StageVertex,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "vk: creating descriptor set layout")
	}
	d.pipeLayout, _, err = d.dev.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{d.descLayout},
	})
	if err != nil {
		return nil, errors.Wrap(err, "vk: creating pipeline layout")
	}
	return d, nil
}

func (d *Device) createInstance(opts Options) error {
	info := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "vkflight",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	available, _, err := d.loader.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "vk: enumerating instance extensions")
	}
	for _, ext := range d.win.SDL().VulkanGetInstanceExtensions() {
		if _, ok := available[ext]; !ok {
			return errors.Errorf("vk: missing required instance extension %s", ext)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext)
	}
	if _, ok := available[khr_portability_enumeration.ExtensionName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.Validation {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		layers, _, err := d.loader.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "vk: enumerating layers")
		}
		for _, layer := range validationLayers {
			if _, ok := layers[layer]; !ok {
				return errors.Errorf("vk: validation layer %s not installed", layer)
			}
			info.EnabledLayerNames = append(info.EnabledLayerNames, layer)
		}
		info.Next = messengerInfo()
	}

	d.instance, _, err = d.loader.CreateInstance(nil, info)
	return errors.Wrap(err, "vk: creating instance")
}

func messengerInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logValidation,
	}
}

func logValidation(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("vk: [%s %s] %s", severity, msgType, data.Message)
	return false
}

func (d *Device) pickPhysical() error {
	devs, _, err := d.instance.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "vk: enumerating devices")
	}
	for _, pd := range devs {
		gfx, pres, ok := d.findQueueFamilies(pd)
		if !ok || !hasDeviceExtensions(pd) {
			continue
		}
		formats, _, err := d.surface.PhysicalDeviceSurfaceFormats(pd)
		if err != nil || len(formats) == 0 {
			continue
		}
		modes, _, err := d.surface.PhysicalDeviceSurfacePresentModes(pd)
		if err != nil || len(modes) == 0 {
			continue
		}
		d.phys = pd
		d.gfxFamily = gfx
		d.presFamily = pres
		return nil
	}
	return driver.ErrNoDevice
}

func (d *Device) findQueueFamilies(pd core1_0.PhysicalDevice) (gfx, pres int, ok bool) {
	gfx, pres = -1, -1
	for i, fam := range pd.QueueFamilyProperties() {
		if gfx < 0 && fam.QueueFlags&core1_0.QueueGraphics != 0 {
			gfx = i
		}
		if pres < 0 {
			if supported, _, err := d.surface.PhysicalDeviceSurfaceSupport(pd, i); err == nil && supported {
				pres = i
			}
		}
		if gfx >= 0 && pres >= 0 {
			return gfx, pres, true
		}
	}
	return gfx, pres, false
}

func hasDeviceExtensions(pd core1_0.PhysicalDevice) bool {
	available, _, err := pd.EnumerateDeviceExtensionProperties()
	if err != nil {
		return false
	}
	for _, ext := range deviceExtensions {
		if _, ok := available[ext]; !ok {
			return false
		}
	}
	return true
}

func (d *Device) createDevice() error {
	families := []int{d.gfxFamily}
	if d.presFamily != d.gfxFamily {
		families = append(families, d.presFamily)
	}
	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, fam := range families {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: fam,
			QueuePriorities:  []float32{1},
		})
	}

	extensions := append([]string(nil), deviceExtensions...)
	available, _, err := d.phys.EnumerateDeviceExtensionProperties()
	if err != nil {
		return errors.Wrap(err, "vk: enumerating device extensions")
	}
	if _, ok := available[khr_portability_subset.ExtensionName]; ok {
		extensions = append(extensions, khr_portability_subset.ExtensionName)
	}

	d.dev, _, err = d.phys.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueInfos,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensions,
	})
	return errors.Wrap(err, "vk: creating device")
}

// GraphicsQueue implements driver.Device.
func (d *Device) GraphicsQueue() driver.Queue { return d.gfxQueue }

// PresentQueue implements driver.Device.
func (d *Device) PresentQueue() driver.Queue { return d.presQueue }

// WaitIdle implements driver.Device.
func (d *Device) WaitIdle() error {
	res, err := d.dev.WaitIdle()
	return mapErr(res, errors.Wrap(err, "vk: waiting for idle device"))
}

// Destroy implements driver.Destroyer. The device must be idle.
func (d *Device) Destroy() {
	if d.pipeLayout != nil {
		d.pipeLayout.Destroy(nil)
	}
	if d.descLayout != nil {
		d.descLayout.Destroy(nil)
	}
	if d.pool != nil {
		d.pool.Destroy(nil)
	}
	if d.dev != nil {
		d.dev.Destroy(nil)
	}
	if d.messenger != nil {
		d.messenger.Destroy(nil)
	}
	if d.surface != nil {
		d.surface.Destroy(nil)
	}
	if d.instance != nil {
		d.instance.Destroy(nil)
	}
	*d = Device{}
}

// mapErr folds well-known result codes into the driver's sentinel
// errors.
func mapErr(res common.VkResult, err error) error {
	if err == nil {
		return nil
	}
	switch res {
	case core1_0.VKErrorOutOfHostMemory, core1_0.VKErrorOutOfDeviceMemory:
		return errors.WithMessage(driver.ErrResourceExhausted, err.Error())
	case core1_0.VKErrorDeviceLost:
		return errors.WithMessage(driver.ErrDeviceLost, err.Error())
	}
	return err
}
