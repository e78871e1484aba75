// Copyright 2025 The vkflight Authors. All rights reserved.

// Vkflight opens a window and drives a frame-paced render loop over
// its presentation surface until the window closes or Esc is
// pressed.
package main

import (
	"flag"
	"log"
	"runtime"

	"vkflight/driver/vk"
	"vkflight/render"
	"vkflight/wsi"
)

var (
	width      = flag.Int("width", 800, "window width")
	height     = flag.Int("height", 600, "window height")
	title      = flag.String("title", "vkflight", "window title")
	frames     = flag.Int("frames", 2, "frames in flight")
	validation = flag.Bool("validation", false, "enable the validation layers")
)

func init() {
	// The window system requires its calls to happen on the
	// thread that initialized it.
	runtime.LockOSThread()
}

// surface adapts a window to the render loop.
type surface struct {
	win wsi.Window
}

func (s surface) DrawableSize() (int, int) { return s.win.DrawableSize() }

func (surface) Dispatch() { wsi.Dispatch() }

// handler routes window and keyboard events into the loop.
type handler struct {
	loop *render.Loop
}

func (h *handler) WindowClose(wsi.Window) { h.loop.NotifyClose() }

func (h *handler) WindowResize(_ wsi.Window, _, _ int) { h.loop.NotifyResize() }

func (h *handler) KeyboardKey(key wsi.Key, pressed bool) {
	if key == wsi.KeyEsc && pressed {
		h.loop.NotifyClose()
	}
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("vkflight: ")
	flag.Parse()

	if err := wsi.Init(); err != nil {
		log.Fatal(err)
	}
	defer wsi.Quit()

	win, err := wsi.NewWindow(*width, *height, *title)
	if err != nil {
		log.Fatal(err)
	}
	defer win.Close()

	dev, err := vk.Open(win, vk.Options{
		AppName:    *title,
		Validation: *validation,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Destroy()

	loop, err := render.NewLoop(dev, surface{win}, *frames)
	if err != nil {
		log.Fatal(err)
	}
	defer loop.Destroy()

	h := &handler{loop: loop}
	wsi.SetWindowHandler(h)
	wsi.SetKeyboardHandler(h)

	if err := loop.Run(); err != nil {
		log.Fatal(err)
	}
}
