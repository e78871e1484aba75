// Copyright 2025 The vkflight Authors. All rights reserved.

// Package wsi provides window system integration for GPU
// presentation, implemented over SDL. The driver obtains its
// surface from a Window, and the render loop calls Dispatch to
// deliver queued events to the registered handlers.
//
// Init, NewWindow and Dispatch must all be called from the same
// goroutine, which SDL requires to be locked to the main thread.
package wsi

import (
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// Init initializes the window system. It must be called before any
// other function in this package.
func Init() error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "wsi: initializing SDL")
	}
	return nil
}

// Quit shuts the window system down. All windows must have been
// closed.
func Quit() {
	sdl.Quit()
}

// Window is the interface that defines a drawable window.
// The purpose of a window is to provide a surface into which a GPU
// can draw.
type Window interface {
	// SetTitle sets the window's title.
	SetTitle(title string)

	// Close closes the window.
	Close()

	// Width returns the window's width.
	Width() int

	// Height returns the window's height.
	Height() int

	// Title returns the window's title.
	Title() string

	// DrawableSize returns the size of the window's drawable
	// region in pixels, which may differ from the window size on
	// scaled displays. A minimized window reports zero.
	DrawableSize() (width, height int)

	// Minimized reports whether the window is minimized.
	Minimized() bool

	// SDL returns the underlying SDL window, which the driver
	// needs to create a presentation surface.
	SDL() *sdl.Window
}

// The maximum number of windows that can exist at any given time.
const MaxWindows = 16

var (
	windowCount    int
	createdWindows [MaxWindows]*window
)

// NewWindow creates a new resizable window configured for GPU
// presentation.
func NewWindow(width, height int, title string) (Window, error) {
	if windowCount >= MaxWindows {
		return nil, errors.New("wsi: too many windows")
	}
	sw, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI)
	if err != nil {
		return nil, errors.Wrap(err, "wsi: creating window")
	}
	win := &window{win: sw, title: title}
	for i := range createdWindows {
		if createdWindows[i] == nil {
			createdWindows[i] = win
			windowCount++
			break
		}
	}
	return win, nil
}

// Windows returns all created windows.
// The returned value becomes out of date after calls to NewWindow
// and Window.Close.
func Windows() []Window {
	if windowCount == 0 {
		return nil
	}
	wins := make([]Window, 0, windowCount)
	for i := range createdWindows {
		if createdWindows[i] != nil {
			wins = append(wins, createdWindows[i])
		}
	}
	return wins
}

func lookupWindow(id uint32) *window {
	for _, w := range createdWindows {
		if w != nil && w.id == id {
			return w
		}
	}
	return nil
}

type window struct {
	win   *sdl.Window
	id    uint32
	title string
}

func (w *window) SetTitle(title string) {
	w.win.SetTitle(title)
	w.title = title
}

func (w *window) Close() {
	for i := range createdWindows {
		if createdWindows[i] == w {
			createdWindows[i] = nil
			windowCount--
			break
		}
	}
	w.win.Destroy()
}

func (w *window) Width() int {
	width, _ := w.win.GetSize()
	return int(width)
}

func (w *window) Height() int {
	_, height := w.win.GetSize()
	return int(height)
}

func (w *window) Title() string { return w.title }

func (w *window) DrawableSize() (int, int) {
	if w.Minimized() {
		return 0, 0
	}
	width, height := w.win.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *window) Minimized() bool {
	return w.win.GetFlags()&sdl.WINDOW_MINIMIZED != 0
}

func (w *window) SDL() *sdl.Window { return w.win }

// WindowHandler is the interface that defines the methods for
// handling window events.
type WindowHandler interface {
	// WindowClose is called when a window is closed.
	WindowClose(win Window)

	// WindowResize is called when a window's drawable changes,
	// including minimization and restoration.
	WindowResize(win Window, newWidth, newHeight int)
}

// SetWindowHandler sets the global WindowHandler.
func SetWindowHandler(wh WindowHandler) {
	windowHandler = wh
}

var windowHandler WindowHandler

// KeyboardHandler is the interface that defines the methods for
// handling keyboard events.
type KeyboardHandler interface {
	// KeyboardKey is called when a key is pressed/released.
	KeyboardKey(key Key, pressed bool)
}

// SetKeyboardHandler sets the global KeyboardHandler.
func SetKeyboardHandler(kh KeyboardHandler) {
	keyboardHandler = kh
}

var keyboardHandler KeyboardHandler

// Dispatch delivers queued events to the registered handlers.
// It does not block.
func Dispatch() {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			if windowHandler == nil {
				continue
			}
			for _, w := range Windows() {
				windowHandler.WindowClose(w)
			}
		case *sdl.WindowEvent:
			win := lookupWindow(e.WindowID)
			if win == nil {
				// The first event for a window binds its id.
				win = bindWindowID(e.WindowID)
				if win == nil {
					continue
				}
			}
			if windowHandler == nil {
				continue
			}
			switch e.Event {
			case sdl.WINDOWEVENT_CLOSE:
				windowHandler.WindowClose(win)
			case sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
				w, h := win.DrawableSize()
				windowHandler.WindowResize(win, w, h)
			}
		case *sdl.KeyboardEvent:
			if keyboardHandler == nil {
				continue
			}
			keyboardHandler.KeyboardKey(keyFrom(e.Keysym.Sym), e.Type == sdl.KEYDOWN)
		}
	}
}

// bindWindowID resolves the window whose SDL id was not yet seen.
func bindWindowID(id uint32) *window {
	for _, w := range createdWindows {
		if w == nil || w.id != 0 {
			continue
		}
		if wid, err := w.win.GetID(); err == nil && uint32(wid) == id {
			w.id = id
			return w
		}
	}
	return nil
}
