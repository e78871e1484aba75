// Copyright 2025 The vkflight Authors. All rights reserved.

package wsi

import "github.com/veandco/go-sdl2/sdl"

// Key is the type of keyboard keys.
type Key int

// Keyboard keys.
const (
	KeyUnknown Key = iota
	KeyEsc
	KeyReturn
	KeySpace
	KeyTab
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyF11
)

var keymap = map[sdl.Keycode]Key{
	sdl.K_ESCAPE:    KeyEsc,
	sdl.K_RETURN:    KeyReturn,
	sdl.K_SPACE:     KeySpace,
	sdl.K_TAB:       KeyTab,
	sdl.K_BACKSPACE: KeyBackspace,
	sdl.K_UP:        KeyUp,
	sdl.K_DOWN:      KeyDown,
	sdl.K_LEFT:      KeyLeft,
	sdl.K_RIGHT:     KeyRight,
	sdl.K_F11:       KeyF11,
}

func keyFrom(code sdl.Keycode) Key {
	return keymap[code]
}
