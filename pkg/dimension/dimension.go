// Package dimension resolves the output size for a pixel resize.
package dimension

import "math"

// Size is a width/height pair in pixels
type Size struct {
	Width  int
	Height int
}

// Request is the user's size input. A zero or negative side means it was not given.
type Request struct {
	Width      int
	Height     int
	AspectLock bool
}

// HasAny reports whether at least one side was given
func (r Request) HasAny() bool {
	return r.Width > 0 || r.Height > 0
}

// Resolve computes the output size for src.
//
// When both sides are given they are used as is, even with the aspect lock on
// and a ratio that differs from the source. With the lock on and one side
// given, the other is derived from the source ratio. With the lock off
// whichever side is given is used and nothing is derived, so a missing side
// collapses to 1. Both sides are at least 1.
func Resolve(src Size, req Request) Size {
	w, h := req.Width, req.Height
	ratio := float64(src.Width) / float64(src.Height)

	switch {
	case w > 0 && h > 0:
		// explicit pair wins
	case req.AspectLock && w > 0:
		h = int(math.Round(float64(w) / ratio))
	case req.AspectLock && h > 0:
		w = int(math.Round(float64(h) * ratio))
	}

	return Size{Width: max(1, w), Height: max(1, h)}
}
