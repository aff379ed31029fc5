package converter

import (
	"fmt"
	"math"
	"strings"
)

// Size units accepted for target sizes
var unitBytes = map[string]float64{
	"kb": 1024,
	"mb": 1024 * 1024,
}

// TargetKB converts a size in the given unit to kilobytes. Unknown units are
// read as KB.
func TargetKB(size float64, unit string) float64 {
	b, ok := unitBytes[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		b = 1024
	}
	return size * b / 1024
}

// SuggestedFilename builds "{base}_resized_{w}x{h}_{kb}kb.{ext}"
func SuggestedFilename(original string, width, height int, sizeKB float64, ext string) string {
	base := original
	if i := strings.LastIndexByte(original, '.'); i > 0 {
		base = original[:i]
	}
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s_resized_%dx%d_%dkb.%s", base, width, height, int(math.Round(sizeKB)), ext)
}
