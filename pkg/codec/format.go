// Package codec decodes uploads and encodes pixel surfaces to JPEG, PNG or WebP.
package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat is returned when an output format name is not recognised
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Format is an output encoding
type Format int

const (
	JPEG Format = iota
	PNG
	WebP
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "PNG"
	case WebP:
		return "WebP"
	default:
		return "JPEG"
	}
}

// MIMEType returns the canonical MIME type for the format
func (f Format) MIMEType() string {
	switch f {
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// OutputFormat is a parsed format selection. The spelling the client used
// decides the display name and file extension ("jpg" stays "jpg").
type OutputFormat struct {
	Format    Format
	Name      string
	Extension string
}

// ParseFormat accepts format names or MIME types, case-insensitive.
// An empty string selects JPEG.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "image/jpeg":
		return OutputFormat{Format: JPEG, Name: "JPEG", Extension: "jpeg"}, nil
	case "jpg", "image/jpg":
		return OutputFormat{Format: JPEG, Name: "JPG", Extension: "jpg"}, nil
	case "png", "image/png":
		return OutputFormat{Format: PNG, Name: "PNG", Extension: "png"}, nil
	case "webp", "image/webp":
		return OutputFormat{Format: WebP, Name: "WebP", Extension: "webp"}, nil
	}
	return OutputFormat{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// DisplayName maps an upload MIME type to the label shown for the original file
func DisplayName(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return "JPEG"
	case "image/jpg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/webp":
		return "WebP"
	}
	return "Image"
}

// SizeKB converts a byte count to kilobytes rounded to two decimals
func SizeKB(n int) float64 {
	return math.Round(float64(n)/1024*100) / 100
}

// FormatFileSize renders a byte count as "0 Bytes", "512 Bytes", "12.5 KB", "1.2 MB"
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := math.Round(float64(n)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}
