package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var (
	// ErrDecodeFailed is returned when the upload cannot be decoded as an image
	ErrDecodeFailed = errors.New("could not decode image")
	// ErrImageTooLarge is returned when decoded dimensions exceed limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
)

// Decoded surface limits
const (
	MaxImageWidth  = 20000       // 20K pixels max width
	MaxImageHeight = 20000       // 20K pixels max height
	MaxImagePixels = 250_000_000 // 250 megapixels max total pixels
)

// Decode reads the header first so oversized surfaces are rejected before
// any pixel memory is allocated. JPEG EXIF orientation is applied, so Width
// and Height are the displayed dimensions.
func Decode(data []byte, mimeType string) (*SourceImage, error) {
	if len(data) == 0 {
		return nil, ErrDecodeFailed
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if err := ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	img = ApplyOrientation(img, Orientation(data))

	b := img.Bounds()
	return &SourceImage{
		Image:         img,
		Width:         b.Dx(),
		Height:        b.Dy(),
		OriginalBytes: len(data),
		MIMEType:      mimeType,
	}, nil
}

// Probe reads only the image header and returns its display dimensions,
// with EXIF rotation applied
func Probe(data []byte) (width, height int, err error) {
	if len(data) == 0 {
		return 0, 0, ErrDecodeFailed
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if err := ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return 0, 0, err
	}
	if swapsAxes(Orientation(data)) {
		return cfg.Height, cfg.Width, nil
	}
	return cfg.Width, cfg.Height, nil
}

// ValidateDimensions checks decoded dimensions are within acceptable limits
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > MaxImageWidth || height > MaxImageHeight {
		return fmt.Errorf("%w: %dx%d (max: %dx%d)", ErrImageTooLarge, width, height, MaxImageWidth, MaxImageHeight)
	}
	// Check total pixel count (prevent decompression bomb attacks)
	if int64(width)*int64(height) > MaxImagePixels {
		return fmt.Errorf("%w: %d pixels (max: %d)", ErrImageTooLarge, int64(width)*int64(height), MaxImagePixels)
	}
	return nil
}
