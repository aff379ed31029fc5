package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	webp "github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

var (
	// ErrInvalidDimensions is returned when an encode request has a non-positive size
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	// ErrNilSurface is returned when there is nothing to encode
	ErrNilSurface = errors.New("nil image surface")
)

// SourceImage is a decoded upload. It is not modified after Decode returns.
type SourceImage struct {
	Image         image.Image
	Width         int
	Height        int
	OriginalBytes int
	MIMEType      string
}

// EncodeRequest describes a single encode attempt
type EncodeRequest struct {
	Width   int
	Height  int
	Quality int
	Format  Format
}

// WithQuality returns a copy of r at quality q
func (r EncodeRequest) WithQuality(q int) EncodeRequest {
	r.Quality = q
	return r
}

// WithSize returns a copy of r at width w and height h
func (r EncodeRequest) WithSize(w, h int) EncodeRequest {
	r.Width = w
	r.Height = h
	return r
}

// EncodeResult is the output of one encode attempt
type EncodeResult struct {
	Data    []byte
	SizeKB  float64
	Width   int
	Height  int
	Quality int
	Format  Format
}

// Encoder encodes src resampled to the requested size.
//
// It keeps the most recently resampled surface so repeated attempts at the
// same dimensions do not resample again. An Encoder belongs to one job and is
// not safe for concurrent use.
type Encoder struct {
	scaledFrom image.Image
	scaled     image.Image
}

// NewEncoder returns an Encoder with an empty resample cache
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode resamples src to req.Width x req.Height when needed and encodes it
func (e *Encoder) Encode(src image.Image, req EncodeRequest) (EncodeResult, error) {
	if src == nil {
		return EncodeResult{}, ErrNilSurface
	}
	if req.Width <= 0 || req.Height <= 0 {
		return EncodeResult{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, req.Width, req.Height)
	}
	if req.Quality < 1 || req.Quality > 100 {
		req.Quality = 85
	}

	surface := e.resample(src, req.Width, req.Height)

	out := getBuffer(req.Width * req.Height)
	defer putBuffer(out)

	if err := encodeImage(surface, req.Quality, req.Format, out); err != nil {
		return EncodeResult{}, fmt.Errorf("encode %s: %w", req.Format, err)
	}

	data := make([]byte, out.Len())
	copy(data, out.Bytes())

	return EncodeResult{
		Data:    data,
		SizeKB:  SizeKB(len(data)),
		Width:   req.Width,
		Height:  req.Height,
		Quality: req.Quality,
		Format:  req.Format,
	}, nil
}

func (e *Encoder) resample(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	if e.scaledFrom == src && e.scaled != nil {
		sb := e.scaled.Bounds()
		if sb.Dx() == w && sb.Dy() == h {
			return e.scaled
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	e.scaledFrom = src
	e.scaled = dst
	return dst
}

// encodeImage encodes an image to JPEG, PNG or WebP
func encodeImage(img image.Image, quality int, format Format, out *bytes.Buffer) error {
	switch format {
	case PNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(out, img)
	case WebP:
		return webp.Encode(out, toRGBA(img), &webp.Options{Quality: float32(quality)})
	default:
		return jpeg.Encode(out, img, &jpeg.Options{Quality: quality})
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
