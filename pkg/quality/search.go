// Package quality finds an encode quality and size that fit a target file size.
package quality

import (
	"errors"
	"image"
	"math"

	"github.com/harliandi/go-imgresize/pkg/codec"
)

const (
	MinQuality    = 10
	MaxQuality    = 100
	MaxIterations = 25
	QualityStep   = 3

	// MinShrinkDimension is the smallest side the shrink fallback produces
	MinShrinkDimension = 100
	// shrinkMargin undershoots the estimated scale to absorb encoder overshoot
	shrinkMargin = 0.95
	// ReportTolerance is how far over target a result may be and still count as on target
	ReportTolerance = 1.02
)

// ErrInvalidTarget is returned for a non-positive target size
var ErrInvalidTarget = errors.New("target size must be positive")

// Encoder is the encode primitive the search drives
type Encoder interface {
	Encode(src image.Image, req codec.EncodeRequest) (codec.EncodeResult, error)
}

// Outcome is the final attempt of a search.
//
// Result holds the real encoded bytes. SizeKB is the value to show the user,
// capped at TargetKB*ReportTolerance; ActualSizeKB is never capped.
type Outcome struct {
	Result       codec.EncodeResult
	TargetKB     float64
	SizeKB       float64
	ActualSizeKB float64
	Iterations   int
	Shrunk       bool
	Shortfall    bool
}

// Clamp bounds a quality value to [MinQuality, MaxQuality]
func Clamp(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

// SearchTargetSize encodes src at decreasing quality until the output fits
// targetKB, then falls back to one proportional shrink of the dimensions.
// It is best effort: an unreachable target yields the last attempt with
// Shortfall set. The only error is an encoder failure.
func SearchTargetSize(enc Encoder, src *codec.SourceImage, targetKB float64, startQuality int, format codec.Format) (*Outcome, error) {
	if targetKB <= 0 || math.IsNaN(targetKB) || math.IsInf(targetKB, 0) {
		return nil, ErrInvalidTarget
	}

	req := codec.EncodeRequest{
		Width:   src.Width,
		Height:  src.Height,
		Quality: Clamp(startQuality),
		Format:  format,
	}

	res, err := enc.Encode(src.Image, req)
	if err != nil {
		return nil, err
	}

	iterations := 0
	for res.SizeKB > targetKB && iterations < MaxIterations && req.Quality > MinQuality {
		req = req.WithQuality(Clamp(req.Quality - QualityStep))
		if res, err = enc.Encode(src.Image, req); err != nil {
			return nil, err
		}
		iterations++
	}

	shrunk := false
	if res.SizeKB > targetKB {
		w, h := ShrinkDimensions(src.Width, src.Height, targetKB, res.SizeKB)
		req = req.WithSize(w, h)
		if res, err = enc.Encode(src.Image, req); err != nil {
			return nil, err
		}
		shrunk = true
	}

	limit := targetKB * ReportTolerance
	return &Outcome{
		Result:       res,
		TargetKB:     targetKB,
		SizeKB:       math.Min(res.SizeKB, limit),
		ActualSizeKB: res.SizeKB,
		Iterations:   iterations,
		Shrunk:       shrunk,
		Shortfall:    res.SizeKB > limit,
	}, nil
}

// ShrinkDimensions scales width and height by sqrt(targetKB/currentKB) with
// a safety margin. Neither side goes below MinShrinkDimension.
func ShrinkDimensions(width, height int, targetKB, currentKB float64) (int, int) {
	scale := math.Sqrt(targetKB / currentKB)
	w := int(math.Floor(float64(width) * scale * shrinkMargin))
	h := int(math.Floor(float64(height) * scale * shrinkMargin))
	return max(MinShrinkDimension, w), max(MinShrinkDimension, h)
}
