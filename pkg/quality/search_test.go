package quality

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/harliandi/go-imgresize/pkg/codec"
)

// fakeEncoder produces outputs of a size given by sizeFn so the search can be
// driven without a real codec
type fakeEncoder struct {
	sizeFn func(req codec.EncodeRequest) float64 // KB
	calls  []codec.EncodeRequest
	err    error
}

func (f *fakeEncoder) Encode(_ image.Image, req codec.EncodeRequest) (codec.EncodeResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return codec.EncodeResult{}, f.err
	}
	data := make([]byte, int(f.sizeFn(req)*1024))
	return codec.EncodeResult{
		Data:    data,
		SizeKB:  codec.SizeKB(len(data)),
		Width:   req.Width,
		Height:  req.Height,
		Quality: req.Quality,
		Format:  req.Format,
	}, nil
}

func newSource(w, h int) *codec.SourceImage {
	return &codec.SourceImage{
		Image:  image.NewRGBA(image.Rect(0, 0, w, h)),
		Width:  w,
		Height: h,
	}
}

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) *codec.SourceImage {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: uint8((x ^ y) & 0xFF),
				A: 255,
			})
		}
	}
	return &codec.SourceImage{Image: img, Width: width, Height: height}
}

func TestClamp(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, 10}, {1, 10}, {10, 10}, {55, 55}, {100, 100}, {101, 100},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSearchTargetSize_FitsImmediately(t *testing.T) {
	enc := &fakeEncoder{sizeFn: func(codec.EncodeRequest) float64 { return 40 }}

	out, err := SearchTargetSize(enc, newSource(800, 600), 50, 90, codec.JPEG)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	if len(enc.calls) != 1 {
		t.Errorf("encode calls = %d, want 1", len(enc.calls))
	}
	if out.Iterations != 0 || out.Shrunk || out.Shortfall {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if out.Result.Quality != 90 {
		t.Errorf("quality = %d, want 90", out.Result.Quality)
	}
}

func TestSearchTargetSize_QualityReduction(t *testing.T) {
	// 1KB per quality point at full size
	enc := &fakeEncoder{sizeFn: func(r codec.EncodeRequest) float64 { return float64(r.Quality) }}

	out, err := SearchTargetSize(enc, newSource(800, 600), 70, 90, codec.WebP)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	// 90 -> 87 -> ... -> 69
	if out.Result.Quality != 69 {
		t.Errorf("quality = %d, want 69", out.Result.Quality)
	}
	if out.Iterations != 7 {
		t.Errorf("iterations = %d, want 7", out.Iterations)
	}
	if out.Shrunk {
		t.Error("should not shrink when quality reduction reaches the target")
	}
	for _, c := range enc.calls {
		if c.Width != 800 || c.Height != 600 {
			t.Errorf("quality pass encoded at %dx%d, want full size", c.Width, c.Height)
		}
		if c.Format != codec.WebP {
			t.Errorf("format = %v, want WebP", c.Format)
		}
	}
}

func TestSearchTargetSize_IterationCap(t *testing.T) {
	enc := &fakeEncoder{sizeFn: func(r codec.EncodeRequest) float64 {
		return 1000 * float64(r.Width*r.Height) / (1000 * 1000)
	}}

	out, err := SearchTargetSize(enc, newSource(1000, 1000), 50, 90, codec.JPEG)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	if out.Iterations != MaxIterations {
		t.Errorf("iterations = %d, want %d", out.Iterations, MaxIterations)
	}
	// 90 - 25*3
	if out.Result.Quality != 15 {
		t.Errorf("quality = %d, want 15", out.Result.Quality)
	}
	// initial + 25 quality passes + 1 shrink
	if len(enc.calls) != MaxIterations+2 {
		t.Errorf("encode calls = %d, want %d", len(enc.calls), MaxIterations+2)
	}
	if !out.Shrunk {
		t.Error("expected shrink fallback")
	}
}

func TestSearchTargetSize_ShrinkScenario(t *testing.T) {
	// 80KB at quality 10 and full size; size scales with area
	enc := &fakeEncoder{sizeFn: func(r codec.EncodeRequest) float64 {
		perArea := 80 + float64(r.Quality-10)
		return perArea * float64(r.Width*r.Height) / (1000 * 800)
	}}

	out, err := SearchTargetSize(enc, newSource(1000, 800), 50, 40, codec.JPEG)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	if out.Result.Quality != MinQuality {
		t.Errorf("quality = %d, want floor %d", out.Result.Quality, MinQuality)
	}
	if out.Iterations != 10 {
		t.Errorf("iterations = %d, want 10", out.Iterations)
	}
	if !out.Shrunk {
		t.Fatal("expected shrink fallback")
	}

	scale := math.Sqrt(50.0 / 80.0)
	wantW := int(math.Floor(1000 * scale * 0.95))
	wantH := int(math.Floor(800 * scale * 0.95))
	if out.Result.Width != wantW || out.Result.Height != wantH {
		t.Errorf("shrunk to %dx%d, want %dx%d", out.Result.Width, out.Result.Height, wantW, wantH)
	}
	if out.Shortfall {
		t.Errorf("shrink should have reached target, actual %.2f KB", out.ActualSizeKB)
	}
	last := enc.calls[len(enc.calls)-1]
	if last.Quality != MinQuality {
		t.Errorf("shrink pass quality = %d, want last used %d", last.Quality, MinQuality)
	}
}

func TestSearchTargetSize_Shortfall(t *testing.T) {
	// Output never gets smaller than 80KB
	enc := &fakeEncoder{sizeFn: func(codec.EncodeRequest) float64 { return 80 }}

	out, err := SearchTargetSize(enc, newSource(1000, 800), 50, 90, codec.PNG)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	if !out.Shortfall {
		t.Error("expected shortfall")
	}
	if out.ActualSizeKB != 80 {
		t.Errorf("ActualSizeKB = %v, want 80", out.ActualSizeKB)
	}
	if out.SizeKB != 50*ReportTolerance {
		t.Errorf("reported SizeKB = %v, want %v", out.SizeKB, 50*ReportTolerance)
	}
	if len(out.Result.Data) != 80*1024 {
		t.Errorf("encoded bytes altered: %d", len(out.Result.Data))
	}
}

func TestSearchTargetSize_WithinTolerance(t *testing.T) {
	enc := &fakeEncoder{sizeFn: func(codec.EncodeRequest) float64 { return 50.5 }}

	out, err := SearchTargetSize(enc, newSource(100, 100), 50, 90, codec.JPEG)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	if out.Shortfall {
		t.Error("50.5KB for a 50KB target is within tolerance")
	}
	if out.SizeKB != 50.5 {
		t.Errorf("SizeKB = %v, want 50.5", out.SizeKB)
	}
}

func TestSearchTargetSize_MinimumDimension(t *testing.T) {
	enc := &fakeEncoder{sizeFn: func(codec.EncodeRequest) float64 { return 500 }}

	out, err := SearchTargetSize(enc, newSource(150, 120), 5, 50, codec.JPEG)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	if out.Result.Width != MinShrinkDimension || out.Result.Height != MinShrinkDimension {
		t.Errorf("shrunk to %dx%d, want floor %d", out.Result.Width, out.Result.Height, MinShrinkDimension)
	}
}

func TestSearchTargetSize_QualityBounds(t *testing.T) {
	enc := &fakeEncoder{sizeFn: func(codec.EncodeRequest) float64 { return 1 }}

	out, _ := SearchTargetSize(enc, newSource(200, 200), 10, 1, codec.JPEG)
	if out.Result.Quality != MinQuality {
		t.Errorf("start quality 1 encoded at %d, want %d", out.Result.Quality, MinQuality)
	}

	out, _ = SearchTargetSize(enc, newSource(200, 200), 10, 250, codec.JPEG)
	if out.Result.Quality != MaxQuality {
		t.Errorf("start quality 250 encoded at %d, want %d", out.Result.Quality, MaxQuality)
	}
}

func TestSearchTargetSize_NonMonotonicEncoder(t *testing.T) {
	// Alternates between two sizes above target
	enc := &fakeEncoder{sizeFn: func(r codec.EncodeRequest) float64 {
		if r.Quality%2 == 0 {
			return 300
		}
		return 200
	}}

	out, err := SearchTargetSize(enc, newSource(2000, 2000), 100, 100, codec.JPEG)
	if err != nil {
		t.Fatalf("SearchTargetSize() error = %v", err)
	}
	if len(enc.calls) > MaxIterations+2 {
		t.Errorf("encode calls = %d, exceeds bound %d", len(enc.calls), MaxIterations+2)
	}
	for _, c := range enc.calls {
		if c.Quality < MinQuality {
			t.Errorf("quality %d below floor", c.Quality)
		}
		if c.Width < MinShrinkDimension || c.Height < MinShrinkDimension {
			t.Errorf("dimension %dx%d below floor", c.Width, c.Height)
		}
	}
	if !out.Shortfall {
		t.Error("expected shortfall for an encoder that never fits")
	}
}

func TestSearchTargetSize_Errors(t *testing.T) {
	enc := &fakeEncoder{sizeFn: func(codec.EncodeRequest) float64 { return 1 }}
	for _, target := range []float64{0, -10, math.NaN()} {
		if _, err := SearchTargetSize(enc, newSource(10, 10), target, 80, codec.JPEG); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("target %v: error = %v, want ErrInvalidTarget", target, err)
		}
	}

	boom := errors.New("encoder exploded")
	failing := &fakeEncoder{err: boom}
	if _, err := SearchTargetSize(failing, newSource(10, 10), 10, 80, codec.JPEG); !errors.Is(err, boom) {
		t.Errorf("error = %v, want encoder error", err)
	}
}

func TestShrinkDimensions(t *testing.T) {
	w, h := ShrinkDimensions(1600, 1200, 50, 200)
	// sqrt(0.25) * 0.95 = 0.475
	if w != 760 || h != 570 {
		t.Errorf("ShrinkDimensions = %dx%d, want 760x570", w, h)
	}
}

func TestSearchTargetSize_RealEncoder(t *testing.T) {
	src := createTestImage(800, 800)
	enc := codec.NewEncoder()

	tests := []struct {
		name     string
		targetKB float64
		format   codec.Format
	}{
		{"JPEG 60KB", 60, codec.JPEG},
		{"JPEG 15KB", 15, codec.JPEG},
		{"WebP 30KB", 30, codec.WebP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := SearchTargetSize(enc, src, tt.targetKB, 90, tt.format)
			if err != nil {
				t.Fatalf("SearchTargetSize() error = %v", err)
			}
			if out.Result.Quality < MinQuality {
				t.Errorf("quality %d below floor", out.Result.Quality)
			}
			if out.Result.Width < MinShrinkDimension || out.Result.Height < MinShrinkDimension {
				t.Errorf("dimensions %dx%d below floor", out.Result.Width, out.Result.Height)
			}
			if !out.Shortfall && out.ActualSizeKB > tt.targetKB*ReportTolerance {
				t.Errorf("actual %.2fKB over target %.2fKB without shortfall", out.ActualSizeKB, tt.targetKB)
			}
			if out.SizeKB > tt.targetKB*ReportTolerance {
				t.Errorf("reported %.2fKB exceeds display cap", out.SizeKB)
			}
		})
	}
}

func BenchmarkSearchTargetSize(b *testing.B) {
	src := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SearchTargetSize(codec.NewEncoder(), src, 200, 90, codec.JPEG)
	}
}
