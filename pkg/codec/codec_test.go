package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	webp "github.com/chai2010/webp"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		want     Format
		wantName string
		wantExt  string
		wantErr  bool
	}{
		{"", JPEG, "JPEG", "jpeg", false},
		{"jpeg", JPEG, "JPEG", "jpeg", false},
		{"image/jpeg", JPEG, "JPEG", "jpeg", false},
		{"JPG", JPEG, "JPG", "jpg", false},
		{"image/jpg", JPEG, "JPG", "jpg", false},
		{"png", PNG, "PNG", "png", false},
		{"image/webp", WebP, "WebP", "webp", false},
		{"gif", JPEG, "", "", true},
		{"image/heic", JPEG, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("ParseFormat(%q) error = %v, want ErrUnsupportedFormat", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) unexpected error: %v", tt.in, err)
			}
			if got.Format != tt.want || got.Name != tt.wantName || got.Extension != tt.wantExt {
				t.Errorf("ParseFormat(%q) = %+v", tt.in, got)
			}
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5 MB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.in); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSizeKB(t *testing.T) {
	if got := SizeKB(1536); got != 1.5 {
		t.Errorf("SizeKB(1536) = %v, want 1.5", got)
	}
	if got := SizeKB(1000); got != 0.98 {
		t.Errorf("SizeKB(1000) = %v, want 0.98", got)
	}
}

func TestEncoder_Encode_Formats(t *testing.T) {
	img := createTestImage(200, 150)
	enc := NewEncoder()

	tests := []struct {
		format Format
		check  func([]byte) bool
	}{
		{JPEG, func(b []byte) bool { return len(b) > 2 && b[0] == 0xFF && b[1] == 0xD8 }},
		{PNG, func(b []byte) bool { return len(b) > 4 && string(b[1:4]) == "PNG" }},
		{WebP, func(b []byte) bool { return len(b) > 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP" }},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			res, err := enc.Encode(img, EncodeRequest{Width: 200, Height: 150, Quality: 80, Format: tt.format})
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !tt.check(res.Data) {
				t.Errorf("output is not a valid %s file", tt.format)
			}
			if res.Format != tt.format {
				t.Errorf("result format = %v, want %v", res.Format, tt.format)
			}
			if res.SizeKB != SizeKB(len(res.Data)) {
				t.Errorf("SizeKB = %v, want %v", res.SizeKB, SizeKB(len(res.Data)))
			}
		})
	}
}

func TestEncoder_Encode_Resamples(t *testing.T) {
	img := createTestImage(400, 300)
	enc := NewEncoder()

	res, err := enc.Encode(img, EncodeRequest{Width: 100, Height: 50, Quality: 90, Format: PNG})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("decoded size = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
	if res.Width != 100 || res.Height != 50 {
		t.Errorf("result size = %dx%d, want 100x50", res.Width, res.Height)
	}
}

func TestEncoder_Encode_Deterministic(t *testing.T) {
	img := createTestImage(300, 300)
	req := EncodeRequest{Width: 150, Height: 150, Quality: 70, Format: JPEG}

	a, err := NewEncoder().Encode(img, req)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	enc := NewEncoder()
	b, _ := enc.Encode(img, req)
	c, _ := enc.Encode(img, req) // served from the resample cache

	if len(a.Data) != len(b.Data) || len(b.Data) != len(c.Data) {
		t.Errorf("sizes differ: %d, %d, %d", len(a.Data), len(b.Data), len(c.Data))
	}
}

func TestEncoder_Encode_QualityOrdering(t *testing.T) {
	img := createTestImage(500, 500)
	enc := NewEncoder()

	low, _ := enc.Encode(img, EncodeRequest{Width: 500, Height: 500, Quality: 10, Format: JPEG})
	high, _ := enc.Encode(img, EncodeRequest{Width: 500, Height: 500, Quality: 95, Format: JPEG})

	if len(high.Data) <= len(low.Data) {
		t.Errorf("Quality 95 size %d <= Quality 10 size %d", len(high.Data), len(low.Data))
	}
}

func TestEncoder_Encode_InvalidRequest(t *testing.T) {
	enc := NewEncoder()

	if _, err := enc.Encode(nil, EncodeRequest{Width: 10, Height: 10}); !errors.Is(err, ErrNilSurface) {
		t.Errorf("nil surface error = %v, want ErrNilSurface", err)
	}
	_, err := enc.Encode(createTestImage(10, 10), EncodeRequest{Width: 0, Height: 10})
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("zero width error = %v, want ErrInvalidDimensions", err)
	}
}

func TestEncodeRequest_CopyHelpers(t *testing.T) {
	r := EncodeRequest{Width: 10, Height: 20, Quality: 90, Format: PNG}
	q := r.WithQuality(50)
	s := r.WithSize(5, 6)

	if r.Quality != 90 || r.Width != 10 {
		t.Errorf("original request mutated: %+v", r)
	}
	if q.Quality != 50 || q.Width != 10 {
		t.Errorf("WithQuality = %+v", q)
	}
	if s.Width != 5 || s.Height != 6 || s.Quality != 90 {
		t.Errorf("WithSize = %+v", s)
	}
}

func TestDecode(t *testing.T) {
	img := createTestImage(64, 48)

	var jpg, pngBuf, webpBuf bytes.Buffer
	jpeg.Encode(&jpg, img, &jpeg.Options{Quality: 90})
	png.Encode(&pngBuf, img)
	webp.Encode(&webpBuf, img.(*image.RGBA), &webp.Options{Quality: 80})

	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"JPEG", jpg.Bytes(), "image/jpeg"},
		{"PNG", pngBuf.Bytes(), "image/png"},
		{"WebP", webpBuf.Bytes(), "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Decode(tt.data, tt.mime)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if src.Width != 64 || src.Height != 48 {
				t.Errorf("size = %dx%d, want 64x48", src.Width, src.Height)
			}
			if src.OriginalBytes != len(tt.data) {
				t.Errorf("OriginalBytes = %d, want %d", src.OriginalBytes, len(tt.data))
			}
			if src.MIMEType != tt.mime {
				t.Errorf("MIMEType = %s, want %s", src.MIMEType, tt.mime)
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Garbage", []byte("definitely not an image")},
		{"Truncated PNG", []byte("\x89PNG\r\n\x1a\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data, "image/png"); !errors.Is(err, ErrDecodeFailed) {
				t.Errorf("Decode() error = %v, want ErrDecodeFailed", err)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	var buf bytes.Buffer
	png.Encode(&buf, createTestImage(30, 20))

	w, h, err := Probe(buf.Bytes())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if w != 30 || h != 20 {
		t.Errorf("Probe() = %dx%d, want 30x20", w, h)
	}

	if _, _, err := Probe([]byte("nope")); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("Probe(garbage) error = %v, want ErrDecodeFailed", err)
	}
}

func TestValidateDimensions(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		wantErr error
	}{
		{"Valid", 1920, 1080, nil},
		{"Tiny", 1, 1, nil},
		{"Zero", 0, 100, ErrInvalidDimensions},
		{"Too wide", MaxImageWidth + 1, 10, ErrImageTooLarge},
		{"Too many pixels", 19000, 19000, ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDimensions(tt.w, tt.h)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDimensions(%d, %d) = %v, want %v", tt.w, tt.h, err, tt.wantErr)
			}
		})
	}
}

func BenchmarkEncode(b *testing.B) {
	img := createTestImage(1920, 1080)
	enc := NewEncoder()
	req := EncodeRequest{Width: 1920, Height: 1080, Quality: 85, Format: JPEG}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		enc.Encode(img, req)
	}
}
