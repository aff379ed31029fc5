package codec

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// EXIF orientation values, as written by cameras and phones
const (
	OrientNormal     = 1
	OrientFlipH      = 2
	OrientRotate180  = 3
	OrientFlipV      = 4
	OrientTranspose  = 5
	OrientRotate90   = 6
	OrientTransverse = 7
	OrientRotate270  = 8
)

var jpegSOI = []byte{0xFF, 0xD8}

// Orientation reads the EXIF orientation tag of a JPEG. Other formats, and
// anything missing or out of range, read as OrientNormal.
func Orientation(data []byte) (o int) {
	if !bytes.HasPrefix(data, jpegSOI) {
		return OrientNormal
	}
	// goexif can panic on malformed TIFF directories
	defer func() {
		if recover() != nil {
			o = OrientNormal
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return OrientNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < OrientNormal || v > OrientRotate270 {
		return OrientNormal
	}
	return v
}

// swapsAxes reports whether the orientation exchanges width and height
func swapsAxes(o int) bool {
	return o >= OrientTranspose && o <= OrientRotate270
}

// ApplyOrientation returns img as it should be displayed for orientation o
func ApplyOrientation(img image.Image, o int) image.Image {
	switch o {
	case OrientFlipH:
		return imaging.FlipH(img)
	case OrientRotate180:
		return imaging.Rotate180(img)
	case OrientFlipV:
		return imaging.FlipV(img)
	case OrientTranspose:
		return imaging.Transpose(img)
	case OrientRotate90:
		// tag 6: the camera was turned clockwise, imaging rotates counter-clockwise
		return imaging.Rotate270(img)
	case OrientTransverse:
		return imaging.Transverse(img)
	case OrientRotate270:
		return imaging.Rotate90(img)
	}
	return img
}
