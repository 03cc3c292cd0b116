// Package imaging holds the raster helpers and the capture-side interfaces
// shared by enrollment and the attendance loop.
package imaging

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// FrameSource produces camera frames. Read returns io.EOF at end of stream
// and a *errdefs.DeviceError when the device fails.
type FrameSource interface {
	Read(ctx context.Context) (image.Image, error)
}

// FaceDetector returns face bounding boxes for a grayscale frame.
// Implementations carry no state between calls.
type FaceDetector interface {
	Detect(gray *image.Gray) []image.Rectangle
}

// ToGray converts img to an 8-bit grayscale raster with bounds starting at 0,0.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Crop copies the part of gray inside r. The result is empty when r does not
// overlap the raster.
func Crop(gray *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(gray.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	if r.Empty() {
		return out
	}
	draw.Draw(out, out.Bounds(), gray, r.Min, draw.Src)
	return out
}

// Resize scales gray to size×size. A size of zero returns gray unchanged.
func Resize(gray *image.Gray, size int) *image.Gray {
	if size <= 0 {
		return gray
	}
	b := gray.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return gray
	}
	out := image.NewGray(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), gray, b, draw.Src, nil)
	return out
}

// Decode reads any registered image format and returns it as grayscale.
func Decode(r io.Reader) (*image.Gray, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToGray(img), nil
}

// DecodeFile opens and decodes path as grayscale.
func DecodeFile(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// EncodeJPEG writes gray as a JPEG with the given quality.
func EncodeJPEG(w io.Writer, gray *image.Gray, quality int) error {
	if err := jpeg.Encode(w, gray, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// IoU calculates Intersection over Union between two boxes.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
