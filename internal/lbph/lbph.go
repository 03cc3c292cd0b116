// Package lbph implements a local binary pattern histogram face recognizer.
//
// Each face is converted to grayscale, scaled to a fixed square, encoded with
// circular LBP codes and summarised as a grid of normalised histograms.
// Prediction returns the label of the nearest training histogram under the
// alternative chi-square distance.
package lbph

import (
	"errors"
	"fmt"
	"image"
	"math"

	"face-attendance/internal/imaging"
)

var (
	// ErrEmptyTrainingSet is returned by Train when there is nothing to learn from.
	ErrEmptyTrainingSet = errors.New("empty training set")
	// ErrRasterTooSmall is returned for images that cannot fill the cell grid.
	ErrRasterTooSmall = errors.New("raster too small for grid")
)

const epsilon = 1e-9

// Params controls feature extraction. The same values must be used for
// training and prediction, so they are stored in the model.
type Params struct {
	Radius    int `yaml:"radius"`
	Neighbors int `yaml:"neighbors"`
	GridX     int `yaml:"grid_x"`
	GridY     int `yaml:"grid_y"`
	FaceSize  int `yaml:"face_size"` // 0 keeps the input size
}

// DefaultParams mirrors the usual LBPH defaults with 100px faces.
func DefaultParams() Params {
	return Params{Radius: 1, Neighbors: 8, GridX: 8, GridY: 8, FaceSize: 100}
}

// Validate rejects parameters that cannot produce a histogram.
func (p Params) Validate() error {
	if p.Radius < 1 {
		return fmt.Errorf("lbph: radius must be at least 1, got %d", p.Radius)
	}
	if p.Neighbors < 1 || p.Neighbors > 8 {
		return fmt.Errorf("lbph: neighbors must be between 1 and 8, got %d", p.Neighbors)
	}
	if p.GridX < 1 || p.GridY < 1 {
		return fmt.Errorf("lbph: grid must be at least 1x1, got %dx%d", p.GridX, p.GridY)
	}
	if p.FaceSize < 0 {
		return fmt.Errorf("lbph: face size must not be negative, got %d", p.FaceSize)
	}
	if p.FaceSize > 0 && p.FaceSize-2*p.Radius < max(p.GridX, p.GridY) {
		return fmt.Errorf("lbph: face size %d too small for radius %d and grid %dx%d", p.FaceSize, p.Radius, p.GridX, p.GridY)
	}
	return nil
}

// Bins is the number of histogram bins per grid cell.
func (p Params) Bins() int {
	return 1 << p.Neighbors
}

// Len is the length of a full spatial histogram.
func (p Params) Len() int {
	return p.GridX * p.GridY * p.Bins()
}

// Prepare converts img to the single-channel fixed-size raster the
// features are computed on.
func Prepare(img image.Image, p Params) *image.Gray {
	return imaging.Resize(imaging.ToGray(img), p.FaceSize)
}

// Histogram computes the spatial LBP histogram of img.
func Histogram(img image.Image, p Params) ([]float64, error) {
	gray := Prepare(img, p)
	codes, w, h := extendedLBP(gray, p.Radius, p.Neighbors)
	cellW, cellH := w/p.GridX, h/p.GridY
	if cellW < 1 || cellH < 1 {
		b := gray.Bounds()
		return nil, fmt.Errorf("lbph: %w: %dx%d for %dx%d cells", ErrRasterTooSmall, b.Dx(), b.Dy(), p.GridX, p.GridY)
	}

	bins := p.Bins()
	hist := make([]float64, p.Len())
	total := float64(cellW * cellH)
	for gy := 0; gy < p.GridY; gy++ {
		for gx := 0; gx < p.GridX; gx++ {
			offset := (gy*p.GridX + gx) * bins
			cell := hist[offset : offset+bins]
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				row := codes[y*w : (y+1)*w]
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					cell[row[x]]++
				}
			}
			for i := range cell {
				cell[i] /= total
			}
		}
	}
	return hist, nil
}

// extendedLBP computes circular LBP codes with bilinear interpolation of the
// sampling points. The result excludes a border of radius pixels.
func extendedLBP(src *image.Gray, radius, neighbors int) ([]int, int, int) {
	b := src.Bounds()
	rows, cols := b.Dy(), b.Dx()
	w, h := cols-2*radius, rows-2*radius
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}

	at := func(y, x int) float64 {
		return float64(src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}

	codes := make([]int, w*h)
	for n := 0; n < neighbors; n++ {
		angle := 2 * math.Pi * float64(n) / float64(neighbors)
		x := snap(-float64(radius) * math.Sin(angle))
		y := snap(float64(radius) * math.Cos(angle))

		fx, fy := int(math.Floor(x)), int(math.Floor(y))
		cx, cy := int(math.Ceil(x)), int(math.Ceil(y))
		tx, ty := x-float64(fx), y-float64(fy)

		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty
		bit := 1 << n

		for i := radius; i < rows-radius; i++ {
			for j := radius; j < cols-radius; j++ {
				t := w1*at(i+fy, j+fx) + w2*at(i+fy, j+cx) + w3*at(i+cy, j+fx) + w4*at(i+cy, j+cx)
				c := at(i, j)
				if t > c || math.Abs(t-c) < epsilon {
					codes[(i-radius)*w+(j-radius)] |= bit
				}
			}
		}
	}
	return codes, w, h
}

// snap removes floating point noise around integer sampling offsets.
func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < epsilon {
		return r
	}
	return v
}

// ChiSquare is the alternative chi-square distance Σ 2(a-b)²/(a+b).
func ChiSquare(a, b []float64) float64 {
	n := min(len(a), len(b))
	var d float64
	for i := 0; i < n; i++ {
		sum := a[i] + b[i]
		if sum > epsilon {
			diff := a[i] - b[i]
			d += 2 * diff * diff / sum
		}
	}
	return d
}
