package opencv

import (
	"fmt"
	"image"
	"image/color"

	"face-attendance/internal/attendance"
	"face-attendance/internal/core/models"

	gocv "gocv.io/x/gocv"
	log "github.com/sirupsen/logrus"
)

// Farben für die Visualisierung
var (
	green  = color.RGBA{0, 255, 0, 0}
	yellow = color.RGBA{255, 255, 0, 0}
	red    = color.RGBA{255, 0, 0, 0}
	blue   = color.RGBA{0, 128, 255, 0}
	white  = color.RGBA{255, 255, 255, 0}
)

const quitKey = 'q'

// Window is the operator preview. Pressing q stops the current loop.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a preview window.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// BandColor returns the box color of a recognition band.
func BandColor(b models.Band) color.RGBA {
	switch b {
	case models.BandPresent:
		return green
	case models.BandLowConfidence:
		return yellow
	default:
		return red
	}
}

// Label returns the caption drawn above a detection.
func Label(o attendance.Observation) string {
	switch o.Band {
	case models.BandPresent, models.BandLowConfidence:
		return fmt.Sprintf("%s %.2f%%", o.Name, o.Result.Confidence)
	default:
		return "Unknown"
	}
}

// Render draws the observations of one attendance frame.
func (w *Window) Render(frame image.Image, observations []attendance.Observation, present int) bool {
	return w.show(frame, func(mat *gocv.Mat) {
		for _, o := range observations {
			c := BandColor(o.Band)
			gocv.Rectangle(mat, o.Box, c, 2)
			gocv.PutText(mat, Label(o), image.Pt(o.Box.Min.X+5, o.Box.Min.Y-5), gocv.FontHersheySimplex, 0.6, c, 2)
			if o.Band != models.BandUnknown {
				gocv.PutText(mat, o.Band.String(), image.Pt(o.Box.Min.X+5, o.Box.Max.Y+20), gocv.FontHersheyPlain, 1.2, c, 1)
			}
		}
		gocv.PutText(mat, fmt.Sprintf("Present: %d", present), image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, white, 2)
		gocv.PutText(mat, "Press 'q' to finish", image.Pt(10, 60), gocv.FontHersheyPlain, 1.2, white, 1)
	})
}

// ShowCapture draws enrollment progress.
func (w *Window) ShowCapture(frame image.Image, faces []image.Rectangle, captured, limit int) bool {
	return w.show(frame, func(mat *gocv.Mat) {
		for _, r := range faces {
			gocv.Rectangle(mat, r, blue, 2)
		}
		gocv.PutText(mat, fmt.Sprintf("Samples: %d/%d", captured, limit), image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, white, 2)
	})
}

// ShowFaces draws detections with a face counter.
func (w *Window) ShowFaces(frame image.Image, faces []image.Rectangle) bool {
	return w.show(frame, func(mat *gocv.Mat) {
		for _, r := range faces {
			gocv.Rectangle(mat, r, green, 2)
		}
		gocv.PutText(mat, fmt.Sprintf("Faces detected: %d", len(faces)), image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, green, 2)
	})
}

func (w *Window) show(frame image.Image, draw func(mat *gocv.Mat)) bool {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		log.Warnf("Failed to convert frame for preview: %v", err)
		return true
	}
	defer mat.Close()

	draw(&mat)
	w.win.IMShow(mat)
	return w.win.WaitKey(1) != quitKey
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
