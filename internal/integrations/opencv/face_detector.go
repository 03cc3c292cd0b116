package opencv

import (
	"fmt"
	"image"
	"os"

	"face-attendance/config"
	"face-attendance/internal/core/errdefs"

	gocv "gocv.io/x/gocv"
	log "github.com/sirupsen/logrus"
)

// FaceDetector implementiert die Gesichtserkennung mit einer Haar-Kaskade.
type FaceDetector struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      int     // Mindestgröße in Pixeln
	minSizeRatio float64 // Mindestgröße relativ zur kürzeren Bildseite, 0 = aus
}

// NewFaceDetector loads the cascade with the tuning of one camera mode.
func NewFaceDetector(cascadeFile string, tuning config.DetectionTuning) (*FaceDetector, error) {
	if !fileExists(cascadeFile) {
		return nil, &errdefs.MissingArtifactError{Artifact: "face detection cascade", Path: cascadeFile}
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadeFile) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade %s", cascadeFile)
	}
	log.Debugf("Haar cascade loaded from %s (scale %.2f, min neighbors %d)", cascadeFile, tuning.ScaleFactor, tuning.MinNeighbors)

	d := &FaceDetector{
		classifier:   classifier,
		scaleFactor:  tuning.ScaleFactor,
		minNeighbors: tuning.MinNeighbors,
		minSize:      tuning.MinSize,
		minSizeRatio: tuning.MinSizeRatio,
	}
	if d.scaleFactor <= 1 {
		d.scaleFactor = 1.1 // Standardwert
	}
	return d, nil
}

// Detect returns face boxes in detector order.
func (d *FaceDetector) Detect(gray *image.Gray) []image.Rectangle {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		log.Warnf("Failed to convert frame for detection: %v", err)
		return nil
	}
	defer mat.Close()

	size := minFaceSize(gray.Bounds(), d.minSize, d.minSizeRatio)
	return d.classifier.DetectMultiScaleWithParams(mat, d.scaleFactor, d.minNeighbors, 0,
		image.Pt(size, size), image.Pt(0, 0))
}

// Close releases the classifier.
func (d *FaceDetector) Close() error {
	return d.classifier.Close()
}

func minFaceSize(bounds image.Rectangle, minSize int, ratio float64) int {
	size := minSize
	if ratio > 0 {
		side := min(bounds.Dx(), bounds.Dy())
		size = max(size, int(ratio*float64(side)))
	}
	return size
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
