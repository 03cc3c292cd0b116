// Package recognizer matches face rasters against a trained model.
package recognizer

import (
	"fmt"
	"image"
	"math"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/core/models"
	"face-attendance/internal/lbph"
)

// Recognizer wraps a loaded model. It never modifies the model.
type Recognizer struct {
	model *lbph.Model
	path  string
}

// New returns a recognizer for model. A nil or empty model is treated as
// not loaded.
func New(model *lbph.Model) (*Recognizer, error) {
	if model == nil || len(model.Entries) == 0 {
		return nil, &errdefs.MissingArtifactError{Artifact: "recognition model", Path: "(in memory)"}
	}
	return &Recognizer{model: model}, nil
}

// Load reads the model at path.
func Load(path string) (*Recognizer, error) {
	model, err := lbph.Load(path)
	if err != nil {
		return nil, err
	}
	if len(model.Entries) == 0 {
		return nil, &errdefs.MissingArtifactError{Artifact: "recognition model", Path: path}
	}
	return &Recognizer{model: model, path: path}, nil
}

// Labels returns the identity ids known to the model.
func (r *Recognizer) Labels() []int {
	return r.model.Labels()
}

// Match returns the best candidate for raster. Confidence is 100 minus the
// model distance, rounded to two decimals, and may be negative.
func (r *Recognizer) Match(raster image.Image) (models.RecognitionResult, error) {
	if raster == nil || raster.Bounds().Empty() {
		return models.RecognitionResult{}, fmt.Errorf("empty face raster")
	}
	label, distance, err := r.model.Predict(raster)
	if err != nil {
		return models.RecognitionResult{}, fmt.Errorf("prediction failed: %w", err)
	}
	return models.RecognitionResult{
		CandidateID: label,
		Confidence:  Confidence(distance),
	}, nil
}

// Confidence converts a model distance to the rounded confidence score.
func Confidence(distance float64) float64 {
	return math.Round((100-distance)*100) / 100
}
