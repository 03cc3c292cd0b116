package attendance

import (
	"fmt"

	"face-attendance/internal/core/models"
)

// Thresholds split recognition confidence into bands. A confidence above
// PresentFloor is Present, one above UnknownFloor is LowConfidence and
// anything else is Unknown.
type Thresholds struct {
	UnknownFloor float64
	PresentFloor float64
}

// DefaultThresholds returns the 50/70 bands.
func DefaultThresholds() Thresholds {
	return Thresholds{UnknownFloor: 50, PresentFloor: 70}
}

// Validate requires 0 <= UnknownFloor < PresentFloor <= 100.
func (t Thresholds) Validate() error {
	if t.UnknownFloor < 0 || t.PresentFloor > 100 || t.UnknownFloor >= t.PresentFloor {
		return fmt.Errorf("invalid thresholds: unknown_floor=%v present_floor=%v", t.UnknownFloor, t.PresentFloor)
	}
	return nil
}

// Classify returns the band of a rounded confidence value.
func (t Thresholds) Classify(confidence float64) models.Band {
	switch {
	case confidence > t.PresentFloor:
		return models.BandPresent
	case confidence > t.UnknownFloor:
		return models.BandLowConfidence
	default:
		return models.BandUnknown
	}
}
