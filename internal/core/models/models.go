package models

import (
	"image"
)

// Identity is an enrolled person.
type Identity struct {
	ID   int    // positive numeric id
	Name string // letters only
}

// Sample is one labeled face raster. OwnerID is fixed when the sample is
// captured or loaded; nothing downstream derives it from the file name.
type Sample struct {
	OwnerID    int
	OwnerName  string
	SequenceNo int
	Path       string
	Pixels     *image.Gray
}

// RecognitionResult is the recognizer's answer for one detected face.
// Confidence is 100 minus the model distance and can be negative.
type RecognitionResult struct {
	CandidateID int
	Confidence  float64
}

// AttendanceRecord is one row of the attendance ledger.
type AttendanceRecord struct {
	ID   int
	Name string
	Date string // YYYY-MM-DD
	Time string // HH:MM:SS
}

// Band is the classification of a recognition result by confidence.
type Band int

const (
	BandUnknown Band = iota
	BandLowConfidence
	BandPresent
)

func (b Band) String() string {
	switch b {
	case BandPresent:
		return "Present"
	case BandLowConfidence:
		return "Low Confidence"
	default:
		return "Unknown"
	}
}
