// Package enrollment captures face samples for a new identity.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/core/models"
	"face-attendance/internal/identity"
	"face-attendance/internal/imaging"
	"face-attendance/internal/samples"

	log "github.com/sirupsen/logrus"
)

// ErrNoSamples is returned when capture ended before any face was stored.
var ErrNoSamples = errors.New("no face samples captured")

// IdentityWriter appends identities to the identity store.
type IdentityWriter interface {
	Append(identity models.Identity) error
}

// Preview shows capture progress. ShowCapture returns false when the
// operator cancels.
type Preview interface {
	ShowCapture(frame image.Image, faces []image.Rectangle, captured, limit int) bool
}

// Result summarises one enrollment.
type Result struct {
	Identity  models.Identity
	Samples   int
	Frames    int
	Cancelled bool
}

// Service enrolls identities.
type Service struct {
	identities IdentityWriter
	samples    *samples.Repository
	limit      int
}

// NewService creates an enrollment service capturing up to limit samples
// per run.
func NewService(identities IdentityWriter, repo *samples.Repository, limit int) *Service {
	if limit < 1 {
		limit = 100
	}
	return &Service{identities: identities, samples: repo, limit: limit}
}

// Enroll validates id and name, captures face samples from source until the
// cap is reached or the capture is cancelled, and then appends the identity.
// Nothing is written when validation fails or the device fails before the
// first frame.
func (s *Service) Enroll(ctx context.Context, id, name string, source imaging.FrameSource, detector imaging.FaceDetector, preview Preview) (Result, error) {
	ident, err := identity.Validate(id, name)
	if err != nil {
		return Result{}, err
	}

	res := Result{Identity: ident}
	run := s.samples.NewRun(ident, s.limit)
	log.Infof("Capturing up to %d samples for %s (%d)", run.Limit(), ident.Name, ident.ID)

	for !run.Full() {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		frame, err := source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				res.Cancelled = true
				break
			}
			if res.Frames == 0 {
				var devErr *errdefs.DeviceError
				if !errors.As(err, &devErr) {
					err = &errdefs.DeviceError{Op: "read", Err: err}
				}
				return res, err
			}
			log.WithError(err).Warn("Frame read failed, ending capture")
			break
		}
		res.Frames++

		gray := imaging.ToGray(frame)
		boxes := detector.Detect(gray)
		if err := s.capture(run, gray, boxes); err != nil {
			return res, err
		}

		if preview != nil && !preview.ShowCapture(frame, boxes, run.Count(), run.Limit()) {
			res.Cancelled = true
			break
		}
	}

	res.Samples = run.Count()
	if res.Samples == 0 {
		return res, fmt.Errorf("enrollment of %s (%d): %w", ident.Name, ident.ID, ErrNoSamples)
	}
	if err := s.identities.Append(ident); err != nil {
		return res, err
	}

	log.Infof("Images saved for ID: %d Name: %s (%d samples)", ident.ID, ident.Name, res.Samples)
	return res, nil
}

// capture stores every detected face of one frame until the run is full.
func (s *Service) capture(run *samples.CaptureRun, gray *image.Gray, boxes []image.Rectangle) error {
	for _, box := range boxes {
		face := imaging.Crop(gray, box)
		if face.Bounds().Empty() {
			continue
		}
		if _, err := run.Add(face); err != nil {
			if errors.Is(err, samples.ErrRunComplete) {
				return nil
			}
			return err
		}
	}
	return nil
}
