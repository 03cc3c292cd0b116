package attendance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/core/models"
	"face-attendance/internal/imaging"

	log "github.com/sirupsen/logrus"
)

// Matcher identifies a cropped face.
type Matcher interface {
	Match(raster image.Image) (models.RecognitionResult, error)
}

// Preview shows the annotated frame to the operator. Render returns false
// when the operator asked to stop.
type Preview interface {
	Render(frame image.Image, observations []Observation, present int) bool
}

// Runner drives a session from a frame source, one frame at a time.
type Runner struct {
	source          imaging.FrameSource
	detector        imaging.FaceDetector
	matcher         Matcher
	session         *Session
	preview         Preview
	maxReadFailures int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPreview renders every processed frame.
func WithPreview(p Preview) RunnerOption {
	return func(r *Runner) {
		r.preview = p
	}
}

// WithMaxReadFailures sets how many consecutive failed reads end the loop.
func WithMaxReadFailures(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxReadFailures = n
		}
	}
}

// NewRunner wires the recognition loop.
func NewRunner(source imaging.FrameSource, detector imaging.FaceDetector, matcher Matcher, session *Session, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:          source,
		detector:        detector,
		matcher:         matcher,
		session:         session,
		maxReadFailures: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes frames until the context is cancelled, the operator quits,
// the stream ends or the device keeps failing. The session is finalized on
// every path. A device failure is returned as an error together with the
// summary. A failed ledger write is retried once.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	switch r.session.State() {
	case StateFinalized:
		return Summary{}, ErrSessionFinalized
	case StateIdle:
		if err := r.session.Start(); err != nil {
			return Summary{}, err
		}
	}

	reason, runErr := r.loop(ctx)

	summary, err := r.session.Finalize(reason)
	if err != nil {
		log.WithError(err).Warn("Finalizing session failed, retrying once")
		summary, err = r.session.Finalize(reason)
	}
	if err != nil {
		return summary, errors.Join(err, runErr)
	}
	log.Infof("Session %s stopped: %s after %d frames, %d present", summary.SessionID, reason, summary.Frames, len(summary.Records))
	return summary, runErr
}

func (r *Runner) loop(ctx context.Context) (StopReason, error) {
	failures := 0
	for {
		if ctx.Err() != nil {
			return StopCancelled, nil
		}

		frame, err := r.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			return StopEndOfStream, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return StopCancelled, nil
			}
			failures++
			log.WithError(err).Warnf("Frame read failed (%d/%d)", failures, r.maxReadFailures)
			if failures >= r.maxReadFailures {
				var devErr *errdefs.DeviceError
				if !errors.As(err, &devErr) {
					err = &errdefs.DeviceError{Op: "read", Err: err}
				}
				return StopDeviceFailure, err
			}
			continue
		}
		failures = 0

		observations, err := r.processFrame(frame)
		if err != nil {
			return StopFinalized, fmt.Errorf("failed to process frame: %w", err)
		}

		if r.preview != nil && !r.preview.Render(frame, observations, r.session.Present()) {
			return StopQuit, nil
		}
	}
}

func (r *Runner) processFrame(frame image.Image) ([]Observation, error) {
	gray := imaging.ToGray(frame)
	boxes := r.detector.Detect(gray)

	detections := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		face := imaging.Crop(gray, box)
		if face.Bounds().Empty() {
			continue
		}
		res, err := r.matcher.Match(face)
		if err != nil {
			log.WithError(err).Warnf("Recognition failed for face at %v", box)
			continue
		}
		detections = append(detections, Detection{Box: box, Result: res})
	}
	return r.session.ObserveFrame(detections)
}
