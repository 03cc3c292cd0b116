// Package trainer rebuilds the recognition model from the sample repository.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/core/models"
	"face-attendance/internal/lbph"

	log "github.com/sirupsen/logrus"
)

// SampleSource is the part of the sample repository the trainer reads.
type SampleSource interface {
	Dir() string
	Load() ([]models.Sample, []error, error)
}

// Report describes a finished training run.
type Report struct {
	Samples    int
	Identities int
	Skipped    int
	ModelPath  string
	Duration   time.Duration
}

// Train fits a model to samples in one batch. Each sample is labelled with
// its OwnerID.
func Train(params lbph.Params, samples []models.Sample, opts ...lbph.TrainOption) (*lbph.Model, error) {
	if len(samples) == 0 {
		return nil, &errdefs.NoDataError{}
	}
	images := make([]image.Image, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		images[i] = s.Pixels
		labels[i] = s.OwnerID
	}
	model, err := lbph.Train(params, images, labels, opts...)
	if errors.Is(err, lbph.ErrEmptyTrainingSet) {
		return nil, &errdefs.NoDataError{Skipped: len(samples)}
	}
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	return model, nil
}

// Trainer loads samples, trains and replaces the model file.
type Trainer struct {
	source    SampleSource
	modelPath string
	params    lbph.Params
	progress  func(done, total int)
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithProgress registers a callback invoked after each sample is processed.
func WithProgress(fn func(done, total int)) Option {
	return func(t *Trainer) {
		t.progress = fn
	}
}

// New creates a trainer that writes its model to modelPath.
func New(source SampleSource, modelPath string, params lbph.Params, opts ...Option) *Trainer {
	t := &Trainer{source: source, modelPath: modelPath, params: params}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run performs one training pass. When no sample is usable the previous
// model file is left untouched and a *errdefs.NoDataError is returned.
func (t *Trainer) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{ModelPath: t.modelPath}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	samples, skipped, err := t.source.Load()
	if err != nil {
		return report, fmt.Errorf("failed to load samples: %w", err)
	}
	for _, s := range skipped {
		log.WithError(s).Warn("Skipping unreadable training sample")
	}
	report.Skipped = len(skipped)

	if len(samples) == 0 {
		return report, &errdefs.NoDataError{Dir: t.source.Dir(), Skipped: len(skipped)}
	}

	log.Infof("Training on %d samples", len(samples))

	opts := []lbph.TrainOption{lbph.WithSkip(func(i int, err error) {
		log.WithError(&errdefs.UnreadableSampleError{Path: samples[i].Path, Err: err}).Warn("Skipping training sample")
		report.Skipped++
	})}
	if t.progress != nil {
		opts = append(opts, lbph.WithProgress(t.progress))
	}
	model, err := Train(t.params, samples, opts...)
	var noData *errdefs.NoDataError
	if errors.As(err, &noData) {
		return report, &errdefs.NoDataError{Dir: t.source.Dir(), Skipped: report.Skipped}
	}
	if err != nil {
		return report, err
	}
	report.Samples = len(model.Entries)
	report.Identities = len(model.Labels())
	log.Infof("Trained on %d samples of %d identities", report.Samples, report.Identities)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := model.Save(t.modelPath); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	log.Infof("Model saved to %s in %v", t.modelPath, report.Duration.Round(time.Millisecond))
	return report, nil
}
