package lbph

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"face-attendance/internal/core/errdefs"
)

// Format identifies the on-disk model layout.
const Format = "lbph/v1"

// Entry is one training histogram and its label.
type Entry struct {
	Label     int       `yaml:"label"`
	Histogram []float64 `yaml:"histogram,flow"`
}

// Model is a trained LBPH recognizer. It is immutable after Train or Load.
type Model struct {
	Format  string  `yaml:"format"`
	Params  Params  `yaml:"params"`
	Entries []Entry `yaml:"entries"`
}

type trainOptions struct {
	progress func(done, total int)
	skip     func(index int, err error)
}

// TrainOption customises Train.
type TrainOption func(*trainOptions)

// WithProgress reports the number of processed images after each image.
func WithProgress(fn func(done, total int)) TrainOption {
	return func(o *trainOptions) {
		o.progress = fn
	}
}

// WithSkip is called for every image left out because it is too small for
// the cell grid.
func WithSkip(fn func(index int, err error)) TrainOption {
	return func(o *trainOptions) {
		o.skip = fn
	}
}

// Train builds a model from images and their labels in a single batch.
// Images too small for the grid are skipped; ErrEmptyTrainingSet is returned
// when nothing is left.
func Train(p Params, images []image.Image, labels []int, opts ...TrainOption) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("lbph: %d images but %d labels", len(images), len(labels))
	}
	if len(images) == 0 {
		return nil, ErrEmptyTrainingSet
	}

	o := trainOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Model{Format: Format, Params: p, Entries: make([]Entry, 0, len(images))}
	for i, img := range images {
		hist, err := Histogram(img, p)
		switch {
		case errors.Is(err, ErrRasterTooSmall):
			if o.skip != nil {
				o.skip(i, err)
			}
		case err != nil:
			return nil, fmt.Errorf("lbph: image %d (label %d): %w", i, labels[i], err)
		default:
			m.Entries = append(m.Entries, Entry{Label: labels[i], Histogram: hist})
		}
		if o.progress != nil {
			o.progress(i+1, len(images))
		}
	}
	if len(m.Entries) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	return m, nil
}

// Predict returns the label of the nearest training histogram and its distance.
// Ties resolve to the earliest trained entry.
func (m *Model) Predict(img image.Image) (int, float64, error) {
	if len(m.Entries) == 0 {
		return 0, 0, ErrEmptyTrainingSet
	}
	hist, err := Histogram(img, m.Params)
	if err != nil {
		return 0, 0, err
	}

	label, best := -1, math.MaxFloat64
	for _, e := range m.Entries {
		if d := ChiSquare(e.Histogram, hist); d < best {
			label, best = e.Label, d
		}
	}
	return label, best, nil
}

// Labels returns the distinct labels in ascending order.
func (m *Model) Labels() []int {
	set := make(map[int]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		set[e.Label] = struct{}{}
	}
	labels := make([]int, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// Save writes the model to path, replacing any previous file atomically.
func (m *Model) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model %s: %w", path, err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &errdefs.MissingArtifactError{Artifact: "recognition model", Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if m.Format != Format {
		return nil, fmt.Errorf("model %s: unsupported format %q", path, m.Format)
	}
	if err := m.Params.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	want := m.Params.Len()
	for i, e := range m.Entries {
		if len(e.Histogram) != want {
			return nil, fmt.Errorf("model %s: entry %d has %d bins, want %d", path, i, len(e.Histogram), want)
		}
	}
	return &m, nil
}
