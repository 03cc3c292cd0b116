package attendance

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	frame image.Image
	err   error
}

type scriptedSource struct {
	steps  []step
	reads  int
	onRead func(n int)
}

func (s *scriptedSource) Read(ctx context.Context) (image.Image, error) {
	s.reads++
	if s.onRead != nil {
		s.onRead(s.reads)
	}
	if len(s.steps) == 0 {
		return nil, io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.frame, st.err
}

type fixedDetector struct {
	boxes []image.Rectangle
}

func (d fixedDetector) Detect(*image.Gray) []image.Rectangle {
	return d.boxes
}

// queueMatcher answers with the queued results in order.
type queueMatcher struct {
	results []models.RecognitionResult
	errs    []error
	calls   int
}

func (m *queueMatcher) Match(image.Image) (models.RecognitionResult, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return models.RecognitionResult{}, m.errs[i]
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	return models.RecognitionResult{CandidateID: 1, Confidence: 0}, nil
}

type quitAfter struct {
	frames int
	seen   int
	obs    [][]Observation
}

func (p *quitAfter) Render(_ image.Image, obs []Observation, _ int) bool {
	p.seen++
	p.obs = append(p.obs, obs)
	return p.seen < p.frames
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 100))
}

func frames(n int) []step {
	steps := make([]step, n)
	for i := range steps {
		steps[i] = step{frame: frame()}
	}
	return steps
}

var oneFace = fixedDetector{boxes: []image.Rectangle{image.Rect(10, 10, 60, 60)}}

func newRunner(t *testing.T, src *scriptedSource, m Matcher, opts ...RunnerOption) (*Runner, *Session) {
	t.Helper()
	s := NewSession(newDirectory(), NewLedger(t.TempDir()), WithClock(fixedClock()))
	return NewRunner(src, oneFace, m, s, opts...), s
}

func TestRunnerStopsAtEndOfStream(t *testing.T) {
	m := &queueMatcher{results: []models.RecognitionResult{
		{CandidateID: 1, Confidence: 60},
		{CandidateID: 1, Confidence: 88},
		{CandidateID: 1, Confidence: 91},
	}}
	r, s := newRunner(t, &scriptedSource{steps: frames(3)}, m)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopEndOfStream, summary.StopReason)
	assert.Equal(t, 3, summary.Frames)
	require.Len(t, summary.Records, 1)
	assert.Equal(t, "Alice", summary.Records[0].Name)
	assert.NotEmpty(t, summary.LedgerPath)
	assert.Equal(t, StateFinalized, s.State())
}

func TestRunnerDeviceFailureFinalizes(t *testing.T) {
	src := &scriptedSource{steps: append(frames(1), step{err: errors.New("timeout")})}
	m := &queueMatcher{results: []models.RecognitionResult{{CandidateID: 2, Confidence: 95}}}
	r, s := newRunner(t, src, m)

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrDevice)
	assert.Equal(t, StopDeviceFailure, summary.StopReason)
	assert.Len(t, summary.Records, 1)
	assert.NotEmpty(t, summary.LedgerPath)
	assert.Equal(t, StateFinalized, s.State())
}

func TestRunnerToleratesTransientReadFailures(t *testing.T) {
	fail := step{err: &errdefs.DeviceError{Op: "read"}}
	steps := []step{fail, fail, {frame: frame()}, fail, fail, {frame: frame()}}
	src := &scriptedSource{steps: steps}
	r, _ := newRunner(t, src, &queueMatcher{}, WithMaxReadFailures(3))

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopEndOfStream, summary.StopReason)
	assert.Equal(t, 2, summary.Frames)
}

func TestRunnerConsecutiveFailuresStop(t *testing.T) {
	fail := step{err: &errdefs.DeviceError{Op: "read"}}
	src := &scriptedSource{steps: []step{fail, {frame: frame()}, fail, fail, {frame: frame()}}}
	r, _ := newRunner(t, src, &queueMatcher{}, WithMaxReadFailures(2))

	summary, err := r.Run(context.Background())
	assert.ErrorIs(t, err, errdefs.ErrDevice)
	assert.Equal(t, StopDeviceFailure, summary.StopReason)
	assert.Equal(t, 1, summary.Frames)
	assert.Equal(t, 4, src.reads)
}

func TestRunnerOperatorQuit(t *testing.T) {
	preview := &quitAfter{frames: 2}
	r, _ := newRunner(t, &scriptedSource{steps: frames(10)}, &queueMatcher{}, WithPreview(preview))

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopQuit, summary.StopReason)
	assert.Equal(t, 2, summary.Frames)
	assert.Empty(t, summary.LedgerPath)
	require.Len(t, preview.obs, 2)
	assert.Equal(t, models.BandUnknown, preview.obs[0][0].Band)
}

func TestRunnerCancellationBetweenFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedSource{steps: frames(10), onRead: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	m := &queueMatcher{results: []models.RecognitionResult{{CandidateID: 3, Confidence: 99}}}
	r, _ := newRunner(t, src, m)

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, summary.StopReason)
	assert.Equal(t, 2, summary.Frames, "the frame in flight is still processed")
	assert.Equal(t, 2, src.reads)
	require.Len(t, summary.Records, 1)
	assert.Equal(t, "Carol", summary.Records[0].Name)
}

func TestRunnerSkipsFailedMatches(t *testing.T) {
	m := &queueMatcher{
		errs:    []error{errors.New("bad crop")},
		results: []models.RecognitionResult{{}, {CandidateID: 2, Confidence: 80}},
	}
	r, _ := newRunner(t, &scriptedSource{steps: frames(2)}, m)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.calls)
	require.Len(t, summary.Records, 1)
	assert.Equal(t, 2, summary.Records[0].ID)
}

func TestRunnerRejectsFinalizedSession(t *testing.T) {
	r, s := newRunner(t, &scriptedSource{}, &queueMatcher{})
	require.NoError(t, s.Start())
	_, err := s.Finalize("")
	require.NoError(t, err)

	src := r.source.(*scriptedSource)
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrSessionFinalized)
	assert.Zero(t, src.reads, "no frame is read for a finalized session")
}

func TestRunnerRetriesLedgerWriteOnce(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
		writes   int
		state    State
	}{
		{name: "first write fails", failures: 1, writes: 2, state: StateFinalized},
		{name: "both writes fail", failures: 2, wantErr: true, writes: 2, state: StateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &flakyLedger{failures: tt.failures}
			s := NewSession(newDirectory(), ledger, WithClock(fixedClock()))
			m := &queueMatcher{results: []models.RecognitionResult{{CandidateID: 1, Confidence: 90}}}
			r := NewRunner(&scriptedSource{steps: frames(1)}, oneFace, m, s)

			summary, err := r.Run(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, summary.LedgerPath)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ledger.csv", summary.LedgerPath)
			}
			assert.Equal(t, tt.writes, ledger.writes)
			assert.Equal(t, tt.state, s.State())
		})
	}
}
