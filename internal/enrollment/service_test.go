package enrollment

import (
	"context"
	"errors"
	"image"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/identity"
	"face-attendance/internal/samples"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameSource struct {
	frames int
	err    error
	reads  int
}

func (s *frameSource) Read(context.Context) (image.Image, error) {
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	if s.reads > s.frames {
		return nil, io.EOF
	}
	rng := rand.New(rand.NewSource(int64(s.reads)))
	img := image.NewGray(image.Rect(0, 0, 160, 120))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img, nil
}

type boxes []image.Rectangle

func (b boxes) Detect(*image.Gray) []image.Rectangle { return b }

type cancelAfter struct {
	n     int
	calls int
}

func (p *cancelAfter) ShowCapture(_ image.Image, _ []image.Rectangle, _, _ int) bool {
	p.calls++
	return p.calls < p.n
}

type fixture struct {
	store *identity.Store
	repo  *samples.Repository
	svc   *Service
}

func newFixture(t *testing.T, limit int) fixture {
	dir := t.TempDir()
	store := identity.NewStore(filepath.Join(dir, "StudentDetails", "StudentDetails.csv"))
	repo := samples.NewRepository(filepath.Join(dir, "TrainingImage"), 90)
	return fixture{store: store, repo: repo, svc: NewService(store, repo, limit)}
}

var twoFaces = boxes{image.Rect(10, 10, 50, 50), image.Rect(90, 20, 130, 60)}

func TestEnrollCapturesUpToLimit(t *testing.T) {
	f := newFixture(t, 5)
	src := &frameSource{frames: 100}

	res, err := f.svc.Enroll(context.Background(), "42", "Alice", src, twoFaces, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Samples)
	assert.Equal(t, 3, res.Frames)
	assert.False(t, res.Cancelled)

	loaded, skipped, err := f.repo.Load()
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, loaded, 5)
	for _, s := range loaded {
		assert.Equal(t, 42, s.OwnerID)
	}

	all, err := f.store.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Alice", all[0].Name)
}

func TestEnrollRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, 5)
	src := &frameSource{frames: 10}

	_, err := f.svc.Enroll(context.Background(), "4x2", "Alice", src, twoFaces, nil)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
	_, err = f.svc.Enroll(context.Background(), "42", "Alice2", src, twoFaces, nil)
	assert.ErrorIs(t, err, errdefs.ErrValidation)

	assert.Zero(t, src.reads)
	_, err = os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.repo.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestEnrollDeviceFailureWritesNothing(t *testing.T) {
	f := newFixture(t, 5)
	src := &frameSource{err: errors.New("no camera")}

	_, err := f.svc.Enroll(context.Background(), "42", "Alice", src, twoFaces, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrDevice)

	_, err = os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestEnrollOperatorCancel(t *testing.T) {
	f := newFixture(t, 100)
	preview := &cancelAfter{n: 2}

	res, err := f.svc.Enroll(context.Background(), "7", "Bob", &frameSource{frames: 50}, twoFaces, preview)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 4, res.Samples)

	dir, err := f.store.Directory()
	require.NoError(t, err)
	name, err := dir.Lookup(7)
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)
}

func TestEnrollContextCancelled(t *testing.T) {
	f := newFixture(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.Enroll(ctx, "7", "Bob", &frameSource{frames: 50}, twoFaces, nil)
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.True(t, res.Cancelled)

	_, err = os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestEnrollWithoutFaces(t *testing.T) {
	f := newFixture(t, 10)
	res, err := f.svc.Enroll(context.Background(), "9", "Carol", &frameSource{frames: 3}, boxes{}, nil)
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.Equal(t, 3, res.Frames)
}

func TestEnrollSecondRunRestartsNumbering(t *testing.T) {
	f := newFixture(t, 2)
	_, err := f.svc.Enroll(context.Background(), "3", "Dana", &frameSource{frames: 5}, twoFaces, nil)
	require.NoError(t, err)
	_, err = f.svc.Enroll(context.Background(), "3", "Dana", &frameSource{frames: 5}, twoFaces, nil)
	require.NoError(t, err)

	files, ids, err := f.repo.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, 1, ids)

	all, err := f.store.All()
	require.NoError(t, err)
	assert.Len(t, all, 2, "re-enrollment appends a second row")
}
