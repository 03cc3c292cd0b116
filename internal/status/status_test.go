package status

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"face-attendance/config"
	"face-attendance/internal/core/models"
	"face-attendance/internal/identity"
	"face-attendance/internal/samples"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			TrainingDir:   filepath.Join(root, "TrainingImage"),
			IdentityFile:  filepath.Join(root, "StudentDetails", "StudentDetails.csv"),
			ModelFile:     filepath.Join(root, "trainer.yml"),
			AttendanceDir: filepath.Join(root, "Attendance"),
			JPEGQuality:   90,
		},
		Detector: config.DetectorConfig{CascadeFile: filepath.Join(root, "haarcascade_frontalface_default.xml")},
	}
}

func TestCollectEmptyDeployment(t *testing.T) {
	r, err := Collect(testConfig(t.TempDir()), false)
	require.NoError(t, err)

	require.Len(t, r.Artifacts, 3)
	for _, a := range r.Artifacts {
		assert.False(t, a.Present, a.Description)
	}
	require.Len(t, r.Directories, 3)
	for _, d := range r.Directories {
		assert.False(t, d.Present, d.Description)
	}
	assert.Zero(t, r.TrainingImages)
	assert.Nil(t, r.Host)
}

func TestCollectPopulatedDeployment(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)

	require.NoError(t, os.WriteFile(cfg.Storage.ModelFile, []byte("x"), 0o644))
	store := identity.NewStore(cfg.Storage.IdentityFile)
	_, err := store.Enroll("1", "Alice")
	require.NoError(t, err)
	_, err = store.Enroll("2", "Bob")
	require.NoError(t, err)

	repo := samples.NewRepository(cfg.Storage.TrainingDir, 90)
	face := image.NewGray(image.Rect(0, 0, 10, 10))
	for seq := 1; seq <= 3; seq++ {
		_, err := repo.Add(models.Identity{ID: 1, Name: "Alice"}, seq, face)
		require.NoError(t, err)
	}
	_, err = repo.Add(models.Identity{ID: 2, Name: "Bob"}, 1, face)
	require.NoError(t, err)

	r, err := Collect(cfg, false)
	require.NoError(t, err)

	assert.False(t, r.Artifacts[0].Present, "cascade")
	assert.True(t, r.Artifacts[1].Present, "model")
	assert.True(t, r.Artifacts[2].Present, "identity store")

	assert.Equal(t, 4, r.Directories[0].Files)
	assert.Equal(t, 1, r.Directories[1].Files)
	assert.False(t, r.Directories[2].Present)

	assert.Equal(t, 4, r.TrainingImages)
	assert.Equal(t, 2, r.TrainedIdentities)
	assert.Equal(t, 2, r.EnrolledIdentities)
}

func TestGetHostStats(t *testing.T) {
	s := GetHostStats()
	require.NotNil(t, s)
	assert.Positive(t, s.NumCPU)
	assert.GreaterOrEqual(t, s.CPUUsage, 0.0)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 Bytes"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}
