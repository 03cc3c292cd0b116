package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "TrainingImage", cfg.Storage.TrainingDir)
	assert.Equal(t, "StudentDetails/StudentDetails.csv", cfg.Storage.IdentityFile)
	assert.Equal(t, "trainer.yml", cfg.Storage.ModelFile)
	assert.Equal(t, "Attendance", cfg.Storage.AttendanceDir)
	assert.Equal(t, 50.0, cfg.Recognition.UnknownFloor)
	assert.Equal(t, 70.0, cfg.Recognition.PresentFloor)
	assert.Equal(t, 100, cfg.Capture.MaxSamples)
	assert.Equal(t, 8, cfg.LBPH.GridX)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, DetectionTuning{ScaleFactor: 1.3, MinNeighbors: 5, MinSize: 30}, cfg.Detector.Capture)
	assert.Equal(t, DetectionTuning{ScaleFactor: 1.2, MinNeighbors: 5, MinSizeRatio: 0.1}, cfg.Detector.Session)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
recognition:
  unknown_floor: 40
  present_floor: 80
log:
  level: DEBUG
capture:
  max_samples: 20
detector:
  session:
    scale_factor: 1.1
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	t.Setenv("ATTENDANCE_STORAGE_MODEL_FILE", "models/lbph.yml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40.0, cfg.Recognition.UnknownFloor)
	assert.Equal(t, 80.0, cfg.Recognition.PresentFloor)
	assert.Equal(t, 20, cfg.Capture.MaxSamples)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "models/lbph.yml", cfg.Storage.ModelFile)
	assert.Equal(t, 1.1, cfg.Detector.Session.ScaleFactor)
	assert.Equal(t, 1.3, cfg.Detector.Capture.ScaleFactor)
}

func TestLoadRejectsInvertedBands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recognition:\n  unknown_floor: 75\n  present_floor: 70\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recognition bands")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Storage: StorageConfig{
				TrainingDir: "t", IdentityFile: "i.csv", ModelFile: "m.yml", AttendanceDir: "a", JPEGQuality: 90,
			},
			Recognition: RecognitionConfig{UnknownFloor: 50, PresentFloor: 70, OverlapIoU: 0.5, MaxReadFailures: 1},
			Capture:     CaptureConfig{MaxSamples: 100},
			Detector: DetectorConfig{
				Capture: DetectionTuning{ScaleFactor: 1.3, MinNeighbors: 5, MinSize: 30},
				Session: DetectionTuning{ScaleFactor: 1.2, MinNeighbors: 5, MinSizeRatio: 0.1},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "equal floors", mutate: func(c *Config) { c.Recognition.UnknownFloor = 70 }, wantErr: true},
		{name: "present above 100", mutate: func(c *Config) { c.Recognition.PresentFloor = 101 }, wantErr: true},
		{name: "zero read failures", mutate: func(c *Config) { c.Recognition.MaxReadFailures = 0 }, wantErr: true},
		{name: "zero samples", mutate: func(c *Config) { c.Capture.MaxSamples = 0 }, wantErr: true},
		{name: "empty model path", mutate: func(c *Config) { c.Storage.ModelFile = "" }, wantErr: true},
		{name: "overlap out of range", mutate: func(c *Config) { c.Recognition.OverlapIoU = 0 }, wantErr: true},
		{name: "capture scale factor 1", mutate: func(c *Config) { c.Detector.Capture.ScaleFactor = 1 }, wantErr: true},
		{name: "session ratio above 1", mutate: func(c *Config) { c.Detector.Session.MinSizeRatio = 1.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
