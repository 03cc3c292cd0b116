package config

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Log         LogConfig         `mapstructure:"log"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	LBPH        LBPHConfig        `mapstructure:"lbph"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Detector    DetectorConfig    `mapstructure:"detector"`
	DB          DBConfig          `mapstructure:"db"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Timezone    string            `mapstructure:"timezone"`
}

// StorageConfig holds the locations of every persisted artifact.
type StorageConfig struct {
	TrainingDir   string `mapstructure:"training_dir"`
	IdentityFile  string `mapstructure:"identity_file"`
	ModelFile     string `mapstructure:"model_file"`
	AttendanceDir string `mapstructure:"attendance_dir"`
	JPEGQuality   int    `mapstructure:"jpeg_quality"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console format: text or json
	File   string `mapstructure:"file"`   // JSON lines
}

// RecognitionConfig holds the confidence bands of the attendance loop.
// A detection is Unknown at or below UnknownFloor and Present above PresentFloor.
type RecognitionConfig struct {
	UnknownFloor    float64 `mapstructure:"unknown_floor"`
	PresentFloor    float64 `mapstructure:"present_floor"`
	OverlapIoU      float64 `mapstructure:"overlap_iou"`
	MaxReadFailures int     `mapstructure:"max_read_failures"`
}

// LBPHConfig holds the local binary pattern histogram parameters.
type LBPHConfig struct {
	Radius    int `mapstructure:"radius"`
	Neighbors int `mapstructure:"neighbors"`
	GridX     int `mapstructure:"grid_x"`
	GridY     int `mapstructure:"grid_y"`
	FaceSize  int `mapstructure:"face_size"`
}

// CaptureConfig holds camera settings.
type CaptureConfig struct {
	Device     int  `mapstructure:"device"`
	Width      int  `mapstructure:"width"`
	Height     int  `mapstructure:"height"`
	MaxSamples int  `mapstructure:"max_samples"`
	Preview    bool `mapstructure:"preview"`
}

// DetectorConfig holds the Haar cascade and one tuning per camera mode.
type DetectorConfig struct {
	CascadeFile string          `mapstructure:"cascade_file"`
	Capture     DetectionTuning `mapstructure:"capture"` // enrollment and camera test
	Session     DetectionTuning `mapstructure:"session"`
}

// DetectionTuning holds the multi-scale detection parameters.
type DetectionTuning struct {
	ScaleFactor  float64 `mapstructure:"scale_factor"`
	MinNeighbors int     `mapstructure:"min_neighbors"`
	MinSize      int     `mapstructure:"min_size"`       // pixels
	MinSizeRatio float64 `mapstructure:"min_size_ratio"` // fraction of the shorter frame side, 0 = off
}

// DBConfig holds the attendance archive settings.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`
}

// MQTTConfig holds the presence event publisher settings.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	HADiscovery bool   `mapstructure:"ha_discovery"` // Home Assistant sensors per identity
}

// Load reads the configuration from defaults, the optional file and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	r := c.Recognition
	if r.UnknownFloor < 0 || r.PresentFloor > 100 || r.UnknownFloor >= r.PresentFloor {
		return fmt.Errorf("invalid recognition bands: unknown_floor=%v present_floor=%v (need 0 <= unknown_floor < present_floor <= 100)",
			r.UnknownFloor, r.PresentFloor)
	}
	if r.OverlapIoU <= 0 || r.OverlapIoU > 1 {
		return fmt.Errorf("invalid recognition.overlap_iou %v: must be in (0,1]", r.OverlapIoU)
	}
	if r.MaxReadFailures < 1 {
		return fmt.Errorf("invalid recognition.max_read_failures %d: must be at least 1", r.MaxReadFailures)
	}
	for name, t := range map[string]DetectionTuning{"capture": c.Detector.Capture, "session": c.Detector.Session} {
		if t.ScaleFactor <= 1 {
			return fmt.Errorf("invalid detector.%s.scale_factor %v: must be greater than 1", name, t.ScaleFactor)
		}
		if t.MinNeighbors < 0 || t.MinSize < 0 || t.MinSizeRatio < 0 || t.MinSizeRatio > 1 {
			return fmt.Errorf("invalid detector.%s tuning: %+v", name, t)
		}
	}
	if c.Capture.MaxSamples < 1 {
		return fmt.Errorf("invalid capture.max_samples %d: must be at least 1", c.Capture.MaxSamples)
	}
	if c.Storage.JPEGQuality < 1 || c.Storage.JPEGQuality > 100 {
		return fmt.Errorf("invalid storage.jpeg_quality %d", c.Storage.JPEGQuality)
	}
	if c.Storage.TrainingDir == "" || c.Storage.IdentityFile == "" || c.Storage.ModelFile == "" || c.Storage.AttendanceDir == "" {
		return fmt.Errorf("storage paths must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Storage (layout of the original deployment)
	v.SetDefault("storage.training_dir", "TrainingImage")
	v.SetDefault("storage.identity_file", "StudentDetails/StudentDetails.csv")
	v.SetDefault("storage.model_file", "trainer.yml")
	v.SetDefault("storage.attendance_dir", "Attendance")
	v.SetDefault("storage.jpeg_quality", 95)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("recognition.unknown_floor", 50.0)
	v.SetDefault("recognition.present_floor", 70.0)
	v.SetDefault("recognition.overlap_iou", 0.5)
	v.SetDefault("recognition.max_read_failures", 1)

	v.SetDefault("lbph.radius", 1)
	v.SetDefault("lbph.neighbors", 8)
	v.SetDefault("lbph.grid_x", 8)
	v.SetDefault("lbph.grid_y", 8)
	v.SetDefault("lbph.face_size", 100)

	v.SetDefault("capture.device", 0)
	v.SetDefault("capture.width", 640)
	v.SetDefault("capture.height", 480)
	v.SetDefault("capture.max_samples", 100)
	v.SetDefault("capture.preview", true)

	v.SetDefault("detector.cascade_file", "haarcascade_frontalface_default.xml")
	v.SetDefault("detector.capture.scale_factor", 1.3)
	v.SetDefault("detector.capture.min_neighbors", 5)
	v.SetDefault("detector.capture.min_size", 30)
	v.SetDefault("detector.capture.min_size_ratio", 0.0)
	v.SetDefault("detector.session.scale_factor", 1.2)
	v.SetDefault("detector.session.min_neighbors", 5)
	v.SetDefault("detector.session.min_size", 0)
	v.SetDefault("detector.session.min_size_ratio", 0.1)

	v.SetDefault("db.enabled", true)
	v.SetDefault("db.file", "attendance.db")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "face-attendance")
	v.SetDefault("mqtt.topic_prefix", "attendance")
	v.SetDefault("mqtt.ha_discovery", false)

	v.SetDefault("timezone", "")
}
