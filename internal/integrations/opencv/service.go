package opencv

import (
	"errors"
	"fmt"
	"sync"

	"face-attendance/config"

	log "github.com/sirupsen/logrus"
)

// Service bündelt Kamera, Gesichtsdetektor und Vorschaufenster.
type Service struct {
	Camera   *Camera
	Detector *FaceDetector
	Window   *Window // nil ohne Vorschau
	mutex    sync.Mutex
}

// Mode selects the detector tuning.
type Mode int

const (
	ModeEnrollment Mode = iota
	ModeSession
	ModeCameraTest
)

// NewService opens the devices needed for one command. The detector is
// loaded first so a missing cascade never opens the camera.
func NewService(cfg *config.Config, mode Mode, title string) (*Service, error) {
	tuning := cfg.Detector.Capture
	if mode == ModeSession {
		tuning = cfg.Detector.Session
	}
	detector, err := NewFaceDetector(cfg.Detector.CascadeFile, tuning)
	if err != nil {
		return nil, err
	}

	camera, err := OpenCamera(cfg.Capture)
	if err != nil {
		detector.Close()
		return nil, err
	}

	s := &Service{Camera: camera, Detector: detector}
	if cfg.Capture.Preview || mode == ModeCameraTest {
		s.Window = NewWindow(title)
	} else {
		log.Info("Preview window disabled, stop with Ctrl+C")
	}
	return s, nil
}

// Close gibt die Ressourcen des OpenCV-Service frei.
func (s *Service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var errs []error
	if s.Window != nil {
		errs = append(errs, s.Window.Close())
		s.Window = nil
	}
	if s.Camera != nil {
		errs = append(errs, s.Camera.Close())
		s.Camera = nil
	}
	if s.Detector != nil {
		errs = append(errs, s.Detector.Close())
		s.Detector = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to release OpenCV resources: %w", err)
	}
	return nil
}
