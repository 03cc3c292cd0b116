package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"

	"face-attendance/config"
	"face-attendance/internal/core/errdefs"

	gocv "gocv.io/x/gocv"
	log "github.com/sirupsen/logrus"
)

// Camera liest Frames von einem lokalen Aufnahmegerät.
type Camera struct {
	device  int
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// OpenCamera opens the configured capture device.
func OpenCamera(cfg config.CaptureConfig) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, &errdefs.DeviceError{Op: fmt.Sprintf("open device %d", cfg.Device), Err: err}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, &errdefs.DeviceError{Op: fmt.Sprintf("open device %d", cfg.Device)}
	}

	// Auflösung setzen, das Gerät darf sie ignorieren
	if cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	log.Infof("Camera %d opened at %.0fx%.0f", cfg.Device,
		capture.Get(gocv.VideoCaptureFrameWidth), capture.Get(gocv.VideoCaptureFrameHeight))

	return &Camera{device: cfg.Device, capture: capture, frame: gocv.NewMat()}, nil
}

// Read grabs the next frame.
func (c *Camera) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := c.capture.Read(&c.frame); !ok {
		return nil, &errdefs.DeviceError{Op: "read", Err: errors.New("no frame returned")}
	}
	if c.frame.Empty() {
		return nil, &errdefs.DeviceError{Op: "read", Err: errors.New("empty frame")}
	}
	img, err := c.frame.ToImage()
	if err != nil {
		return nil, &errdefs.DeviceError{Op: "convert frame", Err: err}
	}
	return img, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	if err := c.frame.Close(); err != nil {
		return err
	}
	return c.capture.Close()
}
