package main

import (
	"errors"
	"fmt"
	"io"

	"face-attendance/internal/imaging"
	"face-attendance/internal/integrations/opencv"

	"github.com/spf13/cobra"
)

var cameraTestCmd = &cobra.Command{
	Use:   "camera-test",
	Short: "Show the camera with face detection until 'q' is pressed",
	Args:  cobra.NoArgs,
	RunE:  runCameraTest,
}

func init() {
	rootCmd.AddCommand(cameraTestCmd)
}

func runCameraTest(cmd *cobra.Command, args []string) error {
	devices, err := opencv.NewService(cfg, opencv.ModeCameraTest, "Camera test - press q to quit")
	if err != nil {
		return err
	}
	defer devices.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println("Camera is working. Press 'q' to quit.")
	frames, most := 0, 0
	for ctx.Err() == nil {
		frame, err := devices.Camera.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		frames++

		faces := devices.Detector.Detect(imaging.ToGray(frame))
		most = max(most, len(faces))
		if !devices.Window.ShowFaces(frame, faces) {
			break
		}
	}

	fmt.Printf("Camera test finished: %d frames, up to %d faces in one frame\n", frames, most)
	return nil
}
