package main

import (
	"fmt"

	"face-attendance/internal/enrollment"
	"face-attendance/internal/identity"
	"face-attendance/internal/integrations/opencv"
	"face-attendance/internal/samples"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <id> <name>",
	Short: "Capture face samples for a new person",
	Long: `Validates the id (digits only) and name (letters only), captures face
samples from the camera until the sample cap is reached or 'q' is pressed,
and appends the person to the identity store.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().Int("samples", 0, "Samples to capture (0 = capture.max_samples)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	id, name := args[0], args[1]

	// validate before touching the camera
	if _, err := identity.Validate(id, name); err != nil {
		return err
	}

	limit := mustGetInt(cmd, "samples")
	if limit <= 0 {
		limit = cfg.Capture.MaxSamples
	}

	store := identity.NewStore(cfg.Storage.IdentityFile)
	repo := samples.NewRepository(cfg.Storage.TrainingDir, cfg.Storage.JPEGQuality)
	svc := enrollment.NewService(store, repo, limit)

	devices, err := opencv.NewService(cfg, opencv.ModeEnrollment, "Enrollment - press q to stop")
	if err != nil {
		return err
	}
	defer devices.Close()

	var preview enrollment.Preview
	if devices.Window != nil {
		preview = devices.Window
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := svc.Enroll(ctx, id, name, devices.Camera, devices.Detector, preview)
	if err != nil {
		return err
	}

	fmt.Printf("Images saved for ID: %d Name: %s\n", res.Identity.ID, res.Identity.Name)
	fmt.Printf("Samples: %d (frames read: %d)\n", res.Samples, res.Frames)
	if res.Cancelled {
		fmt.Println("Capture stopped before the sample cap.")
	}
	fmt.Println("Run 'attendance train' to update the recognition model.")
	return nil
}
