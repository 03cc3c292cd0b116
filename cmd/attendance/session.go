package main

import (
	"fmt"
	"io"
	"os"

	"face-attendance/internal/attendance"
	"face-attendance/internal/database"
	"face-attendance/internal/identity"
	"face-attendance/internal/integrations/opencv"
	"face-attendance/internal/mqtt"
	"face-attendance/internal/recognizer"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run a live attendance session",
	Long: `Recognizes faces from the camera and records each enrolled person once.
Press 'q' in the preview window or Ctrl+C to finish. The ledger is written
to the attendance directory when at least one person was present.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.Flags().Bool("no-archive", false, "Do not store the session in the database")
}

func runSession(cmd *cobra.Command, args []string) error {
	rec, err := recognizer.Load(cfg.Storage.ModelFile)
	if err != nil {
		return err
	}
	identities, err := identity.NewStore(cfg.Storage.IdentityFile).All()
	if err != nil {
		return err
	}
	directory := identity.NewDirectory(identities)
	log.Infof("Model knows %d identities, store lists %d", len(rec.Labels()), directory.Len())

	thresholds := attendance.Thresholds{
		UnknownFloor: cfg.Recognition.UnknownFloor,
		PresentFloor: cfg.Recognition.PresentFloor,
	}
	opts := []attendance.SessionOption{
		attendance.WithThresholds(thresholds),
		attendance.WithOverlap(cfg.Recognition.OverlapIoU),
	}

	if cfg.DB.Enabled && !mustGetBool(cmd, "no-archive") {
		db, err := database.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer database.Close(db)
		opts = append(opts, attendance.WithHooks(database.NewArchive(db)))
	}

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTT)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		if err := mqttClient.Start(); err != nil {
			log.WithError(err).Warn("Presence events will not be published")
		} else {
			defer mqttClient.Stop()
			opts = append(opts, attendance.WithHooks(mqttClient))

			if cfg.MQTT.HADiscovery {
				discovery := mqtt.NewDiscoveryManager(mqttClient)
				if err := discovery.RegisterIdentities(identities); err != nil {
					log.WithError(err).Warn("Home Assistant discovery incomplete")
				}
				if err := discovery.PublishAvailability(true); err != nil {
					log.WithError(err).Warn("Failed to publish availability")
				}
				opts = append(opts, attendance.WithHooks(discovery))
			}
		}
	}

	devices, err := opencv.NewService(cfg, opencv.ModeSession, "Attendance - press q to finish")
	if err != nil {
		return err
	}
	defer devices.Close()

	session := attendance.NewSession(directory, attendance.NewLedger(cfg.Storage.AttendanceDir), opts...)
	runnerOpts := []attendance.RunnerOption{attendance.WithMaxReadFailures(cfg.Recognition.MaxReadFailures)}
	if devices.Window != nil {
		runnerOpts = append(runnerOpts, attendance.WithPreview(devices.Window))
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, runErr := attendance.NewRunner(devices.Camera, devices.Detector, rec, session, runnerOpts...).Run(ctx)
	printSummary(os.Stdout, summary)
	return runErr
}

func printSummary(w io.Writer, s attendance.Summary) {
	if s.SessionID == "" {
		return
	}
	fmt.Fprintf(w, "Session %s finished (%s) after %d frames\n", s.SessionID, s.StopReason, s.Frames)
	if len(s.Records) == 0 {
		fmt.Fprintln(w, "Nobody was recorded; no ledger written.")
		return
	}
	fmt.Fprintf(w, "%-8s %-20s %-10s %s\n", "Id", "Name", "Date", "Time")
	for _, r := range s.Records {
		fmt.Fprintf(w, "%-8d %-20s %-10s %s\n", r.ID, r.Name, r.Date, r.Time)
	}
	if s.LedgerPath == "" {
		fmt.Fprintln(w, "Attendance ledger was NOT written; see the error below.")
		return
	}
	fmt.Fprintf(w, "Attendance saved to %s\n", s.LedgerPath)
}
