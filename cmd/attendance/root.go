package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"face-attendance/config"
	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/logger"
	"face-attendance/internal/util/timezone"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Face recognition attendance tracking",
	Long: `Attendance enrolls people as labeled face samples, trains an LBPH face
recognition model from them and records timestamped presence from a live
camera into one CSV ledger per session.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	err := rootCmd.Execute()
	_ = logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := logger.Init(c.Log); err != nil {
		log.WithError(err).Warn("File logging disabled")
	}
	timezone.Initialize(c.Timezone)
	cfg = c
	return nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func hintFor(err error) string {
	var missing *errdefs.MissingArtifactError
	switch {
	case errors.As(err, &missing) && missing.Artifact == "recognition model":
		return "Hint: run 'attendance train' after enrolling at least one person."
	case errors.As(err, &missing) && missing.Artifact == "identity store":
		return "Hint: enroll someone first with 'attendance enroll <id> <name>'."
	case errors.As(err, &missing):
		return fmt.Sprintf("Hint: place the %s at %s or set its path in the configuration.", missing.Artifact, missing.Path)
	case errors.Is(err, errdefs.ErrNoData):
		return "Hint: capture samples with 'attendance enroll' before training."
	case errors.Is(err, errdefs.ErrDevice):
		return "Hint: check that the camera is connected and not used by another program."
	}
	return ""
}
