package main

import (
	"fmt"
	"time"

	"face-attendance/internal/lbph"
	"face-attendance/internal/samples"
	"face-attendance/internal/trainer"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the recognition model from all captured samples",
	Long: `Loads every sample in the training directory, trains the LBPH model in
one batch and replaces the model file. Unreadable samples are skipped with a
warning. Without any usable sample the previous model is kept.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

func runTrain(cmd *cobra.Command, args []string) error {
	params := lbph.Params{
		Radius:    cfg.LBPH.Radius,
		Neighbors: cfg.LBPH.Neighbors,
		GridX:     cfg.LBPH.GridX,
		GridY:     cfg.LBPH.GridY,
		FaceSize:  cfg.LBPH.FaceSize,
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid lbph configuration: %w", err)
	}

	var opts []trainer.Option
	var bar *progressbar.ProgressBar
	if !mustGetBool(cmd, "no-progress") {
		opts = append(opts, trainer.WithProgress(func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Training"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("faces"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		}))
	}

	ctx, cancel := signalContext()
	defer cancel()

	repo := samples.NewRepository(cfg.Storage.TrainingDir, cfg.Storage.JPEGQuality)
	report, err := trainer.New(repo, cfg.Storage.ModelFile, params, opts...).Run(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	fmt.Printf("Model trained on %d images of %d people in %v\n",
		report.Samples, report.Identities, report.Duration.Round(time.Millisecond))
	if report.Skipped > 0 {
		fmt.Printf("Skipped %d unreadable files\n", report.Skipped)
	}
	fmt.Printf("Saved to %s\n", report.ModelPath)
	return nil
}
