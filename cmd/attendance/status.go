package main

import (
	"fmt"

	"face-attendance/internal/attendance"
	"face-attendance/internal/status"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of models, stores and the host",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("no-host", false, "Skip CPU and memory statistics")
}

func found(ok bool) string {
	if ok {
		return "Found"
	}
	return "Missing"
}

func runStatus(cmd *cobra.Command, args []string) error {
	r, err := status.Collect(cfg, !mustGetBool(cmd, "no-host"))
	if err != nil {
		return err
	}

	fmt.Println("SYSTEM STATUS")
	fmt.Println("----------------------------------------")
	for _, a := range r.Artifacts {
		fmt.Printf("%-28s %s (%s)\n", a.Description+":", found(a.Present), a.Path)
	}
	for _, d := range r.Directories {
		if d.Present {
			fmt.Printf("%-28s Found (%d files)\n", d.Description+":", d.Files)
		} else {
			fmt.Printf("%-28s Missing\n", d.Description+":")
		}
	}

	if r.TrainingImages > 0 {
		fmt.Printf("Training data: %d images from %d people\n", r.TrainingImages, r.TrainedIdentities)
	} else {
		fmt.Println("Training data: No images found")
	}
	fmt.Printf("Enrolled people: %d\n", r.EnrolledIdentities)

	ledgers, err := attendance.NewLedger(cfg.Storage.AttendanceDir).List()
	if err != nil {
		return err
	}
	fmt.Printf("Attendance ledgers: %d\n", len(ledgers))

	if h := r.Host; h != nil {
		fmt.Println("----------------------------------------")
		fmt.Printf("CPUs: %d, usage %.1f%%\n", h.NumCPU, h.CPUUsage)
		fmt.Printf("Memory: %s of %s (%.1f%%), process heap %s\n",
			status.FormatBytes(h.MemoryUsed), status.FormatBytes(h.MemoryTotal), h.MemoryPercent, status.FormatBytes(h.MemoryAlloc))
	}
	return nil
}
