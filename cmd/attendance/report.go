package main

import (
	"fmt"
	"path/filepath"

	"face-attendance/internal/attendance"
	"face-attendance/internal/database"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List past attendance sessions",
	Long: `Lists recent sessions from the archive database, or the ledger files
when the database is disabled. --tally counts attended sessions per person
and --ledger prints a single ledger file.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().Int("limit", 10, "Number of sessions to list")
	reportCmd.Flags().Bool("tally", false, "Show attended sessions per person")
	reportCmd.Flags().String("ledger", "", "Print the records of one ledger file")
}

func runReport(cmd *cobra.Command, args []string) error {
	if path := mustGetString(cmd, "ledger"); path != "" {
		return printLedger(path)
	}

	limit := mustGetInt(cmd, "limit")
	if !cfg.DB.Enabled {
		return listLedgers(limit)
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)
	archive := database.NewArchive(db)

	if mustGetBool(cmd, "tally") {
		tally, err := archive.Tally()
		if err != nil {
			return err
		}
		fmt.Printf("%-8s %-20s %s\n", "Id", "Name", "Sessions")
		for _, t := range tally {
			fmt.Printf("%-8d %-20s %d\n", t.IdentityID, t.Name, t.Sessions)
		}
		return nil
	}

	sessions, err := archive.RecentSessions(limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions archived yet.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  %-14s %3d present  %s\n",
			s.StartedAt.Format("2006-01-02 15:04:05"), s.UUID, s.StopReason, len(s.Records), s.LedgerPath)
	}
	return nil
}

func printLedger(path string) error {
	records, err := attendance.ReadLedger(path)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d records\n", filepath.Base(path), len(records))
	for _, r := range records {
		fmt.Printf("%-8d %-20s %s %s\n", r.ID, r.Name, r.Date, r.Time)
	}
	return nil
}

func listLedgers(limit int) error {
	paths, err := attendance.NewLedger(cfg.Storage.AttendanceDir).List()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No attendance ledgers yet.")
		return nil
	}
	if limit > 0 && len(paths) > limit {
		paths = paths[len(paths)-limit:]
	}
	for i := len(paths) - 1; i >= 0; i-- {
		records, err := attendance.ReadLedger(paths[i])
		if err != nil {
			fmt.Printf("%s  unreadable: %v\n", filepath.Base(paths[i]), err)
			continue
		}
		fmt.Printf("%s  %3d present\n", filepath.Base(paths[i]), len(records))
	}
	return nil
}
