package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the attendance of a class on one day",
	Long: `Print every enrolled student of a class with the status recorded for a date.
Students without a record are listed as absent.

Examples:
  face-attendance snapshot --class 3
  face-attendance snapshot --class 3 --date 2024-09-02 --json`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().Int64("class", 0, "Class id (required)")
	snapshotCmd.Flags().String("date", "", "Date as YYYY-MM-DD (default: today in SCHOOL_TIMEZONE)")
	snapshotCmd.Flags().Bool("json", false, "Output as JSON")
}

// SnapshotOutput is the JSON form of a snapshot
type SnapshotOutput struct {
	Date     string                 `json:"date"`
	ClassID  int64                  `json:"class_id"`
	Class    string                 `json:"class"`
	Students []ledger.SnapshotRow   `json:"students"`
	Summary  ledger.StatusBreakdown `json:"summary"`
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	classID := mustGetInt64(cmd, "class")
	rawDate := mustGetString(cmd, "date")
	jsonOutput := mustGetBool(cmd, "json")

	if classID <= 0 {
		return errors.New("--class is required")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	l := a.service.Ledger()
	date := l.Today()
	if rawDate != "" {
		if date, err = database.ParseDate(rawDate); err != nil {
			return err
		}
	}

	snap, err := l.Snapshot(ctx, classID, date)
	if err != nil {
		return err
	}
	breakdown := ledger.Breakdown(snap.Rows)

	if jsonOutput {
		rows := snap.Rows
		if rows == nil {
			rows = []ledger.SnapshotRow{}
		}
		return outputJSON(SnapshotOutput{
			Date:     database.FormatDate(snap.Date),
			ClassID:  snap.Class.ID,
			Class:    snap.Class.Label(),
			Students: rows,
			Summary:  breakdown,
		})
	}

	fmt.Printf("%s, %s\n\n", snap.Class.Label(), database.FormatDate(snap.Date))
	if len(snap.Rows) == 0 {
		fmt.Println("No students enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL\tID\tNAME\tSTATUS\tCONFIDENCE")
	fmt.Fprintln(w, "----\t--\t----\t------\t----------")
	for _, row := range snap.Rows {
		confidence := "-"
		if row.Confidence != nil {
			confidence = fmt.Sprintf("%.2f", *row.Confidence)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", row.RollNumber, row.StudentID, row.Name, row.Status, confidence)
	}
	w.Flush()

	fmt.Printf("\nPresent: %d, late: %d, excused: %d, absent: %d, total: %d\n",
		breakdown.Present, breakdown.Late, breakdown.Excused, breakdown.Absent, breakdown.Total)
	return nil
}
