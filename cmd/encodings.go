package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var encodingsCmd = &cobra.Command{
	Use:   "encodings",
	Short: "Manage students' primary face encodings",
}

var encodingsRegenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Compute primary face encodings from student photos",
	Long: `Compute the primary face encoding of every student who has a photo.

By default only students without an encoding are processed. Use --force to
recompute existing encodings and --student to limit the run to one student,
matched by id, username or name (accents and case are ignored).

Examples:
  # Fill missing encodings
  face-attendance encodings regenerate

  # Recompute everything
  face-attendance encodings regenerate --force

  # One student
  face-attendance encodings regenerate --student "Zdenek Novak"`,
	RunE: runEncodingsRegenerate,
}

func init() {
	rootCmd.AddCommand(encodingsCmd)
	encodingsCmd.AddCommand(encodingsRegenerateCmd)

	encodingsRegenerateCmd.Flags().Bool("force", false, "Recompute encodings that already exist")
	encodingsRegenerateCmd.Flags().String("student", "", "Only this student (id, username or name)")
	encodingsRegenerateCmd.Flags().Bool("json", false, "Output as JSON")
}

// RegenerateResult represents the result of a regenerate run
type RegenerateResult struct {
	attendance.RegenerateStats
	Failures      []string `json:"failures,omitempty"`
	DurationMs    int64    `json:"duration_ms"`
	DurationHuman string   `json:"duration_human,omitempty"`
}

func runEncodingsRegenerate(cmd *cobra.Command, args []string) error {
	force := mustGetBool(cmd, "force")
	student := mustGetString(cmd, "student")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := cmd.Context()
	startTime := time.Now()

	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	result := RegenerateResult{}
	opts := attendance.RegenerateOptions{
		Force:   force,
		Student: student,
		OnTotal: func(total int) {
			if !jsonOutput && total > 0 {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Regenerating encodings"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("students"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
		},
		OnStudent: func(s *database.Student, outcome attendance.Outcome, err error) {
			if bar != nil {
				bar.Add(1)
			}
			switch outcome {
			case attendance.OutcomeMissing, attendance.OutcomeNoFace, attendance.OutcomeFailed:
				result.Failures = append(result.Failures, fmt.Sprintf("%s (%d): %s", s.FullName(), s.ID, outcome))
			}
		},
	}

	stats, err := a.regenerator().Regenerate(ctx, opts)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if errors.Is(err, recognition.ErrUnavailable) {
		return fmt.Errorf("%w: %s", err, a.extractor.Capability().Reason)
	}
	if err != nil {
		return err
	}

	result.RegenerateStats = *stats
	elapsed := time.Since(startTime)
	result.DurationMs = elapsed.Milliseconds()
	result.DurationHuman = elapsed.Round(time.Millisecond).String()

	if jsonOutput {
		return outputJSON(result)
	}

	if student != "" && stats.Processed == 0 {
		fmt.Printf("No student with a photo matches %q\n", student)
		return nil
	}
	for _, f := range result.Failures {
		fmt.Printf("  skipped %s\n", f)
	}
	fmt.Printf("Processed: %d, regenerated: %d, skipped: %d (%s)\n",
		stats.Processed, stats.Regenerated, stats.Skipped, result.DurationHuman)
	return nil
}
