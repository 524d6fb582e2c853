package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Report how well a class can be recognized",
	Long: `Report the recognition capability, which students of a class have a photo
and a primary encoding, how many index entries each contributes and which
pairs of students have known faces within the match tolerance.`,
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	diagnoseCmd.Flags().Int64("class", 0, "Class id (required)")
	diagnoseCmd.Flags().Bool("json", false, "Output as JSON")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	classID := mustGetInt64(cmd, "class")
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

	d, err := a.service.Diagnose(ctx, classID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(d)
	}

	if d.Capability.Available {
		fmt.Printf("Recognition: available (%s, dim %d)\n", d.Capability.Backend, d.Capability.Dim)
	} else {
		fmt.Printf("Recognition: unavailable (%s)\n", d.Capability.Reason)
	}
	fmt.Printf("%s: %d students, %d encodings, %d index entries\n\n",
		d.Class, len(d.Students), d.TotalEncodings, d.IndexEntries)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHOTO\tENCODING\tSAMPLES\tENTRIES")
	fmt.Fprintln(w, "--\t----\t-----\t--------\t-------\t-------")
	for _, s := range d.Students {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n", s.ID, s.Name, yesNo(s.HasPhoto), yesNo(s.HasEncoding), s.Samples, s.Entries)
	}
	w.Flush()

	if len(d.ConfusablePairs) > 0 {
		fmt.Println("\nConfusable students:")
		for _, p := range d.ConfusablePairs {
			fmt.Printf("  %s / %s (distance %.3f)\n", p.NameA, p.NameB, p.Distance)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
