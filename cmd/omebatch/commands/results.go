package commands

import (
	"github.com/spf13/cobra"

	"github.com/ome-contrib/omebatch/internal/dispatch"
	"github.com/ome-contrib/omebatch/internal/printer"
	"github.com/ome-contrib/omebatch/internal/worker"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

var resultsFailedOnly bool

var resultsCmd = &cobra.Command{
	Use:   "results <summary-file>",
	Short: "Display the outcomes recorded in a run summary",
	Long: `Results reads a summary file written by calc (out-YYYYMMDD-HHMMSS.json)
and prints one line per plane outcome plus the final tallies.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

var showCmd = &cobra.Command{
	Use:   "show <feature-file>",
	Short: "Display a single committed feature file",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	resultsCmd.Flags().BoolVar(&resultsFailedOnly, "failed", false, "Show only failed outcomes")
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(showCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	summary, err := dispatch.LoadSummary(args[0])
	if err != nil {
		return err
	}

	printer.Info("Run %s  feature set %q  pool %d\n", summary.RunID, summary.FeatureSet, summary.Pool)
	printer.Info("Started %s, finished %s\n\n",
		summary.StartedAt.Format("2006-01-02 15:04:05"),
		summary.FinishedAt.Format("2006-01-02 15:04:05"))

	printer.Printf("%-40s %-18s %s\n", "PLANE", "STATUS", "ERROR")
	for _, o := range summary.Outcomes {
		if resultsFailedOnly && o.Status != worker.StatusFailed {
			continue
		}
		printer.Printf("%-40s %-18s %s\n", o.Key.String(), o.Status, o.Error)
	}

	completed, already, failed := summary.Counts()
	printer.Printf("\n")
	printer.Success("%d completed, %d already existed, %d failed\n", completed, already, failed)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	set, err := feature.Load(args[0])
	if err != nil {
		return err
	}
	printer.Info("Feature version %s, %d feature(s)\n\n", set.Version, len(set.Names))
	for i, name := range set.Names {
		printer.Printf("%-24s %g\n", name, set.Values[i])
	}
	return nil
}
