package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ome-contrib/omebatch/internal/compute"
	"github.com/ome-contrib/omebatch/internal/config"
	"github.com/ome-contrib/omebatch/internal/dispatch"
	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/internal/printer"
	"github.com/ome-contrib/omebatch/internal/store"
	"github.com/ome-contrib/omebatch/internal/worker"
)

var (
	workerFeatureSet string
	workerDir        string
)

// workerCmd is the process-pool protocol endpoint spawned by calc. It is not
// part of the user-facing surface, so it is hidden from help output.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve plane-computation tasks over stdin/stdout",
	Hidden: true,
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerFeatureSet, "feature", "", "Feature set to compute")
	workerCmd.Flags().StringVar(&workerDir, "dir", "", "Output directory")
	workerCmd.MarkFlagRequired("feature")
	workerCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	calc, err := compute.Lookup(workerFeatureSet)
	if err != nil {
		return err
	}
	if serverSession == "" {
		return printer.Error(
			"Missing session token",
			"The worker subcommand joins the session established by calc; it never logs in itself.",
			[]string{"Run omebatch calc instead of invoking worker directly"},
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each worker process owns exactly one gateway connection.
	gw, err := omero.Dial(ctx, resolveServer(&config.Config{}))
	if err != nil {
		return err
	}
	defer gw.Close()

	deps := worker.Deps{
		Store:   store.New(workerDir),
		Gateway: gw,
		Calc:    calc,
	}
	return dispatch.ServeWorker(ctx, deps, os.Stdin, os.Stdout)
}
