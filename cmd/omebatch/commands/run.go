package commands

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ome-contrib/omebatch/internal/batch"
	"github.com/ome-contrib/omebatch/internal/dispatch"
	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/internal/printer"
)

var (
	runWorkers    int
	runGroupsize  int
	runLogin      bool
	runConfigPath string
	runDryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command...> [-- <params...>]",
	Short: "Replay an arbitrary command across batches of parameters",
	Long: `Run executes a fixed command line once per group of trailing parameters,
across a bounded pool of local processes. The first "--" ends omebatch's own
flags; a second "--" separates the command from the parameters to batch.

Parameters are split into consecutive groups of --groupsize and each group is
appended to the command. With --login, a server session is created once and
its token is injected into every command (-s host -p port -k token), so the
spawned commands join it instead of prompting for credentials.`,
	Example: `  # Import 100 files, 4 at a time, 8 concurrent processes
  omebatch run --workers 8 -n 4 -- importer --silent -- *.tiff

  # Share one login session across every invocation
  omebatch run --login --user alice -n 1 -- myscript.sh -- 1 2 3`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Process pool size (default: CPU count)")
	runCmd.Flags().IntVarP(&runGroupsize, "groupsize", "n", 1, "Parameters per command invocation")
	runCmd.Flags().BoolVar(&runLogin, "login", false, "Create one server session and inject its token into each command")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Config file path (default: omebatch.yml if present)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "List the command lines that would run and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	common, params := batch.SplitArgs(args)
	if len(common) == 0 {
		return printer.Error(
			"No command to run",
			"Everything after the first \"--\" is the command; after a second \"--\" come the parameters to batch.",
			[]string{"Example: omebatch run -n 2 -- echo hello -- a b c d"},
		)
	}

	groups, err := batch.SplitGroups(params, runGroupsize)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runLogin {
		cfg, err := loadConfig(runConfigPath)
		if err != nil {
			return err
		}
		serverCfg := resolveServer(cfg)
		gw, err := omero.Dial(ctx, serverCfg)
		if err != nil {
			return fmt.Errorf("failed to establish shared session: %w", err)
		}
		defer gw.Close()
		host, port := sessionEndpoint(serverCfg)
		common = batch.WithLogin(common, host, port, gw.SessionID())
	}

	cmds := batch.BuildCommands(common, groups)
	if runDryRun {
		for _, c := range cmds {
			printer.Println(strings.Join(c, " "))
		}
		return nil
	}

	workers := runWorkers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	printer.Step("Running %d command(s) with %d worker(s)\n", len(cmds), workers)
	pool := &batch.Pool{Workers: workers}
	summary := pool.Run(ctx, cmds)

	summaryPath := dispatch.SummaryFilename(time.Now())
	if err := summary.WriteFile(summaryPath); err != nil {
		return err
	}

	completed, failed := summary.Counts()
	printer.Info("Summary written to %s\n", summaryPath)
	printer.Success("%d command(s) completed\n", completed)
	if failed > 0 {
		printer.Warning("%d command(s) failed; see %s\n", failed, summaryPath)
		return fmt.Errorf("%d of %d command(s) failed", failed, len(cmds))
	}
	return nil
}

// sessionEndpoint returns the host and port the injected login arguments
// should point the spawned commands at.
func sessionEndpoint(cfg omero.Config) (string, int) {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = omero.DefaultPort
	}
	return host, port
}
