package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ome-contrib/omebatch/internal/compute"
	"github.com/ome-contrib/omebatch/internal/config"
	"github.com/ome-contrib/omebatch/internal/dispatch"
	"github.com/ome-contrib/omebatch/internal/enumerate"
	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/internal/printer"
	"github.com/ome-contrib/omebatch/internal/store"
	"github.com/ome-contrib/omebatch/internal/worker"
)

var (
	calcRefs       []omero.Ref
	calcFeatureSet string
	calcWorkers    int
	calcDir        string
	calcConfigPath string
	calcDryRun     bool
	calcInProcess  bool
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Compute feature files for every plane of the referenced containers",
	Long: `Calc expands the given projects, datasets and images into their full list
of (image, channel, z-section, timepoint) planes, then computes the selected
feature set for each plane across a pool of worker processes.

Each result is published as one file under the output directory using a
locked, atomic protocol: a plane whose feature file already exists is skipped,
so re-running an interrupted batch only computes what is missing. A run
summary (out-YYYYMMDD-HHMMSS.json) is written with one outcome per plane.`,
	Example: `  # All planes of project 4, eight workers
  omebatch calc -p 4 --user alice --workers 8

  # Two datasets plus one extra image, in supplied order
  omebatch calc -d 10 -d 11 -i 900 --user alice

  # See what would run without connecting workers
  omebatch calc -p 4 --user alice --dry-run`,
	RunE: runCalc,
}

func init() {
	registerRefFlags(calcCmd, &calcRefs)
	calcCmd.Flags().StringVar(&calcFeatureSet, "feature", "Intensity", "Feature set to compute")
	calcCmd.Flags().IntVar(&calcWorkers, "workers", 0, "Worker pool size (default from omebatch.yml, else CPU count)")
	calcCmd.Flags().StringVar(&calcDir, "dir", "", "Output directory (default: the feature set name)")
	calcCmd.Flags().StringVar(&calcConfigPath, "config", "", "Config file path (default: omebatch.yml if present)")
	calcCmd.Flags().BoolVar(&calcDryRun, "dry-run", false, "List the planes that would be computed and exit")
	calcCmd.Flags().BoolVar(&calcInProcess, "in-process", false, "Run workers as goroutines instead of OS processes")
	rootCmd.AddCommand(calcCmd)
}

func runCalc(cmd *cobra.Command, args []string) error {
	if len(calcRefs) == 0 {
		return printer.Error(
			"No containers to process",
			"calc needs at least one project, dataset or image reference.",
			[]string{"Add references with -p <id>, -d <id> or -i <id>"},
		)
	}

	cfg, err := loadConfig(calcConfigPath)
	if err != nil {
		return err
	}

	calc, err := compute.Lookup(calcFeatureSet)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverCfg := resolveServer(cfg)
	gw, err := omero.Dial(ctx, serverCfg)
	if err != nil {
		return printer.Error(
			"Failed to connect to server",
			err.Error(),
			[]string{
				"Check --server and --port (or the server section of omebatch.yml)",
				"Check the supplied credentials or session token",
			},
		)
	}
	defer gw.Close()

	printer.Step("Enumerating planes from %d reference(s)\n", len(calcRefs))
	keys, err := enumerate.Collect(ctx, gw, calcRefs)
	if err != nil {
		return fmt.Errorf("enumeration failed: %w", err)
	}
	printer.Info("Found %d plane(s) to process\n", len(keys))

	if calcDryRun {
		for _, k := range keys {
			printer.Println(k.String())
		}
		return nil
	}

	storeDir := calcDir
	if storeDir == "" {
		storeDir = cfg.Store.Dir
	}
	if storeDir == "" {
		storeDir = calc.Name()
	}

	workers := calcWorkers
	if workers == 0 {
		workers = cfg.Pool.Workers
	}
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	// Workers join the CLI's session rather than logging in again, so the
	// password never appears in a child argv.
	workerServer := serverCfg
	workerServer.SessionID = gw.SessionID()
	workerServer.User = ""
	workerServer.Password = ""

	var runner dispatch.Runner
	if calcInProcess {
		runner = &dispatch.LocalPool{
			Workers: workers,
			NewDeps: func(ctx context.Context) (worker.Deps, func(), error) {
				wgw, err := omero.Dial(ctx, workerServer)
				if err != nil {
					return worker.Deps{}, nil, err
				}
				deps := worker.Deps{
					Store:   store.New(storeDir),
					Gateway: wgw,
					Calc:    calc,
				}
				return deps, func() { wgw.Close() }, nil
			},
		}
	} else {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate own binary: %w", err)
		}
		runner = &dispatch.ProcPool{
			Workers: workers,
			Command: func(ctx context.Context) *exec.Cmd {
				return exec.CommandContext(ctx, self, "worker",
					"--server", workerServer.Host,
					"--port", strconv.Itoa(workerServer.Port),
					"--session", workerServer.SessionID,
					"--group", strconv.FormatInt(workerServer.GroupID, 10),
					"--feature", calc.Name(),
					"--dir", storeDir,
				)
			},
		}
	}

	d := &dispatch.Dispatcher{
		Runner:     runner,
		FeatureSet: calc.Name(),
		Pool:       workers,
		Log:        openRunLog(cfg),
	}
	if d.Log != nil {
		defer d.Log.Close()
	}

	printer.Step("Computing %q over %d plane(s) with %d worker(s)\n", calc.Name(), len(keys), workers)
	summary, err := d.Run(ctx, keys)
	if err != nil {
		return err
	}

	summaryPath := dispatch.SummaryFilename(time.Now())
	if err := summary.WriteFile(summaryPath); err != nil {
		return err
	}

	completed, already, failed := summary.Counts()
	printer.Info("Summary written to %s\n", summaryPath)
	printer.Success("%d completed, %d already existed\n", completed, already)
	if failed > 0 {
		printer.Warning("%d plane(s) failed; see %s\n", failed, summaryPath)
		return fmt.Errorf("%d of %d plane(s) failed", failed, len(keys))
	}
	return nil
}

// loadConfig loads an explicit config path strictly, or the default path
// leniently (absence is fine).
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// resolveServer merges the persistent connection flags over the config file's
// server section. Flags win.
func resolveServer(cfg *config.Config) omero.Config {
	s := cfg.Server
	if serverHost != "" {
		s.Host = serverHost
	}
	if serverPort != 0 {
		s.Port = serverPort
	}
	if serverUser != "" {
		s.User = serverUser
	}
	if serverPassword != "" {
		s.Password = serverPassword
	}
	if serverSession != "" {
		s.SessionID = serverSession
	}
	if serverGroup != -1 {
		s.GroupID = serverGroup
	}
	return s
}
