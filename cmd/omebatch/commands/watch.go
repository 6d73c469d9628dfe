package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ome-contrib/omebatch/internal/printer"
	"github.com/ome-contrib/omebatch/pkg/runlog"
)

var (
	watchRedisURL string
	watchInstance string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live run activity from the run log",
	Long: `Watch subscribes to the run activity channel in Redis and prints events as
batches elsewhere start, progress and finish. The run log is populated only
when calc is configured with a redis section; delivery is at-most-once, so
watch is a live view, not a ledger - the summary files are the authority.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "redis://localhost:6379", "Redis URL of the run log")
	watchCmd.Flags().StringVar(&watchInstance, "redis-instance", "default", "Run log instance name")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := redis.ParseURL(watchRedisURL)
	if err != nil {
		return printer.Error(
			"Invalid Redis URL",
			err.Error(),
			[]string{"Use the redis://host:port form, e.g. redis://localhost:6379"},
		)
	}

	client, err := runlog.NewClient(opts, watchInstance)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx); err != nil {
		return printer.Error(
			"Cannot reach Redis",
			err.Error(),
			[]string{"Check --redis-url and that the Redis server is running"},
		)
	}

	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Step("Watching run activity on instance %q (Ctrl-C to stop)\n", watchInstance)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("%v\n", err)
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev runlog.Event) {
	switch ev.Kind {
	case runlog.EventRunStarted:
		printer.Step("Run %s started\n", ev.RunID)
	case runlog.EventRunFinished:
		printer.Success("Run %s finished\n", ev.RunID)
	case runlog.EventOutcome:
		switch ev.Status {
		case "failed":
			printer.Warning("%s %s: %s\n", shortID(ev.RunID), ev.Key, ev.Error)
		default:
			printer.Info("%s %s: %s\n", shortID(ev.RunID), ev.Key, ev.Status)
		}
	default:
		printer.Info("%s %s\n", ev.RunID, ev.Kind)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
