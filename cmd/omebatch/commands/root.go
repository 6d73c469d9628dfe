package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// Connection flags shared by every command that talks to the server.
var (
	serverHost     string
	serverPort     int
	serverUser     string
	serverPassword string
	serverGroup    int64
	serverSession  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "omebatch",
	Short: "omebatch - parallel batch computation against an OMERO server",
	Long: `omebatch drives a remote OMERO-style image server from the client side:
it enumerates image planes from projects, datasets and images, computes
per-plane feature vectors across a pool of local worker processes, and
publishes each result as a lock-guarded, atomically committed file.

Results are idempotent: a committed feature file is never recomputed or
overwritten, so interrupted batches can simply be re-run.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverHost, "server", "", "Server hostname (default from omebatch.yml, else localhost)")
	pf.IntVar(&serverPort, "port", 0, "Server port (default from omebatch.yml, else 4064)")
	pf.StringVar(&serverUser, "user", "", "Username for creating a new session")
	pf.StringVar(&serverPassword, "password", "", "Password for creating a new session")
	pf.Int64Var(&serverGroup, "group", -1, "Server data group (-1 = all groups)")
	pf.StringVar(&serverSession, "session", "", "Join an existing session by token instead of logging in")
}
