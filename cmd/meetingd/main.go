/*
main.go - Application entry point

PURPOSE:
  meetingd serves reconciled meetings and staff-conflict checks, and carries
  the operator commands that share its configuration.

COMMANDS:
  serve   Run the HTTP API with scheduled availability refresh
  check   One-off conflict check for an employee at a date and time
  seed    Load a demo scenario into the database
  token   Issue a bearer token for an employee

CONFIGURATION:
  --config  YAML file (missing file means defaults)
  --env     Dotenv file with secrets (JWT_SECRET, SENDGRID_API_KEY, ...)

  Flags given on the command line override the file.

SEE ALSO:
  - config/config.go: Configuration schema and defaults
  - wire.go: Component construction shared by the commands
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	dbPath  string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "meetingd",
		Short:         "Meeting reconciliation and staff-conflict engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "meetingd.yaml", "Path to the YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a dotenv file with secrets")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config; \":memory:\" for in-memory)")

	root.AddCommand(
		newServeCommand(),
		newCheckCommand(),
		newSeedCommand(),
		newTokenCommand(),
	)
	return root
}
