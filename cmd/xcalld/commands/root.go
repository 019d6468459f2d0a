// Package commands implements xcalld's CLI surface, grounded on
// marmos91-dittofs/cmd/dittofs/commands: a cobra root command with one
// file per subcommand and package-level Version/Commit/Date injected at
// build time.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "xcalld",
	Short: "xcalld runs the xCall cross-chain message dispatcher",
	Long: `xcalld hosts the xCall dispatcher: it accepts outbound send_call
requests from local dApps, admits inbound cross-chain messages through
its configured Centralized or Cluster connections, and executes
committed requests and enabled rollbacks.

Use "xcalld [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}
