package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version metadata populated via -ldflags at build time
var (
	version = "dev"
	commit  = ""
)

var rootCmd = &cobra.Command{
	Use:           "gamebus",
	Short:         "Redis pub/sub bus for lobby and match servers",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	if commit != "" {
		rootCmd.Version = fmt.Sprintf("%s (commit %s)", version, commit)
	}
	rootCmd.AddCommand(RelayCmd, PublishCmd, TokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gamebus: %v\n", err)
		os.Exit(1)
	}
}
