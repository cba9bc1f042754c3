package main

import (
	"fmt"
	"os"

	"github.com/danmuck/bundlebid/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auctionsim",
		Short:         "Run the bundle auction program against a local ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "program config (TOML); defaults apply when empty")
	root.AddCommand(runCmd())
	root.AddCommand(tiersCmd())
	root.AddCommand(accountsCmd())
	return root
}

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "auctionsim: %v\n", err)
		os.Exit(1)
	}
}
