package main

import (
	"fmt"
	"os"

	"github.com/danmuck/bundlebid/internal/config"
	"github.com/danmuck/bundlebid/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		kind     string
		output   string
		validate bool
		input    string
		force    bool
	)
	cmd := &cobra.Command{
		Use:           "configgen",
		Short:         "Write or validate an auctionsim config",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Component("configgen")
			if validate {
				path := input
				if path == "" {
					path = output
				}
				if _, err := config.Load(path); err != nil {
					return err
				}
				log.Info().Str("path", path).Msg("config valid")
				return nil
			}
			if err := config.WriteTemplate(output, kind, force); err != nil {
				return err
			}
			log.Info().Str("kind", kind).Str("path", output).Msg("wrote config template")
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", config.KindMemory, "config kind: memory|sqlite")
	cmd.Flags().StringVar(&output, "output", "cmd/auctionsim/config.toml", "output path for config template")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate an existing config file")
	cmd.Flags().StringVar(&input, "input", "", "config path for validation (defaults to --output)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}
