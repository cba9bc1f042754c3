package main

import (
	"fmt"
	"io"

	"github.com/danmuck/bundlebid/internal/config"
	"github.com/danmuck/bundlebid/internal/ledger"
	"github.com/danmuck/bundlebid/internal/logging"
	"github.com/danmuck/bundlebid/internal/observability"
	"github.com/danmuck/bundlebid/internal/processor"
	"github.com/danmuck/bundlebid/internal/sim"
	"github.com/spf13/cobra"
)

func loadProgram(cmd *cobra.Command) (config.Program, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openRuntime(cfg config.Program) (*sim.Runtime, ledger.Store, error) {
	opts, err := cfg.ProcessorOptions()
	if err != nil {
		return nil, nil, err
	}
	proc, err := processor.New(opts)
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.Path)
	if err != nil {
		return nil, nil, err
	}
	return sim.NewRuntime(store, proc), store, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one market round: requests, auction, execution and settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProgram(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("jobs") {
				cfg.Sim.Jobs, _ = cmd.Flags().GetInt("jobs")
			}
			if cmd.Flags().Changed("bidders") {
				cfg.Sim.Bidders, _ = cmd.Flags().GetInt("bidders")
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			logging.SetLevel(cfg.Log.Level)

			sc, err := cfg.Scenario()
			if err != nil {
				return err
			}
			rt, store, err := openRuntime(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := sc.Run(cmd.Context(), rt)
			if err != nil {
				return fmt.Errorf("scenario failed: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
				return observability.WriteText(cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().Int("jobs", 0, "override [sim] jobs")
	cmd.Flags().Int("bidders", 0, "override [sim] bidders")
	cmd.Flags().Bool("metrics", false, "print runtime counters after the report")
	return cmd
}

func printReport(w io.Writer, r sim.Report) {
	fmt.Fprintf(w, "registry %s\n", r.Registry)
	fmt.Fprintf(w, "jobs %d, open %d, final slot %d\n", r.Jobs, r.OpenJobs, r.Slot)
	for i, b := range r.Bundles {
		fmt.Fprintf(w, "bundle[%d] %s %s verified=%d price=%d winner=%s\n",
			i, b.Bundle, b.Status, b.Verified, b.ClearingPrice, b.Winner)
	}
}
