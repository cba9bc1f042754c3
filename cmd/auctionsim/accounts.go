package main

import (
	"fmt"

	"github.com/danmuck/bundlebid/internal/ledger"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/spf13/cobra"
)

var kindBySize = map[int]string{
	state.ConfigSize:         "config",
	state.BundleRegistrySize: "registry|metadata",
	state.RequestBundleSize:  "bundle",
	state.AuctionSize:        "auction",
	state.BidSize:            "bid",
	state.JobRequestSize:     "job_request",
}

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts stored in the configured ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProgram(cmd)
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			accounts, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, acc := range accounts {
				kind, ok := kindBySize[len(acc.Data)]
				if !ok {
					kind = "data"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\tslot %d\n", ledger.EncodeKey(acc.Key), kind, len(acc.Data), acc.Slot)
			}
			return nil
		},
	}
}
