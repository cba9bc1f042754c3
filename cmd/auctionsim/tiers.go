package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/danmuck/bundlebid/internal/state"
	"github.com/spf13/cobra"
)

func tiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Print the tier policy table",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tMAX_CONTEXT\tSUBMIT_SLOTS\tBID_COMMITMENT\tCREDITS_X\tVERIFIERS\tREQUESTS")
			for _, t := range state.Tiers() {
				p, _ := t.Policy()
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n", t, p.MaxContextLength, p.JobSubmissionDuration,
					t.BidCommitment(), p.AuctionCreditsMultiplier, p.Verifiers, p.RequestsPerBundle)
			}
			return tw.Flush()
		},
	}
}
