package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/repositories/record"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
)

func newScanCommand(a *app) *cobra.Command {
	var (
		table  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a table for duplicate records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := database.Connect(ctx, a.databaseConfig(), a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			proc := processor.NewProcessor(a.logger, record.NewRepository(db, a.logger), a.rules)
			progress := matching.ProgressFunc(func(p models.ScanProgress) {
				if !asJSON {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d/%d (%d candidates)\n", p.Phase, p.Processed, p.Total, p.Candidates)
				}
			})

			session, err := proc.Scan(ctx, table, progress)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(session)
			}
			return printSummary(cmd, session)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "table to scan")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full scan session as JSON")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func printSummary(cmd *cobra.Command, session *models.ScanSession) error {
	out := cmd.OutOrStdout()
	s := session.Summary
	fmt.Fprintf(out, "%s: %d records, %d candidates, %d groups, %d conflicts\n",
		session.Table, s.Records, s.Candidates, s.Groups, s.Conflicts)

	tiers := make([]string, 0, len(s.ByTier))
	for tier := range s.ByTier {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		fmt.Fprintf(out, "  %s: %d\n", tier, s.ByTier[tier])
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tTIER\tCONFIDENCE\tSURVIVOR\tMERGES")
	for _, g := range session.Groups {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s (%s)\t%d\n",
			g.ID, g.BestTier, g.HighestConfidence, g.Survivor.Name, g.Survivor.Record.ID, len(g.ToMerge))
	}
	return w.Flush()
}
