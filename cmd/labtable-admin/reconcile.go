package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"labtable/internal/repository/postgres"
	"labtable/internal/service"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare extraction charges with stored artifacts",
	Long: "Reports accounts whose net extraction charge over the window differs from the number of artifacts " +
		"created in it. Keep the window shorter than the artifact TTL; swept artifacts otherwise look like overcharges.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		window, _ := cmd.Flags().GetDuration("window")
		if window > cfg.Extraction.ArtifactTTL {
			return fmt.Errorf("window %s exceeds artifact ttl %s", window, cfg.Extraction.ArtifactTTL)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		until := time.Now().UTC()
		r := service.NewReconciler(postgres.NewUsageLogRepo(db), postgres.NewArtifactRepo(db), cfg.Extraction.Cost)
		found, err := r.Reconcile(cmd.Context(), until.Add(-window), until)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintln(os.Stderr, "No discrepancies.")
			return nil
		}
		formatDiscrepancies(os.Stdout, found)
		return nil
	},
}

func formatDiscrepancies(w io.Writer, found []service.Discrepancy) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tDEBITED\tREFUNDED\tNET\tARTIFACTS\tEXPECTED")
	for _, d := range found {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", d.AccountID, d.Debited, d.Refunded, d.Net(), d.Artifacts, d.Expected)
	}
	_ = tw.Flush()
}

func init() {
	reconcileCmd.Flags().Duration("window", 24*time.Hour, "how far back to look")
}
