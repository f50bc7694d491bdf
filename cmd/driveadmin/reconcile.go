package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagOwner  string
	flagDryRun bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute drive usage from billed file sizes",
	Long: `Recompute each drive's storage counter as the sum of its files' billed
sizes, trashed files included.

  driveadmin reconcile                    Fix every drive
  driveadmin reconcile --owner <id>       Fix one drive
  driveadmin reconcile --dry-run          Only report differences`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var owner *uuid.UUID
		if flagOwner != "" {
			id, err := uuid.Parse(flagOwner)
			if err != nil {
				return fmt.Errorf("invalid owner id: %w", err)
			}
			owner = &id
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}

		results, err := svc.Maintenance.Reconcile(cmd.Context(), owner, flagDryRun)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(results)
		}

		changed := 0
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "OWNER\tBEFORE\tAFTER")
		for _, r := range results {
			if !r.Changed() {
				continue
			}
			changed++
			fmt.Fprintf(w, "%s\t%d\t%d\n", r.OwnerID, r.Before, r.After)
		}
		w.Flush()

		verb := "Fixed"
		if flagDryRun {
			verb = "Would fix"
		}
		fmt.Printf("%s %d of %d drives.\n", verb, changed, len(results))
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&flagOwner, "owner", "", "Only reconcile this owner's drive")
	reconcileCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Report differences without writing")
}
