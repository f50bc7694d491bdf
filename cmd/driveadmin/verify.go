package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a drive's stored content against its metadata",
	Long: `Read every file of one drive from the content store and compare its
size and hash with the recorded values.

  driveadmin verify --owner <id>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := cmd.Flags().GetString("owner")
		if err != nil {
			return err
		}
		ownerID, err := uuid.Parse(owner)
		if err != nil {
			return fmt.Errorf("invalid owner id: %w", err)
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}

		issues, checked, err := svc.Maintenance.Verify(cmd.Context(), ownerID)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(map[string]interface{}{
				"checked": checked,
				"issues":  issues,
			})
		}

		if len(issues) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tPATH\tPROBLEM")
			for _, issue := range issues {
				fmt.Fprintf(w, "%s\t%s\t%s\n", issue.FileID, issue.Path, issue.Problem)
			}
			w.Flush()
		}
		fmt.Printf("Checked %d files, %d problems.\n", checked, len(issues))
		if len(issues) > 0 {
			return fmt.Errorf("%d files failed verification", len(issues))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("owner", "", "Owner whose drive to verify")
	_ = verifyCmd.MarkFlagRequired("owner")
}
