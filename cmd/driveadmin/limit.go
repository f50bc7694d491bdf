package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var setLimitCmd = &cobra.Command{
	Use:   "set-limit <owner> <bytes>",
	Short: "Change the storage limit of a drive",
	Long: `Change the storage limit of a drive. The drive is created if the owner
has none yet. A limit below current usage blocks new writes until space is
freed.

  driveadmin set-limit 6f1c5d0a-8a7e-4c1b-9a57-8c1ff1b8a001 2147483648`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid owner id: %w", err)
		}
		limit, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid byte count %q", args[1])
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}

		drive, err := svc.Drives.SetStorageLimit(cmd.Context(), ownerID, limit)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(drive)
		}
		fmt.Printf("Drive %s: %d of %d bytes used.\n", drive.ID, drive.StorageUsed, drive.StorageLimit)
		return nil
	},
}
