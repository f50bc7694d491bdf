package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/studyhub/drive/pkg/utils"
)

var flagTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user>",
	Short: "Sign an access token for a user id",
	Long: `Sign a bearer token with the configured JWT secret. Production tokens
come from the identity service; this is for local testing.

  driveadmin token 6f1c5d0a-8a7e-4c1b-9a57-8c1ff1b8a001 --ttl 1h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		token, err := utils.GenerateToken(userID, flagTTL)
		if err != nil {
			return fmt.Errorf("signing token: %w", err)
		}

		if flagJSON {
			return printJSON(map[string]string{"token": token})
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&flagTTL, "ttl", 24*time.Hour, "Token lifetime")
}
