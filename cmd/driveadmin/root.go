package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/studyhub/drive/internal/config"
	"github.com/studyhub/drive/internal/database"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
)

var (
	flagJSON bool

	cfg *config.Config
	svc *services.Container
)

var rootCmd = &cobra.Command{
	Use:   "driveadmin",
	Short: "Operator tooling for the drive service",
	Long: `driveadmin runs maintenance tasks against the drive database and
content store using the same environment configuration as the server.

  driveadmin reconcile --dry-run        Compare quota counters with billed files
  driveadmin verify --owner <id>        Check stored content against metadata
  driveadmin set-limit <owner> <bytes>  Change a drive's storage limit
  driveadmin token <user>               Sign a token for local testing`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(reconcileCmd, verifyCmd, setLimitCmd, tokenCmd)
}

// Execute runs the root command.
func Execute() error {
	logger.Init()
	cfg = config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// openServices connects to the database and content store on demand, so
// commands that need neither stay cheap.
func openServices(ctx context.Context) (*services.Container, error) {
	if svc != nil {
		return svc, nil
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening content store: %w", err)
	}

	svc = services.NewContainer(services.Dependencies{
		DB:        db,
		Store:     store,
		Drive:     cfg.Drive,
		Thumbnail: cfg.Thumbnail,
	})
	return svc, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
