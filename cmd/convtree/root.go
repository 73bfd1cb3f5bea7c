package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"convtree/internal/config"
	"convtree/internal/repository"
	"convtree/internal/service/sidebar"
)

var (
	verbose     bool
	driver      string
	databaseURL string
	sqlitePath  string
	ownerID     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "convtree",
	Short: "Inspect and seed conversation sidebars",
	Long: `convtree works directly against the conversation storage used by the server.

Quick Start:
  convtree seed --file fixtures.yaml       # Load folders and conversations
  convtree tree                            # Print the sidebar tree
  convtree tree --query plan --expand-all  # Search, with every folder open`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	_ = godotenv.Load()
	cfg := config.Load()

	defaultDriver := cfg.StorageDriver
	if os.Getenv("STORAGE_DRIVER") == "" {
		// The CLI is useless against a fresh in-memory store
		defaultDriver = "sqlite"
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", defaultDriver, "Storage driver: memory, postgres or sqlite")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "Postgres connection URL")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", cfg.DevUserID, "Owner whose sidebar to use")

	rootCmd.AddCommand(seedCmd, treeCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openWorkspace loads the owner's workspace from the configured storage.
// The returned func releases the storage.
func openWorkspace(ctx context.Context, renderer *sidebar.TreeRenderer, logger *slog.Logger) (*sidebar.Workspace, func(), error) {
	cfg := config.Load()
	cfg.StorageDriver = driver
	cfg.DatabaseURL = databaseURL
	cfg.SQLitePath = sqlitePath

	deletePolicy, err := sidebar.ParseFolderDeletePolicy(cfg.FolderDeletePolicy)
	if err != nil {
		return nil, nil, err
	}

	provider, closeStorage, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	ws := sidebar.NewWorkspace(sidebar.WorkspaceConfig{
		OwnerID:      ownerID,
		Storage:      provider.ForOwner(ownerID),
		Timeout:      cfg.PersistenceTimeout,
		Renderer:     renderer,
		DeletePolicy: deletePolicy,
		Logger:       logger,
	})
	if err := ws.Load(ctx); err != nil {
		closeStorage()
		return nil, nil, err
	}
	return ws, closeStorage, nil
}
