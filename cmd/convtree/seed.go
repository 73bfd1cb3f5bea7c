package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"convtree/internal/domain/services"
	"convtree/internal/seed"
)

var fixturesFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load folders and conversations from a YAML fixture file",
	Example: `  convtree seed --file fixtures.yaml
  convtree seed --file fixtures.yaml --driver postgres --owner alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fx, err := seed.LoadFile(fixturesFile)
		if err != nil {
			return err
		}

		logger := newLogger()
		ws, closeStorage, err := openWorkspace(cmd.Context(), nil, logger)
		if err != nil {
			return err
		}
		defer closeStorage()

		var stats seed.Stats
		err = ws.Do(func(d services.SidebarService) error {
			var err error
			stats, err = seed.NewSeeder(d, logger).Apply(cmd.Context(), fx)
			return err
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %d folders, %d conversations, %d messages\n",
			countStyle.Render("seeded"), stats.Folders, stats.Conversations, stats.Messages)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&fixturesFile, "file", "f", "", "YAML fixture file")
	_ = seedCmd.MarkFlagRequired("file")
}
