package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/meeting-engine/config"
	"github.com/warp/meeting-engine/meeting"
	"github.com/warp/meeting-engine/store/sqlite"
)

var seedScenario string

func newSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the database and load a demo scenario",
		Long: `Reset the database and load a demo scenario.

Dates are relative to today in the configured time zone. Use "all" to load
every scenario, or --list to see what is available.

WARNING: this deletes all existing data.`,
		RunE: runSeed,
	}
	cmd.Flags().StringVar(&seedScenario, "scenario", "all", "Scenario id")
	cmd.Flags().Bool("list", false, "List scenarios and exit")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, sc := range sqlite.Scenarios() {
			fmt.Printf("%-16s %s\n", sc.ID, sc.Description)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := sqlite.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	today := meeting.DateOf(time.Now().In(cfg.Location()))
	if err := store.Seed(cmd.Context(), seedScenario, today); err != nil {
		return err
	}
	newLogger(cfg).Info("scenario loaded")
	fmt.Printf("loaded scenario %q into %s\n", seedScenario, dbLabel(cfg))
	return nil
}

func dbLabel(cfg *config.Config) string {
	if cfg.DB == ":memory:" {
		return "in-memory database"
	}
	return cfg.DB
}
