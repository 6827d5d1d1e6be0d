package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/selivandex/sentiment-fusion/internal/adapters/database"
)

func migrateCMD() *cobra.Command {
	var migDir string

	var migrate = &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			cfg, err := setup()
			if err != nil {
				return err
			}

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			switch direction {
			case "down":
				return database.RollbackMigration(db.Conn(), migDir)
			case "version":
				version, dirty, err := database.GetMigrationVersion(db.Conn(), migDir)
				if err != nil {
					return err
				}
				fmt.Printf("version %d (dirty: %t)\n", version, dirty)
				return nil
			default:
				return database.RunMigrations(db.Conn(), migDir)
			}
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "./migrations", "migrations directory")

	return migrate
}
