package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/pivo/internal/config"
	"github.com/example/pivo/internal/db"
	"github.com/example/pivo/internal/infrastructure/catalog"
	"github.com/example/pivo/internal/logging"
	"github.com/example/pivo/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and optionally seed the restaurant catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d, log); err != nil {
				return err
			}
			if !seed {
				return nil
			}
			pg := catalog.NewPostgres(d)
			for _, r := range catalog.Seed() {
				if err := pg.Upsert(ctx, r); err != nil {
					return fmt.Errorf("seed restaurant %s: %w", r.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d restaurants\n", len(catalog.Seed()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "upsert the built-in restaurants into the catalog tables")
	return cmd
}
