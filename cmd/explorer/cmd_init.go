package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/persistorai/explorer/internal/db"
	"github.com/persistorai/explorer/internal/db/migrations"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the summary schema",
		Long: "Apply pending summary schema migrations, refresh the spatial reference\n" +
			"view and check that the catalog can be summarised.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
				return err
			}

			if err := db.RefreshSpatialRefs(ctx, pool); err != nil {
				return err
			}

			if err := db.CheckCompatible(ctx, pool, log); err != nil {
				return err
			}

			fmt.Printf("summary schema is at version %d\n", db.SchemaVersion())

			return nil
		},
	}
}
