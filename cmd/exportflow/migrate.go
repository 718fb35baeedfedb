package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pgInfra "github.com/fastygo/exportflow/internal/infrastructure/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema",
	}
	for _, direction := range []pgInfra.Direction{pgInfra.Up, pgInfra.Down} {
		direction := direction
		cmd.AddCommand(&cobra.Command{
			Use:   string(direction),
			Short: fmt.Sprintf("Run migrations %s", direction),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, zapLogger, err := bootstrap()
				if err != nil {
					return err
				}
				defer zapLogger.Sync()
				return pgInfra.Migrate(cfg.Database, cfg.Migrations.Path, direction, zapLogger)
			},
		})
	}
	return cmd
}
