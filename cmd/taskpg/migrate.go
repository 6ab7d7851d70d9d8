package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.client.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("schema is up to date", "driver", a.cfg.Database.Driver)
			return nil
		},
	}
}
