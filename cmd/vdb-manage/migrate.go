package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmindtech/vdb/internal/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.mysql.Database().WithContext(cmd.Context()).AutoMigrate(model.All()...); err != nil {
			return fmt.Errorf("failed to migrate: %v", err)
		}

		fmt.Printf("✓ Migrated %d tables\n", len(model.All()))

		return nil
	},
}
