package main

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/doctorsched/libs/config"
	"github.com/md-rashed-zaman/doctorsched/libs/db"
	"github.com/md-rashed-zaman/doctorsched/libs/runtime"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/migrations"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				if err := m.Up(ctx); err != nil {
					return err
				}
				v, err := m.Version(ctx)
				if err != nil {
					return err
				}
				runtime.NewLogger(config.String("SERVICE_NAME", "doctor-service")).Info("migrations applied", "version", v)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				return m.Status(ctx)
			})
		},
	})
	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: 2})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	m, err := db.NewMigrator(pool, migrations.FS, ".")
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(ctx, m)
}
