package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"armory/internal/catalog/events"
	"armory/internal/catalog/store/memory"
	"armory/internal/catalog/store/postgres"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the Postgres catalog used by the engine",
	}
	cmd.AddCommand(newCatalogImportCmd(a))
	return cmd
}

func newCatalogImportCmd(a *app) *cobra.Command {
	var ensureSchema, notify bool
	cmd := &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Upsert a JSON catalog snapshot into Postgres",
		Long: `Upserts every record of a JSON snapshot into the products table and, when
Kafka brokers are configured, publishes a reload event so running servers
rebuild their caches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if cfg.Catalog.PostgresDSN == "" {
				return fmt.Errorf("catalog.postgres_dsn (ARMORY_DATABASE_URL) is required for import")
			}

			snapshot, err := memory.LoadFile(args[0])
			if err != nil {
				return err
			}
			records, err := snapshot.All(ctx)
			if err != nil {
				return err
			}

			db, err := sql.Open("postgres", cfg.Catalog.PostgresDSN)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer db.Close()
			store := postgres.New(db)
			if ensureSchema {
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			start := time.Now()
			if err := store.Upsert(ctx, records); err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "catalog imported",
				"records", len(records),
				"duration_ms", time.Since(start).Milliseconds(),
			)

			if !notify || len(cfg.Kafka.Brokers) == 0 {
				return nil
			}
			pub, err := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return err
			}
			defer pub.Close()
			if err := pub.Publish(ctx, events.Event{Type: events.TypeReload, OccurredAt: time.Now().UTC()}); err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "catalog reload event published", "topic", cfg.Kafka.Topic)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ensureSchema, "ensure-schema", false, "create the products table if it is missing")
	cmd.Flags().BoolVar(&notify, "notify", true, "publish a reload event when Kafka is configured")
	return cmd
}
