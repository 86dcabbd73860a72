package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/bigquery"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/config"
	infraBQ "github.com/dvloznov/household-ledger/internal/infra/bigquery"
	"github.com/dvloznov/household-ledger/internal/infra/postgres"
	"github.com/dvloznov/household-ledger/internal/logger"
)

// migrator is a backend that can track and apply versioned migrations.
type migrator interface {
	ensureSchemaMigrationsTable(ctx context.Context) error
	applied(ctx context.Context) ([]AppliedMigration, error)
	apply(ctx context.Context, migration Migration) error
}

var (
	_ migrator = (*bigQueryMigrator)(nil)
	_ migrator = (*postgresMigrator)(nil)
)

var (
	configPath    = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML config file (or set LEDGER_CONFIG env)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations root; the backend name is appended")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	var (
		m    migrator
		vars map[string]string
	)

	switch cfg.Backend {
	case config.BackendBigQuery:
		client, err := bigquery.NewClient(ctx, cfg.BigQuery.Project)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		store := infraBQ.NewStoreWithClient(client, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
		defer store.Close()

		if err := store.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure ledger table")
		}
		m = &bigQueryMigrator{
			client:    client,
			projectID: cfg.BigQuery.Project,
			datasetID: cfg.BigQuery.Dataset,
			appliedBy: *appliedBy,
		}
		vars = map[string]string{
			"PROJECT_ID": cfg.BigQuery.Project,
			"DATASET_ID": cfg.BigQuery.Dataset,
			"TABLE":      tableOrDefault(cfg.BigQuery.Table, infraBQ.DefaultTable),
		}
		log.Info().Str("project", cfg.BigQuery.Project).Str("dataset", cfg.BigQuery.Dataset).Msg("Connected to BigQuery")

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create connection pool")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to reach Postgres")
		}

		if err := postgres.NewStore(pool, cfg.Postgres.Table).EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure ledger table")
		}
		m = &postgresMigrator{pool: pool, appliedBy: *appliedBy}
		vars = map[string]string{
			"TABLE": tableOrDefault(cfg.Postgres.Table, postgres.DefaultTable),
		}
		log.Info().Msg("Connected to Postgres")

	default:
		log.Info().Str("backend", cfg.Backend).Msg("Backend has no schema to migrate")
		return
	}

	dir := filepath.Join(*migrationsDir, cfg.Backend)
	migrations, err := readMigrations(log, dir, vars)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	n, err := migrate(ctx, log, m, migrations)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	if n == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", n).Msg("Successfully applied migrations")
	}
}

// migrate applies every pending migration in version order and returns how
// many it applied.
func migrate(ctx context.Context, log zerolog.Logger, m migrator, migrations []Migration) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	todo, err := pending(migrations, applied)
	if err != nil {
		return 0, err
	}

	for i, migration := range todo {
		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Applying migration")
		if err := m.apply(ctx, migration); err != nil {
			return i, fmt.Errorf("migration %04d_%s: %w", migration.Version, migration.Name, err)
		}
	}
	return len(todo), nil
}

func tableOrDefault(table, def string) string {
	if table == "" {
		return def
	}
	return table
}
