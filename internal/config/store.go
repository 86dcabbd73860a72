package config

import (
	"context"
	"fmt"

	"github.com/dvloznov/household-ledger/internal/infra/bigquery"
	"github.com/dvloznov/household-ledger/internal/infra/gcs"
	"github.com/dvloznov/household-ledger/internal/infra/postgres"
	"github.com/dvloznov/household-ledger/internal/kv"
	"github.com/dvloznov/household-ledger/internal/kv/file"
	"github.com/dvloznov/household-ledger/internal/kv/inmemory"
)

// OpenStore connects the configured backend. The caller closes the store.
func OpenStore(ctx context.Context, cfg Config) (kv.Store, error) {
	var (
		store kv.Store
		err   error
	)
	switch cfg.Backend {
	case BackendMemory:
		store = inmemory.NewStore()
	case BackendFile:
		store, err = file.NewStore(cfg.DataDir)
	case BackendGCS:
		store, err = gcs.NewStore(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
	case BackendBigQuery:
		store, err = bigquery.NewStore(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
	case BackendPostgres:
		store, err = postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
	default:
		return nil, fmt.Errorf("OpenStore: %w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("OpenStore: %s: %w", cfg.Backend, err)
	}
	return store, nil
}
