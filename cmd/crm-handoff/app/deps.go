package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apphive/crm-handoff/internal/config"
	"github.com/apphive/crm-handoff/internal/crm"
	"github.com/apphive/crm-handoff/internal/crm/auth"
	"github.com/apphive/crm-handoff/internal/docstore"
	"github.com/apphive/crm-handoff/internal/export"
	"github.com/apphive/crm-handoff/internal/parser"
	"github.com/apphive/crm-handoff/internal/resolver"
	"github.com/apphive/crm-handoff/internal/state"
)

// deps is the assembled stack every command runs against: configuration,
// state backend, CRM client and the export orchestrator on top of them.
type deps struct {
	cfg          *config.Config
	pool         *pgxpool.Pool
	store        state.Store
	tokens       *auth.Manager
	client       *crm.Client
	orchestrator *export.Orchestrator
}

// close releases the database pool when one was opened.
func (d *deps) close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// buildDeps loads the configuration and wires the full export stack.
func buildDeps(ctx context.Context, configPath string, logger *slog.Logger) (*deps, error) {
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	d := &deps{cfg: cfg}

	if cfg.GetStorageType() == config.StorageTypeDatabase {
		connString, err := cfg.Database.GetConnectionString()
		if err != nil {
			return nil, fmt.Errorf("failed to build connection string: %w", err)
		}
		pool, err := pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to reach database: %w", err)
		}
		d.pool = pool
	}

	store, err := state.NewStore(cfg, d.pool)
	if err != nil {
		d.close()
		return nil, err
	}
	d.store = store

	tokens, err := auth.NewManager(&cfg.Integration, store, auth.WithLogger(logger))
	if err != nil {
		d.close()
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	d.tokens = tokens

	client := crm.NewClient(cfg.Integration.APIBaseURL, tokens,
		crm.WithTimeout(cfg.Integration.GetRequestTimeout()))
	d.client = client

	documentsDir := cfg.Export.GetDocumentsDir()
	if err := os.MkdirAll(documentsDir, 0o750); err != nil {
		d.close()
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}
	docs, err := docstore.New(documentsDir)
	if err != nil {
		d.close()
		return nil, err
	}

	d.orchestrator = export.NewOrchestrator(
		cfg.Integration.Name,
		cfg.Export,
		client,
		resolver.New(client, logger),
		parser.New(client),
		docs,
		store,
		export.WithLogger(logger),
	)
	return d, nil
}
