package state

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apphive/crm-handoff/internal/config"
)

// NewStore creates a Store based on the configured storage type.
//
// For database storage, the pool parameter must not be nil. For memory
// storage (the default) the pool is ignored.
func NewStore(cfg *config.Config, pool *pgxpool.Pool) (Store, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when storage type is database")
		}
		return NewPostgresStore(pool), nil
	default:
		return NewMemoryStore(), nil
	}
}
