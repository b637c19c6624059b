package incident

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Repository stores incidents. MemoryRepository, SQLiteRepository and
// PostgresRepository all implement it.
type Repository interface {
	// Reset deletes every stored incident.
	Reset(ctx context.Context) error

	// Insert stores inc and sets inc.ID.
	Insert(ctx context.Context, inc *Incident) error

	// Get returns the incident with the given ID.
	Get(ctx context.Context, id int64) (*Incident, error)

	// List returns every incident ordered by risk score then ID, both descending.
	List(ctx context.Context) ([]Incident, error)

	// CountBySeverity groups incidents by severity, largest group first.
	CountBySeverity(ctx context.Context) ([]Count, error)

	// CountByRegion groups incidents by region, largest group first.
	CountByRegion(ctx context.Context) ([]Count, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects and configures a Repository.
type StoreConfig struct {
	Driver      string
	SQLitePath  string
	PostgresURL string
}

// Open builds the Repository named by cfg.Driver.
func Open(ctx context.Context, cfg StoreConfig, logger *zap.Logger) (Repository, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		logger.Info("incident store: memory")
		return NewMemoryRepository(), nil
	case DriverSQLite:
		repo, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("incident store: sqlite", zap.String("path", cfg.SQLitePath))
		return repo, nil
	case DriverPostgres:
		repo, err := OpenPostgres(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("incident store: postgres")
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown incident store driver %q", cfg.Driver)
	}
}
