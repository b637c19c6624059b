package incident

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresRepository stores incidents in PostgreSQL. The incidents table is
// created by migrations/001_incidents.up.sql (see cmd/migrate).
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a PostgresRepository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{pool: pool, logger: logger}
}

// OpenPostgres connects to url and returns a repository that owns the pool.
func OpenPostgres(ctx context.Context, url string, logger *zap.Logger) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresRepository(pool, logger), nil
}

// Reset implements Repository.
func (r *PostgresRepository) Reset(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE incidents RESTART IDENTITY"); err != nil {
		return fmt.Errorf("reset incidents: %w", err)
	}
	return nil
}

// Insert implements Repository.
func (r *PostgresRepository) Insert(ctx context.Context, inc *Incident) error {
	if err := r.pool.QueryRow(ctx,
		`INSERT INTO incidents (timestamp, source, region, event_type, severity, risk_score,
			confidence, threat_dna, action, correlation_id, ledger_index, block_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		inc.Timestamp, inc.Source, inc.Region, inc.EventType, inc.Severity, inc.RiskScore,
		inc.Confidence, inc.ThreatDNA, inc.Action, inc.CorrelationID, inc.LedgerIndex, inc.BlockHash,
	).Scan(&inc.ID); err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	r.logger.Debug("incident stored",
		zap.Int64("id", inc.ID),
		zap.String("event_type", inc.EventType),
		zap.Int("risk_score", inc.RiskScore),
	)
	return nil
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Incident, error) {
	inc, err := scanIncident(r.pool.QueryRow(ctx,
		"SELECT "+incidentColumns+" FROM incidents WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident %d: %w", id, err)
	}
	return inc, nil
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context) ([]Incident, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+incidentColumns+" FROM incidents ORDER BY risk_score DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	out := []Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

// CountBySeverity implements Repository.
func (r *PostgresRepository) CountBySeverity(ctx context.Context) ([]Count, error) {
	return r.countBy(ctx, "severity")
}

// CountByRegion implements Repository.
func (r *PostgresRepository) CountByRegion(ctx context.Context) ([]Count, error) {
	return r.countBy(ctx, "region")
}

func (r *PostgresRepository) countBy(ctx context.Context, column string) ([]Count, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+column+", COUNT(*)::int AS n FROM incidents GROUP BY "+column+" ORDER BY n DESC, "+column+" ASC")
	if err != nil {
		return nil, fmt.Errorf("count incidents by %s: %w", column, err)
	}
	defer rows.Close()

	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping implements Repository.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close implements Repository.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
