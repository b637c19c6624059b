package incident

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS incidents (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp       TEXT    NOT NULL,
    source          TEXT    NOT NULL,
    region          TEXT    NOT NULL,
    event_type      TEXT    NOT NULL,
    severity        TEXT    NOT NULL,
    risk_score      INTEGER NOT NULL,
    confidence      TEXT    NOT NULL,
    threat_dna      TEXT    NOT NULL,
    action          TEXT    NOT NULL,
    correlation_id  TEXT    NOT NULL,
    ledger_index    INTEGER NOT NULL,
    block_hash      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_risk ON incidents(risk_score DESC, id DESC);
`

const incidentColumns = `id, timestamp, source, region, event_type, severity, risk_score,
	confidence, threat_dna, action, correlation_id, ledger_index, block_hash`

// SQLiteRepository stores incidents in a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps writes serialised and lets ":memory:" survive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Reset implements Repository.
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM incidents"); err != nil {
		return fmt.Errorf("reset incidents: %w", err)
	}
	return nil
}

// Insert implements Repository.
func (r *SQLiteRepository) Insert(ctx context.Context, inc *Incident) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incidents (timestamp, source, region, event_type, severity, risk_score,
			confidence, threat_dna, action, correlation_id, ledger_index, block_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.Timestamp, inc.Source, inc.Region, inc.EventType, inc.Severity, inc.RiskScore,
		inc.Confidence, inc.ThreatDNA, inc.Action, inc.CorrelationID, inc.LedgerIndex, inc.BlockHash,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("incident id: %w", err)
	}
	inc.ID = id
	return nil
}

// Get implements Repository.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*Incident, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+incidentColumns+" FROM incidents WHERE id = ?", id)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident %d: %w", id, err)
	}
	return inc, nil
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context) ([]Incident, error) {
	rows, err := r.db.QueryContext(ctx,
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
func (r *SQLiteRepository) CountBySeverity(ctx context.Context) ([]Count, error) {
	return r.countBy(ctx, "severity")
}

// CountByRegion implements Repository.
func (r *SQLiteRepository) CountByRegion(ctx context.Context) ([]Count, error) {
	return r.countBy(ctx, "region")
}

// countBy groups on column, which must be a trusted column name.
func (r *SQLiteRepository) countBy(ctx context.Context, column string) ([]Count, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) AS n FROM incidents GROUP BY "+column+" ORDER BY n DESC, "+column+" ASC")
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
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close implements Repository.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*Incident, error) {
	var inc Incident
	if err := row.Scan(
		&inc.ID, &inc.Timestamp, &inc.Source, &inc.Region, &inc.EventType, &inc.Severity,
		&inc.RiskScore, &inc.Confidence, &inc.ThreatDNA, &inc.Action,
		&inc.CorrelationID, &inc.LedgerIndex, &inc.BlockHash,
	); err != nil {
		return nil, err
	}
	return &inc, nil
}
