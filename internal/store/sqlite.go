package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clambin/enhanced-thermostat/internal/ledger"
	_ "modernc.org/sqlite"
)

const (
	createRuntimeSQL = `
		CREATE TABLE IF NOT EXISTS runtime (
			thermostat    TEXT NOT NULL,
			day           TEXT NOT NULL,
			heating_hours REAL NOT NULL DEFAULT 0,
			cooling_hours REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (thermostat, day)
		)`

	upsertRuntimeSQL = `
		INSERT INTO runtime (thermostat, day, heating_hours, cooling_hours)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thermostat, day) DO UPDATE SET
			heating_hours=excluded.heating_hours,
			cooling_hours=excluded.cooling_hours`

	selectRuntimeSQL = `SELECT day, heating_hours, cooling_hours FROM runtime WHERE thermostat = ?`
)

var _ Store = &SQLite{}

// SQLite stores the ledger in a SQLite table, one row per thermostat and day. Several thermostats can share one database.
type SQLite struct {
	db  *sql.DB
	key string
}

// OpenSQLite opens (and, if needed, creates) the database at path.
func OpenSQLite(ctx context.Context, path, key string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := NewSQLite(db, key)
	if err = s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return s, nil
}

func NewSQLite(db *sql.DB, key string) *SQLite {
	return &SQLite{db: db, key: key}
}

// Migrate creates the runtime table.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createRuntimeSQL)
	return err
}

func (s *SQLite) Load(ctx context.Context) (ledger.Ledger, error) {
	l, err := s.load(ctx)
	if err != nil {
		return ledger.Ledger{}, &PersistenceError{Op: "load", Key: s.key, Err: err}
	}
	return l, nil
}

func (s *SQLite) load(ctx context.Context) (ledger.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, selectRuntimeSQL, s.key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	l := ledger.Ledger{}
	for rows.Next() {
		var day string
		var totals ledger.DayTotals
		if err = rows.Scan(&day, &totals.HeatingHours, &totals.CoolingHours); err != nil {
			return nil, err
		}
		l[day] = totals
	}
	return l, rows.Err()
}

// Save writes all days of the ledger in a single transaction.
func (s *SQLite) Save(ctx context.Context, l ledger.Ledger) error {
	if err := s.save(ctx, l); err != nil {
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	return nil
}

func (s *SQLite) save(ctx context.Context, l ledger.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, day := range l.Days() {
		totals := l[day]
		if _, err = tx.ExecContext(ctx, upsertRuntimeSQL, s.key, day, totals.HeatingHours, totals.CoolingHours); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
