/*
Package sqlite provides a SQLite-backed implementation of the rates persistence ports.

PURPOSE:
  Implements rates.ConfigStore (calculator profiles per asset) and
  rates.OverrideLog (committed overrides and the submission audit trail)
  using SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  rates.ConfigStore:  GetConfig / SaveConfig
  rates.OverrideLog:  SaveCommitted / LoadCommitted / RecordSubmission / ListSubmissions

KEY TABLES:
  calculator_profiles:  One JSON profile per property, versioned on save
  committed_overrides:  Last acknowledged base rate per (property, date)
  submissions:          Append-only log of every submission attempt

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on submissions
  - committed_overrides is upserted per date; it mirrors the PMS, not history

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/rates.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - rates/ports.go: Interface definitions
  - rates/store/memory.go: In-memory implementation for testing
  - factory/profile.go: Profile JSON format
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/rates"
)

// timestampLayout is fixed width so TEXT ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the rates persistence ports using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	profiles *factory.ProfileFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, profiles: factory.NewProfileFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Calculator profiles (asset configuration)
	CREATE TABLE IF NOT EXISTS calculator_profiles (
		property_id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Last acknowledged override per date
	CREATE TABLE IF NOT EXISTS committed_overrides (
		property_id TEXT NOT NULL,
		stay_date TEXT NOT NULL,
		rate TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (property_id, stay_date)
	);

	-- Submission attempts (append-only)
	CREATE TABLE IF NOT EXISTS submissions (
		batch_id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		pms_property_id TEXT,
		room_type_id TEXT,
		overrides_json TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		submitted_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_property_time
		ON submissions(property_id, submitted_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONFIG STORE
// =============================================================================

// GetConfig loads the profile for an asset, or rates.ErrProfileNotFound.
func (s *Store) GetConfig(ctx context.Context, propertyID rates.PropertyID) (rates.CalculatorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM calculator_profiles WHERE property_id = ?`, string(propertyID),
	).Scan(&configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return rates.CalculatorProfile{}, rates.ErrProfileNotFound
	}
	if err != nil {
		return rates.CalculatorProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.profiles.ParseProfile(configJSON)
}

// SaveConfig upserts the profile and bumps its version.
func (s *Store) SaveConfig(ctx context.Context, propertyID rates.PropertyID, profile rates.CalculatorProfile) error {
	configJSON, err := s.profiles.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculator_profiles (property_id, config_json, version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(property_id) DO UPDATE SET
			config_json = excluded.config_json,
			version = calculator_profiles.version + 1,
			updated_at = excluded.updated_at
	`, string(propertyID), configJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// ProfileVersion returns how many times a profile has been saved (0 if never).
func (s *Store) ProfileVersion(ctx context.Context, propertyID rates.PropertyID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM calculator_profiles WHERE property_id = ?`, string(propertyID),
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

// =============================================================================
// OVERRIDE LOG
// =============================================================================

// SaveCommitted upserts committed overrides atomically.
func (s *Store) SaveCommitted(ctx context.Context, propertyID rates.PropertyID, overrides []rates.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, o := range overrides {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO committed_overrides (property_id, stay_date, rate, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(property_id, stay_date) DO UPDATE SET
				rate = excluded.rate,
				updated_at = excluded.updated_at
		`, string(propertyID), o.Date.String(), o.Rate.String(), now)
		if err != nil {
			return fmt.Errorf("failed to save committed override %s: %w", o.Date, err)
		}
	}
	return tx.Commit()
}

// LoadCommitted returns committed overrides ordered by date.
func (s *Store) LoadCommitted(ctx context.Context, propertyID rates.PropertyID) ([]rates.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT stay_date, rate FROM committed_overrides
		WHERE property_id = ?
		ORDER BY stay_date
	`, string(propertyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rates.Override
	for rows.Next() {
		var dateStr, rateStr string
		if err := rows.Scan(&dateStr, &rateStr); err != nil {
			return nil, err
		}
		o, err := parseOverride(dateStr, rateStr)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// RecordSubmission appends a submission attempt.
func (s *Store) RecordSubmission(ctx context.Context, r rates.SubmissionRecord) error {
	overridesJSON, err := json.Marshal(toOverrideRows(r.Overrides))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (batch_id, property_id, pms_property_id, room_type_id, overrides_json, status, error, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.BatchID, string(r.PropertyID), nullString(r.PMSPropertyID), nullString(string(r.RoomTypeID)),
		string(overridesJSON), string(r.Status), nullString(r.Error), r.SubmittedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// ListSubmissions returns the newest attempts first. limit <= 0 means all.
func (s *Store) ListSubmissions(ctx context.Context, propertyID rates.PropertyID, limit int) ([]rates.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT batch_id, property_id, pms_property_id, room_type_id, overrides_json, status, error, submitted_at
		FROM submissions
		WHERE property_id = ?
		ORDER BY submitted_at DESC, rowid DESC
	`
	args := []any{string(propertyID)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rates.SubmissionRecord
	for rows.Next() {
		var (
			r                                  rates.SubmissionRecord
			propertyIDStr, status, submittedAt string
			overridesJSON                      string
			pmsPropertyID, roomTypeID, errMsg  sql.NullString
		)
		if err := rows.Scan(&r.BatchID, &propertyIDStr, &pmsPropertyID, &roomTypeID, &overridesJSON, &status, &errMsg, &submittedAt); err != nil {
			return nil, err
		}
		r.PropertyID = rates.PropertyID(propertyIDStr)
		r.PMSPropertyID = pmsPropertyID.String
		r.RoomTypeID = rates.RoomTypeID(roomTypeID.String)
		r.Status = rates.SubmissionStatus(status)
		r.Error = errMsg.String
		r.SubmittedAt, _ = time.Parse(timestampLayout, submittedAt)

		var rowsJSON []overrideRow
		if err := json.Unmarshal([]byte(overridesJSON), &rowsJSON); err != nil {
			return nil, fmt.Errorf("corrupt submission %s: %w", r.BatchID, err)
		}
		for _, or := range rowsJSON {
			o, err := parseOverride(or.Date, or.Rate)
			if err != nil {
				return nil, err
			}
			r.Overrides = append(r.Overrides, o)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Reset clears all data (for demos and tests).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"submissions", "committed_overrides", "calculator_profiles"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type overrideRow struct {
	Date string `json:"date"`
	Rate string `json:"rate"`
}

func toOverrideRows(overrides []rates.Override) []overrideRow {
	rows := make([]overrideRow, len(overrides))
	for i, o := range overrides {
		rows[i] = overrideRow{Date: o.Date.String(), Rate: o.Rate.String()}
	}
	return rows
}

func parseOverride(dateStr, rateStr string) (rates.Override, error) {
	date, err := rates.ParseDate(dateStr)
	if err != nil {
		return rates.Override{}, err
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return rates.Override{}, fmt.Errorf("invalid rate %q for %s: %w", rateStr, dateStr, err)
	}
	return rates.Override{Date: date, Rate: rate}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var (
	_ rates.ConfigStore = (*Store)(nil)
	_ rates.OverrideLog = (*Store)(nil)
)
