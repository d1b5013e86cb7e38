// Package db holds the SQLite-backed court list, survey answers and referral counts.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const mainSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS courts (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS departments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    department_name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS referrals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    department_id INTEGER NOT NULL REFERENCES departments(id),
    submission_id TEXT NOT NULL,
    referral_date TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_referrals_date ON referrals(referral_date);
`

const surveySchema = `
CREATE TABLE IF NOT EXISTS surveys (
    user_token TEXT PRIMARY KEY,
    satisfaction INTEGER NOT NULL,
    ease_of_use INTEGER NOT NULL,
    comments TEXT NOT NULL,
    submitted_at DATETIME NOT NULL
);
`

var defaultCourts = []string{
	"בית משפט א", "בית משפט ב", "בית משפט ג",
	"בית משפט ד", "בית משפט ה", "בית משפט ו",
	"בית משפט ז", "בית משפט ח", "בית משפט ט",
}

// Store wraps the primary and survey databases.
type Store struct {
	main   *sql.DB
	survey *sql.DB
}

// Open opens both databases, runs their schemas and seeds the court list.
func Open(ctx context.Context, mainDSN, surveyDSN string) (*Store, error) {
	mainDB, err := openSQLite(ctx, mainDSN, mainSchema)
	if err != nil {
		return nil, fmt.Errorf("open primary database: %w", err)
	}
	surveyDB, err := openSQLite(ctx, surveyDSN, surveySchema)
	if err != nil {
		_ = mainDB.Close()
		return nil, fmt.Errorf("open survey database: %w", err)
	}

	s := &Store{main: mainDB, survey: surveyDB}
	if err := s.seedCourts(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(ctx context.Context, dsn, schema string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func (s *Store) seedCourts(ctx context.Context) error {
	var count int
	if err := s.main.QueryRowContext(ctx, `SELECT COUNT(*) FROM courts`).Scan(&count); err != nil {
		return fmt.Errorf("count courts: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, name := range defaultCourts {
		if _, err := s.main.ExecContext(ctx,
			`INSERT INTO courts (id, name) VALUES (?, ?)`, uuid.New().String(), name); err != nil {
			return fmt.Errorf("seed courts: %w", err)
		}
	}
	return nil
}

// Close closes both databases.
func (s *Store) Close() error {
	err := s.main.Close()
	if serr := s.survey.Close(); err == nil {
		err = serr
	}
	return err
}
