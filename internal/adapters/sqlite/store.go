package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/nemeshnorbert/reveal/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is a file-backed table of USD-pivoted rates keyed by
// (date, symbol). Writes are insert-or-ignore: the first rate recorded
// for a key wins and later writes for the same key are silently
// dropped, which makes stores append-only-safe and merge-idempotent.
type Store struct {
	db   *sql.DB
	path string
}

// Exists reports whether a store file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create creates an empty store at path and applies the schema.
// Creating over an existing store is an error: stores follow a strict
// create-once, open-many lifecycle.
func Create(path string) error {
	if Exists(path) {
		return fmt.Errorf("%w: %s", domain.ErrStoreExists, path)
	}
	logrus.Infof("Creating rate store at %s", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to create store at %s: %w", path, err)
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err = goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err = goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply store schema at %s: %w", path, err)
	}
	return nil
}

// Open opens an existing store. Opening a missing store is an error.
func Open(path string) (*Store, error) {
	if !Exists(path) {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreNotFound, path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store at %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Delete removes the store file. Missing files are not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete store at %s: %w", path, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

// GetRates looks up rates for the given bids, preserving input order.
// Absent keys yield nil entries, not errors.
func (s *Store) GetRates(ctx context.Context, bids []domain.USDBid) ([]*float64, error) {
	const q = `SELECT rate FROM usd_rates WHERE date = ? AND symbol = ?`

	stmt, err := s.db.PrepareContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rate lookup: %w", err)
	}
	defer stmt.Close()

	rates := make([]*float64, len(bids))
	for i, bid := range bids {
		var rate float64
		err = stmt.QueryRowContext(ctx, bid.Date, bid.Symbol).Scan(&rate)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to look up rate for %s/%s: %w", bid.Date, bid.Symbol, err)
		default:
			rates[i] = &rate
		}
	}
	return rates, nil
}

// PutRates writes the given bid/rate pairs, skipping nil rates.
// Duplicate (date, symbol) keys are ignored without error.
func (s *Store) PutRates(ctx context.Context, bids []domain.USDBid, rates []*float64) error {
	if len(bids) != len(rates) {
		return fmt.Errorf("bids/rates length mismatch: %d != %d", len(bids), len(rates))
	}
	records := make([]domain.RateRecord, 0, len(bids))
	for i, bid := range bids {
		if rates[i] == nil {
			continue
		}
		records = append(records, domain.RateRecord{Date: bid.Date, Symbol: bid.Symbol, Rate: *rates[i]})
	}
	return s.PutRecords(ctx, records)
}

// PutRecords inserts records in one transaction with insert-or-ignore
// semantics.
func (s *Store) PutRecords(ctx context.Context, records []domain.RateRecord) error {
	if len(records) == 0 {
		return nil
	}
	const q = `INSERT OR IGNORE INTO usd_rates(date, symbol, rate) VALUES (?, ?, ?)`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rate write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to prepare rate write: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err = stmt.ExecContext(ctx, rec.Date, rec.Symbol, rec.Rate); err != nil {
			return fmt.Errorf("failed to write rate for %s/%s: %w", rec.Date, rec.Symbol, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rate write: %w", err)
	}
	return nil
}

// EachRecord streams every stored record to fn. A non-nil error from fn
// stops the scan and is returned.
func (s *Store) EachRecord(ctx context.Context, fn func(domain.RateRecord) error) error {
	const q = `SELECT date, symbol, rate FROM usd_rates`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to scan store: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.RateRecord
		if err = rows.Scan(&rec.Date, &rec.Symbol, &rec.Rate); err != nil {
			return fmt.Errorf("failed to scan store row: %w", err)
		}
		if err = fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}
