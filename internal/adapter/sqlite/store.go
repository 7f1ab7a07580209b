// Package sqlite persists assessed samples so the collection survives a
// restart. Only inputs are stored; indices are recomputed on load against the
// active standards table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `CREATE TABLE IF NOT EXISTS samples (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	location    TEXT NOT NULL,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	date        TEXT NOT NULL,
	source      TEXT NOT NULL,
	metals      BLOB NOT NULL,
	assessed_at TEXT NOT NULL
)`

// Store appends samples to a single SQLite table in arrival order.
// It implements domain.SampleSink and domain.SeenFilter.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create samples table: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Append inserts samples in one transaction. A sample whose ID is already
// stored is ignored, so replayed stream records are not duplicated.
func (s *Store) Append(ctx context.Context, samples []domain.Sample) (retErr error) {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO samples
		(id, location, latitude, longitude, date, source, metals, assessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, smp := range samples {
		metals, err := json.Marshal(smp.Metals)
		if err != nil {
			return fmt.Errorf("encode metals for %s: %w", smp.ID, err)
		}
		res, err := stmt.ExecContext(ctx,
			smp.ID, smp.Location, smp.Latitude, smp.Longitude,
			smp.Date.String(), string(smp.Source), metals,
			smp.AssessedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert sample %s: %w", smp.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			s.logger.Debug("sample already stored, skipping", "id", smp.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Unseen returns the samples whose ID is not stored yet, in order, keeping
// the first of any ID repeated within samples. It implements
// domain.SeenFilter.
func (s *Store) Unseen(ctx context.Context, samples []domain.Sample) ([]domain.Sample, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	stmt, err := s.db.PrepareContext(ctx, `SELECT EXISTS(SELECT 1 FROM samples WHERE id = ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	out := make([]domain.Sample, 0, len(samples))
	batch := make(map[string]struct{}, len(samples))
	for _, smp := range samples {
		if _, dup := batch[smp.ID]; dup {
			continue
		}
		batch[smp.ID] = struct{}{}

		var stored bool
		if err := stmt.QueryRowContext(ctx, smp.ID).Scan(&stored); err != nil {
			return nil, fmt.Errorf("lookup sample %s: %w", smp.ID, err)
		}
		if stored {
			continue
		}
		out = append(out, smp)
	}
	return out, nil
}

// LoadAll returns every stored sample in insertion order with indices
// recomputed against standards. Rows that no longer validate are logged and
// skipped.
func (s *Store) LoadAll(ctx context.Context, standards *domain.StandardsTable) ([]domain.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, location, latitude, longitude, date, source, metals, assessed_at
		FROM samples ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Sample
	for rows.Next() {
		var (
			in         domain.SampleInput
			date       string
			source     string
			metals     []byte
			assessedAt string
		)
		if err := rows.Scan(&in.ID, &in.Location, &in.Latitude, &in.Longitude, &date, &source, &metals, &assessedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(metals, &in.Metals); err != nil {
			return nil, fmt.Errorf("decode metals for %s: %w", in.ID, err)
		}
		if in.Date, err = domain.ParseDate(date); err != nil {
			return nil, fmt.Errorf("decode date for %s: %w", in.ID, err)
		}
		if in.AssessedAt, err = time.Parse(time.RFC3339Nano, assessedAt); err != nil {
			return nil, fmt.Errorf("decode assessed_at for %s: %w", in.ID, err)
		}
		in.Source = domain.Source(source)

		smp, err := domain.NewSample(in, standards)
		if err != nil {
			s.logger.Warn("stored sample no longer valid, skipping", "id", in.ID, "error", err)
			continue
		}
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

// Count returns the number of stored samples.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
