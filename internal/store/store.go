// Package store provides SQLite-based storage for parsed ephemerides.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mmp/oem"
)

var log = logging.Logger("store")

// ErrNotFound is returned by Load for an unknown id.
var ErrNotFound = errors.New("ephemeris not found")

// Store persists ephemerides and their state vectors.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Entry summarizes a stored ephemeris.
type Entry struct {
	ID         string
	Source     string
	ObjectName string
	Vectors    int
	CreatedAt  time.Time
}

// Open opens (creating if necessary) the database in basePath.
func Open(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	dbPath := filepath.Join(basePath, "oem.db")

	// Foreign keys are set in the DSN so every pooled connection has them.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.Debugf("Opened %s", dbPath)
	return s, nil
}

func (s *Store) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ephemerides (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			object_name TEXT,
			object_id TEXT,
			metadata_text TEXT NOT NULL,
			trajectory_text TEXT NOT NULL,
			vector_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create ephemerides table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS state_vectors (
			ephemeris_id TEXT NOT NULL REFERENCES ephemerides(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			epoch_unix_nano INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			PRIMARY KEY (ephemeris_id, seq)
		)
	`); err != nil {
		return fmt.Errorf("failed to create state_vectors table: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores eph under a new id, which is returned. Per-line syntax
// errors are not stored.
func (s *Store) Save(ctx context.Context, source string, eph *oem.Ephemeris) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ephemerides (id, source, object_name, object_id, metadata_text, trajectory_text, vector_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, source, eph.ObjectName, eph.ObjectID, eph.MetadataText, eph.TrajectoryText,
		len(eph.Vectors), time.Now().Unix()); err != nil {
		return "", fmt.Errorf("failed to insert ephemeris: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO state_vectors (ephemeris_id, seq, epoch_unix_nano, x, y, z) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, v := range eph.Vectors {
		if _, err := stmt.ExecContext(ctx, id, v.Sequence, v.Epoch.UnixNano(), v.X, v.Y, v.Z); err != nil {
			return "", fmt.Errorf("failed to insert state vector %d: %w", v.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Infof("Stored %s from %s: %d vectors", id, source, len(eph.Vectors))
	return id, nil
}

// Load returns the ephemeris stored under id.
func (s *Store) Load(ctx context.Context, id string) (*oem.Ephemeris, error) {
	eph := &oem.Ephemeris{}
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT object_name, object_id, metadata_text, trajectory_text, vector_count
		FROM ephemerides WHERE id = ?`, id).
		Scan(&eph.ObjectName, &eph.ObjectID, &eph.MetadataText, &eph.TrajectoryText, &n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, epoch_unix_nano, x, y, z FROM state_vectors
		WHERE ephemeris_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if n > 0 {
		eph.Vectors = make([]oem.StateVector, 0, n)
	}
	for rows.Next() {
		var v oem.StateVector
		var epoch int64
		if err := rows.Scan(&v.Sequence, &epoch, &v.X, &v.Y, &v.Z); err != nil {
			return nil, err
		}
		v.Epoch = time.Unix(0, epoch).UTC()
		eph.Vectors = append(eph.Vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return eph, nil
}

// List returns a summary of every stored ephemeris, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, object_name, vector_count, created_at
		FROM ephemerides ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Source, &e.ObjectName, &e.Vectors, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the ephemeris stored under id along with its vectors.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ephemerides WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
