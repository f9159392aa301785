package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yangwenmai/aiworkspace/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ ArtifactIndex = (*Store)(nil)
	_ ExpiredPurger = (*Store)(nil)
)

// Store is the SQLite-backed ledger of generated artifacts.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: artifacts table
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS artifacts (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		kind       TEXT NOT NULL,
		path       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_expires ON artifacts(expires_at);
	`)
	return err
}

// RecordArtifact inserts a generated artifact.
func (s *Store) RecordArtifact(ctx context.Context, a model.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, name, kind, path, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Kind, a.Path, a.CreatedAt, a.ExpiresAt,
	)
	return err
}

// GetArtifactByName returns the artifact with the given file name.
// It returns sql.ErrNoRows when none exists.
func (s *Store) GetArtifactByName(ctx context.Context, name string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, path, created_at, expires_at FROM artifacts WHERE name = ?`, name)
	var a model.Artifact
	if err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.Path, &a.CreatedAt, &a.ExpiresAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListExpired returns up to limit artifacts whose expiry is at or before now,
// oldest first.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Artifact, error) {
	// RFC3339 UTC timestamps sort lexically.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, path, created_at, expires_at FROM artifacts
		WHERE expires_at <= ? ORDER BY expires_at ASC LIMIT ?`,
		now.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &a.Path, &a.CreatedAt, &a.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteArtifact removes a ledger entry. Deleting a missing id is not an error.
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	return err
}
