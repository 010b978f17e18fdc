// Package store persists deployment records in SQLite so status
// queries survive worker restarts. The full result is stored as JSON
// next to a few indexed columns used for filtering.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"conductor/internal/deploy"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the deployments database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the record for result.DeploymentID.
func (s *Store) Save(ctx context.Context, result *deploy.Result) error {
	if result.DeploymentID == "" {
		return errors.New("cannot save a result without a deployment id")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, platform, environment, status, url, created_at, updated_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			url = excluded.url,
			updated_at = excluded.updated_at,
			result_json = excluded.result_json`,
		result.DeploymentID, result.Platform, string(result.Environment), string(result.Status),
		result.URL, result.CreatedAt.UTC(), time.Now().UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("saving deployment %s: %w", result.DeploymentID, err)
	}
	return nil
}

// Get returns the stored record for a deployment id.
func (s *Store) Get(ctx context.Context, deploymentID string) (*deploy.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM deployments WHERE id = ?`, deploymentID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &deploy.DeploymentNotFoundError{DeploymentID: deploymentID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading deployment %s: %w", deploymentID, err)
	}
	return decodeResult(payload)
}

// List returns up to limit records, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*deploy.Result, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT result_json FROM deployments ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	defer rows.Close()

	var out []*deploy.Result
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		result, err := decodeResult(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// SetStatus updates only the lifecycle state (and URL if non-empty) of
// an existing record, keeping the stored JSON in sync.
func (s *Store) SetStatus(ctx context.Context, deploymentID string, status deploy.Status, url string) error {
	result, err := s.Get(ctx, deploymentID)
	if err != nil {
		return err
	}
	result.Status = status
	if url != "" {
		result.URL = url
	}
	return s.Save(ctx, result)
}

func decodeResult(payload string) (*deploy.Result, error) {
	var result deploy.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decoding stored result: %w", err)
	}
	return &result, nil
}
