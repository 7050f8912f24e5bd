// Package postgres provides PostgreSQL storage for job details.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/datalinkhq/bqbridge/pkg/jobstore"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements jobstore.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL job store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Write upserts the details row for the job's table key.
func (s *Store) Write(ctx context.Context, details jobstore.Details) error {
	if details.CreatedAt.IsZero() {
		details.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding job details: %w", err)
	}

	query, args, err := psq.Insert("job_details").
		Columns("job_key", "details", "created_at").
		Values(details.TableKey, payload, details.CreatedAt).
		Suffix("ON CONFLICT (job_key) DO UPDATE SET details = EXCLUDED.details, created_at = EXCLUDED.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building job details insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting job details: %w", err)
	}
	return nil
}

// Read loads the details for jobKey. Each call hits the database; nothing is
// cached between commit and abort.
func (s *Store) Read(ctx context.Context, jobKey string) (*jobstore.Details, error) {
	query, args, err := psq.Select("details").
		From("job_details").
		Where(sq.Eq{"job_key": jobKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building job details select: %w", err)
	}

	var payload []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading job details for %q: %w", jobKey, jobstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading job details for %q: %w", jobKey, err)
	}

	details := &jobstore.Details{}
	if err := json.Unmarshal(payload, details); err != nil {
		return nil, fmt.Errorf("decoding job details for %q: %w", jobKey, err)
	}
	return details, nil
}
