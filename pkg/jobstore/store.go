// Package jobstore persists the handoff record between a write job's write
// phase and its commit/abort phase. Details are keyed by the job's declared
// output-table identity and must always be read fresh from durable storage:
// commit and abort may run in different processes.
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// ErrNotFound is returned when no details exist for a job key.
var ErrNotFound = errors.New("job details not found")

// Details describes one write job. Written once during the write phase, read
// once or twice during finalization, never mutated concurrently within a
// job's lifetime.
type Details struct {
	// JobID is a unique identifier assigned when the write phase starts.
	JobID string `json:"job_id"`

	// TableKey is the declared output-table identity ("db.table") the
	// details are keyed by. Abort verifies it against the job context.
	TableKey string `json:"table_key"`

	// WarehouseTable is the destination warehouse table.
	WarehouseTable warehouse.TableID `json:"warehouse_table"`

	// WriteMethod records the strategy the write phase staged for.
	WriteMethod string `json:"write_method"`

	// StreamNames holds the pending write streams of a direct-method job.
	StreamNames []string `json:"stream_names,omitempty"`

	// StagingPrefix is the scratch prefix holding an indirect-method job's
	// staged files.
	StagingPrefix string `json:"staging_prefix,omitempty"`

	// WorkDir is the job's temporary working directory, deleted during
	// finalization cleanup.
	WorkDir string `json:"work_dir"`

	CreatedAt time.Time `json:"created_at"`
}

// Store reads and writes job details.
type Store interface {
	// Write persists details under their table key.
	Write(ctx context.Context, details Details) error

	// Read loads the details for jobKey. It returns ErrNotFound when no job
	// state exists. Implementations must not cache.
	Read(ctx context.Context, jobKey string) (*Details, error)
}
