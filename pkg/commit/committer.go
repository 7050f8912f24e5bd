// Package commit finalizes write jobs. The Committer reads the persisted
// job details, dispatches to exactly one of the two write strategies, and
// unconditionally cleans up the job's scratch working directory. It performs
// no retries; any retry policy belongs to the strategy implementations.
package commit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/datalinkhq/bqbridge/pkg/config"
	"github.com/datalinkhq/bqbridge/pkg/jobstore"
	"github.com/datalinkhq/bqbridge/pkg/scratch"
)

// Strategy lands a finished job's data in the warehouse.
type Strategy interface {
	CommitJob(ctx context.Context, details *jobstore.Details) error
}

// DirectStrategy is the direct write strategy. Its rollback path is also
// used on abort regardless of the configured write method; the indirect
// strategy's staged state is rolled back by the engine side.
type DirectStrategy interface {
	Strategy
	AbortJob(ctx context.Context, details *jobstore.Details) error
}

// Config configures the Committer.
type Config struct {
	// WriteMethod selects the commit strategy: "direct" or "indirect".
	// Empty defaults to direct; anything else fails commit before any
	// strategy runs.
	WriteMethod string
}

// Committer orchestrates job finalization.
type Committer struct {
	writeMethod string
	jobs        jobstore.Store
	direct      DirectStrategy
	indirect    Strategy
	scratch     scratch.Storage
}

// New creates a Committer.
func New(cfg Config, jobs jobstore.Store, direct DirectStrategy, indirect Strategy, scr scratch.Storage) (*Committer, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if direct == nil {
		return nil, fmt.Errorf("direct strategy is required")
	}
	if indirect == nil {
		return nil, fmt.Errorf("indirect strategy is required")
	}
	if scr == nil {
		return nil, fmt.Errorf("scratch storage is required")
	}
	method := cfg.WriteMethod
	if method == "" {
		method = config.WriteMethodDirect
	}
	return &Committer{
		writeMethod: method,
		jobs:        jobs,
		direct:      direct,
		indirect:    indirect,
		scratch:     scr,
	}, nil
}

// CommitJob finalizes a successful job. jobKey is the job's declared
// output-table identity; an empty key means the job context is malformed and
// there is nothing to reconcile. Scratch cleanup runs after the strategy
// whether it succeeded or not, and never masks a strategy failure.
func (c *Committer) CommitJob(ctx context.Context, jobKey string) error {
	if jobKey == "" {
		return fmt.Errorf("job context has no output table name")
	}
	details, err := c.jobs.Read(ctx, jobKey)
	if err != nil {
		return err
	}

	var strategyErr error
	switch c.writeMethod {
	case config.WriteMethodIndirect:
		strategyErr = c.indirect.CommitJob(ctx, details)
	case config.WriteMethodDirect:
		strategyErr = c.direct.CommitJob(ctx, details)
	default:
		return fmt.Errorf("invalid write method setting: %q", c.writeMethod)
	}

	c.cleanup(ctx, details)
	if strategyErr != nil {
		return strategyErr
	}
	slog.Info("job committed", "job", jobKey, "write_method", c.writeMethod)
	return nil
}

// AbortJob reconciles a failed job. The recorded table identity must match
// the job context's identity; a mismatch means the details belong to a prior
// run and touching the warehouse would cross job boundaries. The direct
// rollback path runs unconditionally, then scratch cleanup.
func (c *Committer) AbortJob(ctx context.Context, jobKey string, status int) error {
	if jobKey == "" {
		return fmt.Errorf("job context has no output table name")
	}
	details, err := c.jobs.Read(ctx, jobKey)
	if err != nil {
		return err
	}
	if details.TableKey != jobKey {
		return fmt.Errorf("job details table %q does not match job context table %q", details.TableKey, jobKey)
	}

	slog.Info("aborting job", "job", jobKey, "status", status)
	rollbackErr := c.direct.AbortJob(ctx, details)
	c.cleanup(ctx, details)
	return rollbackErr
}

// cleanup best-effort deletes the job's scratch working directory. Failures
// are logged and swallowed; cleanup must never change the job outcome.
func (c *Committer) cleanup(ctx context.Context, details *jobstore.Details) {
	if details.WorkDir == "" {
		return
	}
	if err := c.scratch.RemoveAll(ctx, details.WorkDir); err != nil {
		slog.Warn("cleaning up job work directory failed",
			"job", details.TableKey, "work_dir", details.WorkDir, "error", err)
	}
}

// The per-task hooks are all no-ops: coordination happens once at job
// granularity, there is no task-level two-phase protocol.

// SetupJob is a no-op.
func (c *Committer) SetupJob(context.Context) error { return nil }

// SetupTask is a no-op.
func (c *Committer) SetupTask(context.Context) error { return nil }

// NeedsTaskCommit reports that tasks never have anything to commit.
func (c *Committer) NeedsTaskCommit(context.Context) (bool, error) { return false, nil }

// CommitTask is a no-op.
func (c *Committer) CommitTask(context.Context) error { return nil }

// AbortTask is a no-op.
func (c *Committer) AbortTask(context.Context) error { return nil }
