package commit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/datalinkhq/bqbridge/pkg/jobstore"
	"github.com/datalinkhq/bqbridge/pkg/scratch"
	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// IndirectCommitter finalizes jobs whose write phase staged files in scratch
// storage: commit runs a warehouse load job over the staged objects. Its
// rollback is owned by the engine side, so it only implements Strategy.
type IndirectCommitter struct {
	client  warehouse.LoadRunner
	scratch scratch.Storage
}

// NewIndirectCommitter creates the indirect write strategy.
func NewIndirectCommitter(client warehouse.LoadRunner, scr scratch.Storage) *IndirectCommitter {
	return &IndirectCommitter{client: client, scratch: scr}
}

// CommitJob loads the job's staged objects into the warehouse table.
func (i *IndirectCommitter) CommitJob(ctx context.Context, details *jobstore.Details) error {
	if details.StagingPrefix == "" {
		return fmt.Errorf("job %s has no staging prefix", details.TableKey)
	}
	uris, err := i.scratch.List(ctx, details.StagingPrefix)
	if err != nil {
		return fmt.Errorf("listing staged files for job %s: %w", details.TableKey, err)
	}
	if len(uris) == 0 {
		slog.Info("no staged files to load", "job", details.TableKey, "staging", details.StagingPrefix)
		return nil
	}
	if err := i.client.RunLoadJob(ctx, details.WarehouseTable, uris); err != nil {
		return fmt.Errorf("loading staged files for job %s: %w", details.TableKey, err)
	}
	return nil
}
