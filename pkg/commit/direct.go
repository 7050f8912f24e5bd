package commit

import (
	"context"
	"fmt"

	"github.com/datalinkhq/bqbridge/pkg/jobstore"
	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// DirectCommitter finalizes jobs written through the warehouse's pending
// write streams: commit makes the streams' rows visible atomically, abort
// discards them.
type DirectCommitter struct {
	client warehouse.StreamCommitter
}

// NewDirectCommitter creates the direct write strategy.
func NewDirectCommitter(client warehouse.StreamCommitter) *DirectCommitter {
	return &DirectCommitter{client: client}
}

// CommitJob commits the job's pending write streams.
func (d *DirectCommitter) CommitJob(ctx context.Context, details *jobstore.Details) error {
	if len(details.StreamNames) == 0 {
		return nil
	}
	if err := d.client.CommitWriteStreams(ctx, details.WarehouseTable, details.StreamNames); err != nil {
		return fmt.Errorf("committing write streams for job %s: %w", details.TableKey, err)
	}
	return nil
}

// AbortJob discards the job's pending write streams.
func (d *DirectCommitter) AbortJob(ctx context.Context, details *jobstore.Details) error {
	if len(details.StreamNames) == 0 {
		return nil
	}
	if err := d.client.CancelWriteStreams(ctx, details.WarehouseTable, details.StreamNames); err != nil {
		return fmt.Errorf("canceling write streams for job %s: %w", details.TableKey, err)
	}
	return nil
}
