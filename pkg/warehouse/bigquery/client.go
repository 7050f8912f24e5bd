// Package bigquery implements the warehouse client against BigQuery using
// the official Google Cloud SDK.
package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	storage "cloud.google.com/go/bigquery/storage/apiv1"
	storagepb "cloud.google.com/go/bigquery/storage/apiv1/storagepb"
	"cloud.google.com/go/bigquery/storage/managedwriter"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/datalinkhq/bqbridge/pkg/warehouse"
)

// Client implements warehouse.Client, warehouse.StreamCommitter, and
// warehouse.LoadRunner against BigQuery.
type Client struct {
	bq  *bigquery.Client
	mw  *managedwriter.Client
	raw *storage.BigQueryWriteClient
}

// New creates a BigQuery-backed warehouse client.
func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*Client, error) {
	bq, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	mw, err := managedwriter.NewClient(ctx, projectID, opts...)
	if err != nil {
		_ = bq.Close()
		return nil, fmt.Errorf("creating storage write client: %w", err)
	}
	raw, err := storage.NewBigQueryWriteClient(ctx, opts...)
	if err != nil {
		_ = mw.Close()
		_ = bq.Close()
		return nil, fmt.Errorf("creating storage write client: %w", err)
	}
	return &Client{bq: bq, mw: mw, raw: raw}, nil
}

// Query runs sql and returns every result row with its values rendered as
// strings.
func (c *Client) Query(ctx context.Context, sql string) ([][]string, error) {
	it, err := c.bq.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("running warehouse query: %w", err)
	}

	var rows [][]string
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading warehouse query results: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// TableMetadata fetches table metadata, including the time-partitioning
// descriptor when the table has one.
func (c *Client) TableMetadata(ctx context.Context, id warehouse.TableID) (*warehouse.TableMetadata, error) {
	md, err := c.bq.DatasetInProject(id.Project, id.Dataset).Table(id.Table).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s: %w", id, err)
	}

	out := &warehouse.TableMetadata{ID: id}
	if md.TimePartitioning != nil {
		out.TimePartitioning = &warehouse.TimePartitioning{
			Type:  warehouse.PartitioningType(md.TimePartitioning.Type),
			Field: md.TimePartitioning.Field,
		}
	}
	return out, nil
}

// CommitWriteStreams atomically commits pending write streams into the table.
func (c *Client) CommitWriteStreams(ctx context.Context, id warehouse.TableID, streams []string) error {
	if len(streams) == 0 {
		return nil
	}
	resp, err := c.mw.BatchCommitWriteStreams(ctx, &storagepb.BatchCommitWriteStreamsRequest{
		Parent:       managedwriter.TableParentFromParts(id.Project, id.Dataset, id.Table),
		WriteStreams: streams,
	})
	if err != nil {
		return fmt.Errorf("committing write streams for %s: %w", id, err)
	}
	if errs := resp.GetStreamErrors(); len(errs) > 0 {
		return fmt.Errorf("committing write streams for %s: %s", id, errs[0].GetErrorMessage())
	}
	return nil
}

// CancelWriteStreams finalizes pending streams without committing them,
// discarding their buffered rows.
func (c *Client) CancelWriteStreams(ctx context.Context, id warehouse.TableID, streams []string) error {
	for _, stream := range streams {
		_, err := c.raw.FinalizeWriteStream(ctx, &storagepb.FinalizeWriteStreamRequest{Name: stream})
		if err != nil {
			return fmt.Errorf("finalizing write stream %s: %w", stream, err)
		}
	}
	return nil
}

// RunLoadJob loads the staged Avro objects into the table and waits for the
// load to finish.
func (c *Client) RunLoadJob(ctx context.Context, id warehouse.TableID, sourceURIs []string) error {
	ref := bigquery.NewGCSReference(sourceURIs...)
	ref.SourceFormat = bigquery.Avro

	loader := c.bq.DatasetInProject(id.Project, id.Dataset).Table(id.Table).LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteAppend

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("starting load job for %s: %w", id, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for load job for %s: %w", id, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job for %s failed: %w", id, err)
	}
	return nil
}

// Close releases both underlying clients.
func (c *Client) Close() error {
	rawErr := c.raw.Close()
	mwErr := c.mw.Close()
	bqErr := c.bq.Close()
	if rawErr != nil {
		return rawErr
	}
	if mwErr != nil {
		return mwErr
	}
	return bqErr
}
