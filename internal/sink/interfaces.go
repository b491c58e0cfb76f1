package sink

import (
	"context"

	"github.com/dacha-ingest/app/models"
)

// RowSink is any row-capacity-limited output the write plan can be applied
// to: a Google Sheets worksheet per shard, a CSV file per shard.
type RowSink interface {
	// EnsureShard makes the physical shard exist with the header row.
	// Idempotent.
	EnsureShard(ctx context.Context, shard string, header []string) error

	// Append adds rows to the end of a shard, in order, as one unit.
	Append(ctx context.Context, shard string, rows [][]string) error

	// Update overwrites the row at a zero-based data offset (the header
	// row is not counted).
	Update(ctx context.Context, shard string, offset int, row []string) error

	// Close flushes and releases the sink.
	Close() error
}

// Apply writes a whole plan to a sink, shard by shard: shards are ensured,
// appends go first as one atomic unit, then in-place updates.
func Apply(ctx context.Context, s RowSink, plan *models.WritePlan) error {
	header := models.Header()
	for _, sp := range plan.Shards {
		if err := s.EnsureShard(ctx, sp.ShardName, header); err != nil {
			return err
		}
		if len(sp.Appends) > 0 {
			rows := make([][]string, len(sp.Appends))
			for i, pr := range sp.Appends {
				rows[i] = pr.Record.Row()
			}
			if err := s.Append(ctx, sp.ShardName, rows); err != nil {
				return err
			}
		}
		for _, pr := range sp.Updates {
			if err := s.Update(ctx, sp.ShardName, pr.RowOffset, pr.Record.Row()); err != nil {
				return err
			}
		}
	}
	return nil
}
