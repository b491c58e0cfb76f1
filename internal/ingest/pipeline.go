package ingest

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
)

// Pipeline orchestrates one scrape batch end to end: build records, merge
// against the identity index, route every insert/update to a shard. The
// transformation is pure with respect to its inputs: the same batch and
// the same persisted state always yield the same write plan.
type Pipeline struct {
	builder *RecordBuilder
	merger  *MergeEngine
	router  *CapacityRouter
	logger  *zap.Logger
	now     func() time.Time

	// FilterRelevance drops ads failing the dacha keyword test before the
	// merge. CI runs scrape a pre-filtered category and disable it.
	FilterRelevance bool
}

// NewPipeline wires the stages together. now == nil uses the wall clock.
func NewPipeline(builder *RecordBuilder, merger *MergeEngine, router *CapacityRouter, now func() time.Time, logger *zap.Logger) *Pipeline {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		builder:         builder,
		merger:          merger,
		router:          router,
		logger:          logger,
		now:             now,
		FilterRelevance: true,
	}
}

// ProcessBatch transforms raw ads plus the prior persisted state into a
// write plan and the next state. Malformed records are skipped and the
// batch continues; routing failure aborts the whole batch with the input
// state untouched, so the entire batch can be retried next run.
func (p *Pipeline) ProcessBatch(raws []models.RawAd, state *models.PersistedState) (*models.WritePlan, *models.PersistedState, error) {
	var (
		records        []*models.ListingRecord
		malformed      int
		skippedKeyword int
	)

	for _, raw := range raws {
		if p.FilterRelevance && !p.builder.Relevant(raw) {
			skippedKeyword++
			continue
		}
		rec, err := p.builder.Build(raw)
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				malformed++
				p.logger.Warn("skipping malformed record", zap.Error(err), zap.String("url", raw.URL))
				continue
			}
			return nil, nil, err
		}
		records = append(records, rec)
	}

	plan, updatedIndex := p.merger.Merge(records, state.Index)

	writePlan, shards, err := p.router.Route(plan, state.Shards)
	if err != nil {
		return nil, nil, err
	}

	// Inserts only learn their physical location during routing; patch the
	// index entries so the next run's updates can address their rows.
	for _, sp := range writePlan.Shards {
		for _, row := range sp.Appends {
			entry := updatedIndex[row.Record.ListingID]
			entry.ShardName = row.ShardName
			entry.RowOffset = row.RowOffset
			updatedIndex[row.Record.ListingID] = entry
		}
	}

	next := &models.PersistedState{
		Index:           updatedIndex,
		Shards:          shards,
		LastRunTS:       p.now(),
		LastScrapeCount: len(records),
	}

	p.logger.Info("batch processed",
		zap.Int("found", len(raws)),
		zap.Int("parsed_ok", len(records)),
		zap.Int("malformed", malformed),
		zap.Int("skipped_keyword", skippedKeyword),
		zap.Int("inserts", plan.Inserted),
		zap.Int("updates", plan.Updated),
		zap.Int("unchanged", plan.Unchanged),
		zap.Int("shards", len(shards)))

	return writePlan, next, nil
}
