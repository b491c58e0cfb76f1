package ingest

import (
	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
)

// MergeEngine decides insert / update / unchanged for a batch of freshly
// built records against the persisted identity index. Merge never mutates
// the index it is given; it returns an updated clone.
type MergeEngine struct {
	logger *zap.Logger
}

// NewMergeEngine builds a merge engine.
func NewMergeEngine(logger *zap.Logger) *MergeEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeEngine{logger: logger}
}

// Merge produces the merge plan and the updated index.
//
// In-batch duplicates of the same listing_id are resolved before merging:
// the later occurrence in scan order wins, since it reflects the freshest
// extraction. Plan order follows the surviving batch order, so replays are
// byte-stable. UNCHANGED records emit no plan entry at all.
//
// A record is UNCHANGED only when price_uzs, seller_phone_hash and
// views_count all equal the indexed snapshot; any difference is an UPDATE
// carrying the previously written row location.
func (me *MergeEngine) Merge(batch []*models.ListingRecord, index models.IdentityIndex) (*models.MergePlan, models.IdentityIndex) {
	deduped := dedupeBatch(batch)
	if n := len(batch) - len(deduped); n > 0 {
		me.logger.Debug("in-batch duplicates discarded", zap.Int("count", n))
	}

	updated := index.Clone()
	plan := &models.MergePlan{}

	for _, rec := range deduped {
		prev, known := updated[rec.ListingID]
		switch {
		case !known:
			plan.Entries = append(plan.Entries, models.PlannedRow{
				Action: models.ActionInsert,
				Record: rec,
			})
			plan.Inserted++
			updated[rec.ListingID] = snapshotOf(rec, "", -1)
		case significantFieldsEqual(rec, prev):
			plan.Unchanged++
			entry := prev
			entry.LastScrapeTS = rec.ScrapeTS
			updated[rec.ListingID] = entry
		default:
			plan.Entries = append(plan.Entries, models.PlannedRow{
				Action:    models.ActionUpdate,
				ShardName: prev.ShardName,
				RowOffset: prev.RowOffset,
				Record:    rec,
			})
			plan.Updated++
			updated[rec.ListingID] = snapshotOf(rec, prev.ShardName, prev.RowOffset)
		}
	}

	me.logger.Info("merge decided",
		zap.Int("batch", len(deduped)),
		zap.Int("inserts", plan.Inserted),
		zap.Int("updates", plan.Updated),
		zap.Int("unchanged", plan.Unchanged))

	return plan, updated
}

// dedupeBatch keeps, for each listing_id, only the later occurrence in
// scan order. Surviving records keep their batch positions.
func dedupeBatch(batch []*models.ListingRecord) []*models.ListingRecord {
	last := make(map[string]int, len(batch))
	for i, rec := range batch {
		last[rec.ListingID] = i
	}
	out := make([]*models.ListingRecord, 0, len(last))
	for i, rec := range batch {
		if last[rec.ListingID] == i {
			out = append(out, rec)
		}
	}
	return out
}

// significantFieldsEqual compares the update-worthiness triple.
func significantFieldsEqual(rec *models.ListingRecord, prev models.IndexEntry) bool {
	return int64PtrEqual(rec.PriceUZS, prev.PriceUZS) &&
		rec.SellerPhoneHash == prev.SellerPhoneHash &&
		intPtrEqual(rec.ViewsCount, prev.ViewsCount)
}

func snapshotOf(rec *models.ListingRecord, shard string, offset int) models.IndexEntry {
	return models.IndexEntry{
		PriceUZS:        rec.PriceUZS,
		SellerPhoneHash: rec.SellerPhoneHash,
		ViewsCount:      rec.ViewsCount,
		ShardName:       shard,
		RowOffset:       offset,
		LastScrapeTS:    rec.ScrapeTS,
	}
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
