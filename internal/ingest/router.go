package ingest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
)

// DefaultShardCapacity is the row ceiling of one worksheet-like shard.
const DefaultShardCapacity = 50000

// maxNameCollisions bounds the suffix search when a month's shard names
// are already taken; beyond it provisioning fails for the batch.
const maxNameCollisions = 99

// CapacityRouter assigns every planned row to a physical shard. Updates
// always go to the shard that already holds the row; inserts fill the
// current shard and provision the next one exactly at the row that would
// overflow.
type CapacityRouter struct {
	capacity   int
	namePrefix string
	now        func() time.Time
	logger     *zap.Logger
}

// NewCapacityRouter builds a router. capacity <= 0 selects the default;
// now == nil uses the wall clock (tests inject a fixed clock).
func NewCapacityRouter(capacity int, namePrefix string, now func() time.Time, logger *zap.Logger) *CapacityRouter {
	if capacity <= 0 {
		capacity = DefaultShardCapacity
	}
	if namePrefix == "" {
		namePrefix = "raw_listings"
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityRouter{capacity: capacity, namePrefix: namePrefix, now: now, logger: logger}
}

// Route turns a merge plan into a shard-grouped write plan and the updated
// shard states. Shard states are cloned, never mutated in place. The
// returned plan lists shards in first-use order and preserves the plan's
// row order within each shard.
func (cr *CapacityRouter) Route(plan *models.MergePlan, shards []models.ShardState) (*models.WritePlan, []models.ShardState, error) {
	states := make([]models.ShardState, len(shards))
	copy(states, shards)

	wp := &models.WritePlan{}

	for _, row := range plan.Entries {
		switch row.Action {
		case models.ActionUpdate:
			// Updates never move rows between shards.
			sp := cr.shardPlan(wp, row.ShardName)
			sp.Updates = append(sp.Updates, row)

		case models.ActionInsert:
			idx := currentShard(states)
			if idx < 0 {
				name, err := cr.nextShardName(states)
				if err != nil {
					return nil, nil, err
				}
				states = append(states, models.ShardState{Name: name, Capacity: cr.capacity})
				idx = len(states) - 1
				cr.logger.Info("provisioned shard",
					zap.String("shard", name),
					zap.Int("capacity", cr.capacity))
			}
			row.ShardName = states[idx].Name
			row.RowOffset = states[idx].RowCount
			states[idx].RowCount++

			sp := cr.shardPlan(wp, row.ShardName)
			sp.Appends = append(sp.Appends, row)
		}
	}

	return wp, states, nil
}

// currentShard returns the index of the newest shard with remaining
// capacity, or -1 when every shard is full. Only the last shard in
// creation order is ever a candidate.
func currentShard(states []models.ShardState) int {
	if len(states) == 0 {
		return -1
	}
	last := len(states) - 1
	if states[last].Full() {
		return -1
	}
	return last
}

// nextShardName derives the deterministic name for a new shard from the
// current UTC year-month, suffixing on collision. Exhausting the suffix
// space is the fatal provisioning failure of the batch.
func (cr *CapacityRouter) nextShardName(states []models.ShardState) (string, error) {
	base := fmt.Sprintf("%s_%s", cr.namePrefix, cr.now().UTC().Format("2006_01"))
	name := base
	for n := 2; shardExists(states, name); n++ {
		if n > maxNameCollisions {
			return "", fmt.Errorf("%w: no free name after %s", ErrShardProvision, base)
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
	return name, nil
}

func shardExists(states []models.ShardState, name string) bool {
	for _, s := range states {
		if s.Name == name {
			return true
		}
	}
	return false
}

// shardPlan returns the plan bucket for a shard, creating it in first-use
// order.
func (cr *CapacityRouter) shardPlan(wp *models.WritePlan, name string) *models.ShardPlan {
	if sp := wp.FindShard(name); sp != nil {
		return sp
	}
	wp.Shards = append(wp.Shards, models.ShardPlan{ShardName: name})
	return &wp.Shards[len(wp.Shards)-1]
}
