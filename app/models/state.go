package models

import (
	"fmt"
	"time"
)

// MergeAction is the per-record decision of the merge engine.
type MergeAction string

const (
	ActionInsert    MergeAction = "insert"
	ActionUpdate    MergeAction = "update"
	ActionUnchanged MergeAction = "unchanged"
)

// IndexEntry is the last-known snapshot of a listing's significant fields,
// plus the physical location of its previously written row.
type IndexEntry struct {
	PriceUZS        *int64    `json:"price_uzs"`
	SellerPhoneHash string    `json:"seller_phone_hash"`
	ViewsCount      *int      `json:"views_count"`
	ShardName       string    `json:"shard_name"`
	RowOffset       int       `json:"row_offset"`
	LastScrapeTS    time.Time `json:"last_scrape_ts"`
}

// IdentityIndex maps listing_id to its indexed snapshot. It is the sole
// source of dedup truth and must survive process restarts.
type IdentityIndex map[string]IndexEntry

// Clone deep-copies the index so a merge run never mutates persisted state
// it does not own yet.
func (idx IdentityIndex) Clone() IdentityIndex {
	out := make(IdentityIndex, len(idx))
	for id, e := range idx {
		out[id] = e
	}
	return out
}

// ShardState tracks the fill level of one capacity-bounded output partition.
type ShardState struct {
	Name     string `json:"name"`
	RowCount int    `json:"row_count"`
	Capacity int    `json:"capacity"`
}

// Full reports whether the shard has no remaining capacity.
func (s ShardState) Full() bool { return s.RowCount >= s.Capacity }

// PersistedState is the durable snapshot carried between runs.
type PersistedState struct {
	Index           IdentityIndex `json:"index"`
	Shards          []ShardState  `json:"shards"`
	LastRunTS       time.Time     `json:"last_run_ts"`
	LastScrapeCount int           `json:"last_scrape_count"`
}

// NewPersistedState returns an empty but structurally valid state.
func NewPersistedState() *PersistedState {
	return &PersistedState{Index: make(IdentityIndex)}
}

// Clone deep-copies the state for a pure pipeline run.
func (p *PersistedState) Clone() *PersistedState {
	out := &PersistedState{
		Index:           p.Index.Clone(),
		Shards:          make([]ShardState, len(p.Shards)),
		LastRunTS:       p.LastRunTS,
		LastScrapeCount: p.LastScrapeCount,
	}
	copy(out.Shards, p.Shards)
	return out
}

// Validate rejects structurally corrupt snapshots before a run is allowed
// to merge against them. A corrupt index risks duplicate inserts, so the
// engine refuses to start instead of repairing.
func (p *PersistedState) Validate() error {
	if p.Index == nil {
		return fmt.Errorf("identity index is nil")
	}
	for id, entry := range p.Index {
		if id == "" {
			return fmt.Errorf("index contains entry with empty listing_id")
		}
		if entry.RowOffset < 0 {
			return fmt.Errorf("listing %s: negative row_offset %d", id, entry.RowOffset)
		}
		if entry.ShardName == "" {
			return fmt.Errorf("listing %s: missing shard_name", id)
		}
	}
	seen := make(map[string]struct{}, len(p.Shards))
	for _, sh := range p.Shards {
		if sh.Name == "" {
			return fmt.Errorf("shard with empty name")
		}
		if _, dup := seen[sh.Name]; dup {
			return fmt.Errorf("duplicate shard name %q", sh.Name)
		}
		seen[sh.Name] = struct{}{}
		if sh.Capacity <= 0 {
			return fmt.Errorf("shard %s: non-positive capacity %d", sh.Name, sh.Capacity)
		}
		if sh.RowCount < 0 || sh.RowCount > sh.Capacity {
			return fmt.Errorf("shard %s: row_count %d out of range [0,%d]", sh.Name, sh.RowCount, sh.Capacity)
		}
	}
	return nil
}

// PlannedRow is one INSERT or UPDATE routed to a physical shard.
type PlannedRow struct {
	Action    MergeAction    `json:"action"`
	ShardName string         `json:"shard_name"`
	RowOffset int            `json:"row_offset"` // append position for inserts, existing row for updates
	Record    *ListingRecord `json:"record"`
}

// MergePlan is the ordered outcome of one merge call, before routing.
// UNCHANGED records are dropped entirely and never appear here.
type MergePlan struct {
	Entries   []PlannedRow
	Inserted  int
	Updated   int
	Unchanged int
}

// ShardPlan groups planned rows for one shard, appends and updates split
// so the writer can treat each list as an atomic unit.
type ShardPlan struct {
	ShardName string
	Appends   []PlannedRow
	Updates   []PlannedRow
}

// WritePlan is the final, shard-grouped output of a pipeline run. Shard
// order follows first use within the batch so replays stay byte-stable.
type WritePlan struct {
	Shards []ShardPlan
}

// FindShard returns the plan for a shard name, or nil.
func (w *WritePlan) FindShard(name string) *ShardPlan {
	for i := range w.Shards {
		if w.Shards[i].ShardName == name {
			return &w.Shards[i]
		}
	}
	return nil
}

// TotalRows counts all planned appends and updates.
func (w *WritePlan) TotalRows() int {
	n := 0
	for _, sp := range w.Shards {
		n += len(sp.Appends) + len(sp.Updates)
	}
	return n
}
