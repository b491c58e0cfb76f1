package ingest

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dacha-ingest/app/models"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

func insertRows(n int) *models.MergePlan {
	plan := &models.MergePlan{Inserted: n}
	for i := 0; i < n; i++ {
		plan.Entries = append(plan.Entries, models.PlannedRow{
			Action: models.ActionInsert,
			Record: &models.ListingRecord{ListingID: fmt.Sprintf("id-%d", i)},
		})
	}
	return plan
}

// TestRoute_SplitAtCapacity: with 3 of 5 rows used and 4 inserts, exactly
// two land on the current shard and the other two provision the next one.
func TestRoute_SplitAtCapacity(t *testing.T) {
	cr := NewCapacityRouter(5, "raw_listings", fixedClock, nil)
	shards := []models.ShardState{
		{Name: "raw_listings_2026_07", RowCount: 3, Capacity: 5},
	}

	wp, next, err := cr.Route(insertRows(4), shards)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if len(wp.Shards) != 2 {
		t.Fatalf("shard plans = %d, want 2", len(wp.Shards))
	}
	first, second := wp.Shards[0], wp.Shards[1]
	if first.ShardName != "raw_listings_2026_07" || len(first.Appends) != 2 {
		t.Errorf("first shard %s got %d appends, want 2 on the current shard", first.ShardName, len(first.Appends))
	}
	if second.ShardName != "raw_listings_2026_08" || len(second.Appends) != 2 {
		t.Errorf("second shard %s got %d appends, want 2 on the provisioned shard", second.ShardName, len(second.Appends))
	}

	// Offsets continue row counts: 3,4 on the old shard, 0,1 on the new.
	if first.Appends[0].RowOffset != 3 || first.Appends[1].RowOffset != 4 {
		t.Errorf("old shard offsets = %d,%d, want 3,4", first.Appends[0].RowOffset, first.Appends[1].RowOffset)
	}
	if second.Appends[0].RowOffset != 0 || second.Appends[1].RowOffset != 1 {
		t.Errorf("new shard offsets = %d,%d, want 0,1", second.Appends[0].RowOffset, second.Appends[1].RowOffset)
	}

	if len(next) != 2 || next[0].RowCount != 5 || next[1].RowCount != 2 {
		t.Errorf("next shard states = %+v", next)
	}
	if next[1].Capacity != 5 {
		t.Errorf("provisioned capacity = %d, want the router's 5", next[1].Capacity)
	}
}

func TestRoute_FirstShardProvisionedFromEmpty(t *testing.T) {
	cr := NewCapacityRouter(10, "raw_listings", fixedClock, nil)

	wp, next, err := cr.Route(insertRows(1), nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(next) != 1 || next[0].Name != "raw_listings_2026_08" {
		t.Fatalf("shards = %+v, want one named for the current month", next)
	}
	if wp.Shards[0].Appends[0].RowOffset != 0 {
		t.Error("first row of a fresh shard must land at offset 0")
	}
}

// TestRoute_UpdatesStayPut: updates go to the recorded shard even when it
// is full, and never consume capacity.
func TestRoute_UpdatesStayPut(t *testing.T) {
	cr := NewCapacityRouter(5, "raw_listings", fixedClock, nil)
	shards := []models.ShardState{
		{Name: "raw_listings_2026_06", RowCount: 5, Capacity: 5},
		{Name: "raw_listings_2026_07", RowCount: 1, Capacity: 5},
	}

	plan := &models.MergePlan{
		Entries: []models.PlannedRow{
			{
				Action:    models.ActionUpdate,
				ShardName: "raw_listings_2026_06",
				RowOffset: 2,
				Record:    &models.ListingRecord{ListingID: "u1"},
			},
		},
		Updated: 1,
	}

	wp, next, err := cr.Route(plan, shards)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	sp := wp.FindShard("raw_listings_2026_06")
	if sp == nil || len(sp.Updates) != 1 || sp.Updates[0].RowOffset != 2 {
		t.Fatalf("update not routed to its recorded row: %+v", wp.Shards)
	}
	if next[0].RowCount != 5 || next[1].RowCount != 1 {
		t.Error("updates must not change row counts")
	}
}

// TestRoute_NameCollisionSuffix: a same-month provision while the base name
// exists gets the _2 suffix.
func TestRoute_NameCollisionSuffix(t *testing.T) {
	cr := NewCapacityRouter(2, "raw_listings", fixedClock, nil)
	shards := []models.ShardState{
		{Name: "raw_listings_2026_08", RowCount: 2, Capacity: 2},
	}

	_, next, err := cr.Route(insertRows(1), shards)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if next[1].Name != "raw_listings_2026_08_2" {
		t.Errorf("collision shard = %q, want raw_listings_2026_08_2", next[1].Name)
	}
}

func TestRoute_ProvisionExhausted(t *testing.T) {
	cr := NewCapacityRouter(1, "raw_listings", fixedClock, nil)

	shards := []models.ShardState{{Name: "raw_listings_2026_08", RowCount: 1, Capacity: 1}}
	for n := 2; n <= 99; n++ {
		shards = append(shards, models.ShardState{
			Name:     fmt.Sprintf("raw_listings_2026_08_%d", n),
			RowCount: 1,
			Capacity: 1,
		})
	}

	_, _, err := cr.Route(insertRows(1), shards)
	if !errors.Is(err, ErrShardProvision) {
		t.Fatalf("err = %v, want ErrShardProvision", err)
	}
}

// TestRoute_InputShardsUntouched: the caller's slice must survive routing.
func TestRoute_InputShardsUntouched(t *testing.T) {
	cr := NewCapacityRouter(5, "raw_listings", fixedClock, nil)
	shards := []models.ShardState{{Name: "raw_listings_2026_07", RowCount: 3, Capacity: 5}}

	_, _, err := cr.Route(insertRows(1), shards)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if shards[0].RowCount != 3 {
		t.Error("input shard state was mutated")
	}
}
