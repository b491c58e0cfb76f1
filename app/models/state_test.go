package models

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	price := int64(100)
	good := IndexEntry{
		PriceUZS:     &price,
		ShardName:    "raw_listings_2026_08",
		RowOffset:    0,
		LastScrapeTS: time.Now(),
	}

	testCases := []struct {
		name    string
		mutate  func(*PersistedState)
		wantErr bool
	}{
		{
			name:   "Valid",
			mutate: func(p *PersistedState) {},
		},
		{
			name:    "Empty_ListingID",
			mutate:  func(p *PersistedState) { p.Index[""] = good },
			wantErr: true,
		},
		{
			name: "Negative_Offset",
			mutate: func(p *PersistedState) {
				bad := good
				bad.RowOffset = -1
				p.Index["x"] = bad
			},
			wantErr: true,
		},
		{
			name: "Entry_Without_Shard",
			mutate: func(p *PersistedState) {
				bad := good
				bad.ShardName = ""
				p.Index["x"] = bad
			},
			wantErr: true,
		},
		{
			name: "Duplicate_Shard_Name",
			mutate: func(p *PersistedState) {
				p.Shards = append(p.Shards, ShardState{Name: "raw_listings_2026_08", Capacity: 10})
			},
			wantErr: true,
		},
		{
			name: "RowCount_Over_Capacity",
			mutate: func(p *PersistedState) {
				p.Shards[0].RowCount = 11
			},
			wantErr: true,
		},
		{
			name: "Zero_Capacity",
			mutate: func(p *PersistedState) {
				p.Shards[0].Capacity = 0
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state := NewPersistedState()
			state.Index["ok"] = good
			state.Shards = []ShardState{{Name: "raw_listings_2026_08", RowCount: 5, Capacity: 10}}
			tc.mutate(state)

			err := state.Validate()
			if tc.wantErr && err == nil {
				t.Error("Validate accepted a corrupt state")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate rejected a valid state: %v", err)
			}
		})
	}
}

func TestClone_Independent(t *testing.T) {
	price := int64(100)
	state := NewPersistedState()
	state.Index["a"] = IndexEntry{PriceUZS: &price, ShardName: "s", RowOffset: 0}
	state.Shards = []ShardState{{Name: "s", RowCount: 1, Capacity: 10}}

	clone := state.Clone()
	clone.Index["b"] = IndexEntry{ShardName: "s", RowOffset: 1}
	clone.Shards[0].RowCount = 5

	if len(state.Index) != 1 {
		t.Error("clone shares the index map")
	}
	if state.Shards[0].RowCount != 1 {
		t.Error("clone shares the shard slice")
	}
}

func TestFlagBlobs(t *testing.T) {
	rec := &ListingRecord{
		Flags: AttributeFlags{
			"has_pool":      true,
			"has_wifi":      true,
			"has_billiards": false,
			"families_only": true,
		},
	}

	if got := rec.AmenitiesBlob(); got != "has_pool|has_wifi" {
		t.Errorf("AmenitiesBlob = %q", got)
	}
	if got := rec.RulesBlob(); got != "families_only" {
		t.Errorf("RulesBlob = %q", got)
	}

	empty := &ListingRecord{}
	if empty.AmenitiesBlob() != "" || empty.RulesBlob() != "" {
		t.Error("no flags must produce empty blobs")
	}
}

func TestRow_MatchesHeader(t *testing.T) {
	rec := &ListingRecord{ListingID: "ID1"}
	if got, want := len(rec.Row()), len(Header()); got != want {
		t.Fatalf("row has %d columns, header %d", got, want)
	}
}
