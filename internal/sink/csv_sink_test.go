package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/dacha-ingest/app/models"
)

func readShard(t *testing.T, dir, shard string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, shard+".csv"))
	if err != nil {
		t.Fatalf("open shard file: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read shard csv: %v", err)
	}
	return records
}

func TestCSVSink_EnsureAppendUpdate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := NewCSVSink(dir, nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	defer s.Close()

	header := []string{"listing_id", "price_uzs"}
	if err := s.EnsureShard(ctx, "raw_listings_2026_08", header); err != nil {
		t.Fatalf("EnsureShard: %v", err)
	}
	// Second ensure must not rewrite the header.
	if err := s.EnsureShard(ctx, "raw_listings_2026_08", header); err != nil {
		t.Fatalf("EnsureShard again: %v", err)
	}

	rows := [][]string{
		{"ID1", "1000000"},
		{"ID2", "2000000"},
	}
	if err := s.Append(ctx, "raw_listings_2026_08", rows); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := readShard(t, dir, "raw_listings_2026_08")
	if len(got) != 3 {
		t.Fatalf("rows in file = %d, want header + 2", len(got))
	}
	if got[0][0] != "listing_id" || got[1][0] != "ID1" || got[2][0] != "ID2" {
		t.Errorf("file contents wrong: %v", got)
	}

	// Update row offset 0 (the first data row, right under the header).
	if err := s.Update(ctx, "raw_listings_2026_08", 0, []string{"ID1", "1500000"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got = readShard(t, dir, "raw_listings_2026_08")
	if got[1][1] != "1500000" {
		t.Errorf("updated row = %v, want new price", got[1])
	}
	if got[2][1] != "2000000" {
		t.Errorf("untouched row changed: %v", got[2])
	}
}

func TestApply_OrderAndRouting(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := NewCSVSink(dir, nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	defer s.Close()

	rec1 := &models.ListingRecord{ListingID: "ID1"}
	rec2 := &models.ListingRecord{ListingID: "ID2"}

	plan := &models.WritePlan{
		Shards: []models.ShardPlan{
			{
				ShardName: "raw_listings_2026_08",
				Appends: []models.PlannedRow{
					{Action: models.ActionInsert, ShardName: "raw_listings_2026_08", RowOffset: 0, Record: rec1},
					{Action: models.ActionInsert, ShardName: "raw_listings_2026_08", RowOffset: 1, Record: rec2},
				},
			},
		},
	}

	if err := Apply(ctx, s, plan); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := readShard(t, dir, "raw_listings_2026_08")
	if len(got) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(got))
	}
	if got[0][1] != "listing_id" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][1] != "ID1" || got[2][1] != "ID2" {
		t.Errorf("append order broken: %v", got)
	}
}

func TestColumnLabel(t *testing.T) {
	testCases := []struct {
		n        int
		expected string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}

	for _, tc := range testCases {
		if got := ColumnLabel(tc.n); got != tc.expected {
			t.Errorf("ColumnLabel(%d) = %q, want %q", tc.n, got, tc.expected)
		}
	}
}
