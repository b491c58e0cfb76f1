package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dacha-ingest/app/models"
)

func TestFileStateService_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStateService(path, nil)
	ctx := context.Background()

	price := int64(1200000)
	views := 245
	state := models.NewPersistedState()
	state.Index["ID12345"] = models.IndexEntry{
		PriceUZS:        &price,
		SellerPhoneHash: "abc123",
		ViewsCount:      &views,
		ShardName:       "raw_listings_2026_08",
		RowOffset:       7,
		LastScrapeTS:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	state.Shards = []models.ShardState{
		{Name: "raw_listings_2026_08", RowCount: 8, Capacity: 50000},
	}
	state.LastRunTS = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	state.LastScrapeCount = 1

	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, ok := loaded.Index["ID12345"]
	if !ok {
		t.Fatal("index entry lost in roundtrip")
	}
	if *entry.PriceUZS != price || entry.ShardName != "raw_listings_2026_08" || entry.RowOffset != 7 {
		t.Errorf("entry = %+v", entry)
	}
	if len(loaded.Shards) != 1 || loaded.Shards[0].RowCount != 8 {
		t.Errorf("shards = %+v", loaded.Shards)
	}
	if loaded.LastScrapeCount != 1 {
		t.Errorf("LastScrapeCount = %d", loaded.LastScrapeCount)
	}
}

func TestFileStateService_MissingFileStartsFresh(t *testing.T) {
	store := NewFileStateService(filepath.Join(t.TempDir(), "absent.json"), nil)

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Index) != 0 || len(state.Shards) != 0 {
		t.Errorf("fresh state not empty: %+v", state)
	}
}

func TestFileStateService_CorruptFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStateService(path, nil).Load(context.Background())
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
}

func TestFileStateService_StructurallyInvalidRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	// Well-formed JSON with a negative row offset.
	bad := `{"index":{"x":{"price_uzs":null,"seller_phone_hash":"","views_count":null,"shard_name":"s","row_offset":-5,"last_scrape_ts":"2026-08-30T12:00:00Z"}},"shards":[]}`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStateService(path, nil).Load(context.Background())
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
}

func TestFileStateService_SaveRejectsInvalidState(t *testing.T) {
	store := NewFileStateService(filepath.Join(t.TempDir(), "state.json"), nil)

	state := models.NewPersistedState()
	state.Index[""] = models.IndexEntry{}
	if err := store.Save(context.Background(), state); err == nil {
		t.Fatal("Save must refuse an invalid state")
	}
}
