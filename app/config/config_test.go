package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	t.Setenv("CI", "")
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if C.SimilarityThreshold != 0.85 || C.ShardCapacity != 50000 || !C.FilterRelevance {
		t.Errorf("defaults not kept: %+v", C)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	body := "similarity_threshold: 0.9\nshard_capacity: 1000\nshard_prefix: test_shards\ntimezone: UTC\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if C.SimilarityThreshold != 0.9 || C.ShardCapacity != 1000 || C.ShardPrefix != "test_shards" {
		t.Errorf("file values not applied: %+v", C)
	}
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("similarity_threshold: 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Load(path); err == nil {
		t.Fatal("Load must reject a threshold above 1")
	}
}

func TestLoad_CIDisablesFilter(t *testing.T) {
	t.Setenv("CI", "1")
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if C.FilterRelevance {
		t.Error("CI=1 must disable the relevance filter")
	}
}
