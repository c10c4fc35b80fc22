package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HeuristicThreshold != 0.5 {
		t.Errorf("expected heuristic threshold 0.5, got %v", cfg.HeuristicThreshold)
	}
	if cfg.GlobalThreshold != 0.6 {
		t.Errorf("expected global threshold 0.6, got %v", cfg.GlobalThreshold)
	}
	if cfg.BookmarkSimilarity != 0.8 {
		t.Errorf("expected bookmark similarity 0.8, got %v", cfg.BookmarkSimilarity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HEURISTIC_THRESHOLD", "0.65")
	t.Setenv("WORKER_COUNT", "2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HeuristicThreshold != 0.65 {
		t.Errorf("expected 0.65, got %v", cfg.HeuristicThreshold)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.WorkerCount)
	}
}

func TestLoad_YAMLFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docverge.yaml")
	data := "heuristic_threshold: 0.55\nglobal_threshold: 0.7\nworker_count: 3\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HEURISTIC_THRESHOLD", "0.9")
	t.Setenv("DOCVERGE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HeuristicThreshold != 0.55 {
		t.Errorf("file should win over env: got %v", cfg.HeuristicThreshold)
	}
	if cfg.GlobalThreshold != 0.7 {
		t.Errorf("expected 0.7, got %v", cfg.GlobalThreshold)
	}
	if cfg.WorkerCount != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.WorkerCount)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("DOCVERGE_CONFIG", "/nonexistent/docverge.yaml")
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := func() Config {
		return Config{
			HeuristicThreshold: 0.5,
			GlobalThreshold:    0.6,
			BookmarkSimilarity: 0.8,
			LowConfidenceBand:  0.75,
			WeightName:         1.0 / 3,
			WeightForm:         1.0 / 3,
			WeightProximity:    1.0 / 3,
		}
	}

	cfg := base()
	cfg.GlobalThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for threshold > 1")
	}

	cfg = base()
	cfg.BookmarkSimilarity = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative threshold")
	}

	cfg = base()
	cfg.WeightForm = 0.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1")
	}

	if err := base().Validate(); err != nil {
		t.Errorf("base config should validate: %v", err)
	}
}
