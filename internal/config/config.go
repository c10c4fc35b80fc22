package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Matching thresholds and Pass-2 weights
	HeuristicThreshold float64 `yaml:"heuristic_threshold"`
	GlobalThreshold    float64 `yaml:"global_threshold"`
	BookmarkSimilarity float64 `yaml:"bookmark_similarity_threshold"`
	WeightName         float64 `yaml:"weight_name"`
	WeightForm         float64 `yaml:"weight_form"`
	WeightProximity    float64 `yaml:"weight_proximity"`
	LowConfidenceBand  float64 `yaml:"low_confidence_band"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`
	ScoreWorkers int `yaml:"score_workers"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Run state
	RunTTL time.Duration `yaml:"run_ttl"`

	// Behavior switches
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
	PartialCommit        bool `yaml:"partial_commit"`
}

// Load reads configuration from environment variables, then overlays
// the YAML file named by DOCVERGE_CONFIG when one is set. The file
// wins over the environment for the keys it provides.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCVERGE_API_KEY"),

		HeuristicThreshold: envFloat("HEURISTIC_THRESHOLD", 0.5),
		GlobalThreshold:    envFloat("GLOBAL_THRESHOLD", 0.6),
		BookmarkSimilarity: envFloat("BOOKMARK_SIMILARITY_THRESHOLD", 0.8),
		WeightName:         envFloat("MATCH_WEIGHT_NAME", 1.0/3),
		WeightForm:         envFloat("MATCH_WEIGHT_FORM", 1.0/3),
		WeightProximity:    envFloat("MATCH_WEIGHT_PROXIMITY", 1.0/3),
		LowConfidenceBand:  envFloat("LOW_CONFIDENCE_BAND", 0.75),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		ScoreWorkers: envInt("SCORE_WORKERS", 8),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		RunTTL: envDuration("RUN_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
		PartialCommit:        envBool("PARTIAL_COMMIT", false),
	}

	if path := os.Getenv("DOCVERGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	return cfg, nil
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"HEURISTIC_THRESHOLD":           c.HeuristicThreshold,
		"GLOBAL_THRESHOLD":              c.GlobalThreshold,
		"BOOKMARK_SIMILARITY_THRESHOLD": c.BookmarkSimilarity,
		"LOW_CONFIDENCE_BAND":           c.LowConfidenceBand,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], have %v", name, v)
		}
	}
	sum := c.WeightName + c.WeightForm + c.WeightProximity
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("match weights must sum to 1, have %v", sum)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
