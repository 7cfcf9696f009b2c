package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alfredjeanlab/canvas/internal/model"
)

type Config struct {
	DatabaseURL string // CANVAS_DATABASE_URL (optional, empty = in-memory store)
	HTTPAddr    string // CANVAS_HTTP_ADDR (default ":8080")
	NATSURL     string // CANVAS_NATS_URL (optional, empty = no events)
	AuthToken   string // CANVAS_AUTH_TOKEN (optional, empty = auth disabled)

	CatalogDir  string // CANVAS_CATALOG_DIR (optional, extra dataset files)
	GridColumns int    // CANVAS_GRID_COLUMNS (default 12)
	HooksFile   string // CANVAS_HOOKS_FILE (optional, TOML event hooks; needs NATS)

	// Sync settings
	SyncInterval   time.Duration // CANVAS_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // CANVAS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // CANVAS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // CANVAS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // CANVAS_SYNC_S3_KEY (default "canvas/dashboards.jsonl")
	SyncGitRepo    string        // CANVAS_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // CANVAS_SYNC_GIT_FILE (default "dashboards.jsonl")
	SyncGitBranch  string        // CANVAS_SYNC_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("CANVAS_DATABASE_URL"),
		HTTPAddr:       envOrDefault("CANVAS_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("CANVAS_NATS_URL"),
		AuthToken:      os.Getenv("CANVAS_AUTH_TOKEN"),
		CatalogDir:     os.Getenv("CANVAS_CATALOG_DIR"),
		HooksFile:      os.Getenv("CANVAS_HOOKS_FILE"),
		SyncS3Bucket:   os.Getenv("CANVAS_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("CANVAS_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("CANVAS_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("CANVAS_SYNC_S3_KEY", "canvas/dashboards.jsonl"),
		SyncGitRepo:    os.Getenv("CANVAS_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("CANVAS_SYNC_GIT_FILE", "dashboards.jsonl"),
		SyncGitBranch:  envOrDefault("CANVAS_SYNC_GIT_BRANCH", "main"),
	}

	cols, err := strconv.Atoi(envOrDefault("CANVAS_GRID_COLUMNS", strconv.Itoa(model.DefaultColumns)))
	if err != nil {
		return nil, fmt.Errorf("CANVAS_GRID_COLUMNS: %w", err)
	}
	if cols < 1 {
		return nil, fmt.Errorf("CANVAS_GRID_COLUMNS must be positive, got %d", cols)
	}
	c.GridColumns = cols

	intervalStr := envOrDefault("CANVAS_SYNC_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("CANVAS_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
