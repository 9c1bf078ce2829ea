package persistence

import (
	"context"
	"fmt"

	"github.com/neogan74/savekit/internal/logger"
)

// NewEngine creates a persistence engine based on configuration
func NewEngine(ctx context.Context, cfg Config, log logger.Logger) (Engine, error) {
	switch cfg.Type {
	case "", "memory":
		log.Info("Using in-memory remote slot")
		return NewMemoryEngine(), nil
	case "badger":
		log.Info("Using BadgerDB remote slot",
			logger.String("data_dir", cfg.DataDir),
			logger.Bool("sync_writes", cfg.SyncWrites))
		return NewBadgerEngine(cfg.DataDir, cfg.SyncWrites, log)
	case "gcs":
		log.Info("Using Google Cloud Storage remote slot",
			logger.String("bucket", cfg.Bucket),
			logger.String("prefix", cfg.Prefix))
		return NewGCSEngine(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile, log)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
