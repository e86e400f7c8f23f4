// Package storage selects the artifact store backend for the pipeline.
// The local filesystem is the default; GCS and an in-memory store are
// available for cloud runs and dry runs.
package storage

import (
	"context"
	"fmt"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/leasecar-etl/internal/config"
	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
	"github.com/JakeFAU/leasecar-etl/internal/storage/gcs"
	"github.com/JakeFAU/leasecar-etl/internal/storage/local"
	"github.com/JakeFAU/leasecar-etl/internal/storage/memory"
)

// Backend couples an ArtifactStore with the resources it holds open.
type Backend struct {
	pipeline.ArtifactStore
	Name    string
	closeFn func() error
}

// Close releases the backend's client, if any.
func (b *Backend) Close() error {
	if b == nil || b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", "local":
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		logger.Info("using local artifact store", zap.String("base_dir", cfg.BaseDir))
		return &Backend{ArtifactStore: store, Name: "local"}, nil
	case "memory":
		logger.Info("using in-memory artifact store; artifacts are discarded on exit")
		return &Backend{ArtifactStore: memory.NewBlobStore(), Name: "memory"}, nil
	case "gcs":
		return openGCS(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func openGCS(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Backend, error) {
	client, err := gcsclient.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	// Fail fast on a missing bucket or missing permissions.
	if _, err := client.Bucket(cfg.GCSBucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close gcs client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", cfg.GCSBucket, err)
	}
	store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("using gcs artifact store", zap.String("bucket", cfg.GCSBucket), zap.String("prefix", cfg.Prefix))
	return &Backend{ArtifactStore: store, Name: "gcs", closeFn: client.Close}, nil
}
