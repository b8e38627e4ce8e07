package cache

import (
	"context"
	"time"

	"tokosync/backend/internal/importer"
)

// PreviewCache keeps preview results for the window between an operator
// previewing an import file and committing it, keyed by payload checksum.
type PreviewCache interface {
	Get(ctx context.Context, key string) (*importer.PreviewResult, bool, error)
	Set(ctx context.Context, key string, value *importer.PreviewResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopPreviewCache struct{}

func (NoopPreviewCache) Get(_ context.Context, _ string) (*importer.PreviewResult, bool, error) {
	return nil, false, nil
}

func (NoopPreviewCache) Set(_ context.Context, _ string, _ *importer.PreviewResult, _ time.Duration) error {
	return nil
}

func (NoopPreviewCache) Delete(_ context.Context, _ string) error {
	return nil
}
