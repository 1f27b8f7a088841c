package export

import (
	"context"

	"codeberg.org/mutker/nvidiamon/internal/metrics"
)

// Exporter publishes derived snapshots to an external consumer. Like
// the metrics collector it is always safe to call; the disabled
// configuration yields a no-op implementation.
type Exporter interface {
	Publish(ctx context.Context, snapshot *metrics.Snapshot) error
	Close() error
}

type noopExporter struct{}

func (*noopExporter) Publish(_ context.Context, _ *metrics.Snapshot) error {
	return nil
}

func (*noopExporter) Close() error {
	return nil
}
