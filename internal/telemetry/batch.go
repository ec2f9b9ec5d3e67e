package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/taskwright/taskwright/internal/types"
)

const batchScopeName = "github.com/taskwright/taskwright/engine"

// RecordBatch counts one finished batch and its item outcomes. No-op when
// telemetry is disabled.
func RecordBatch(ctx context.Context, result *types.BatchExecutionResult) {
	if !Enabled() || result == nil {
		return
	}
	m := Meter(batchScopeName)
	batches, _ := m.Int64Counter("tw.batches",
		metric.WithDescription("Total batches executed"),
	)
	created, _ := m.Int64Counter("tw.items.created",
		metric.WithDescription("Items created across batches"),
	)
	failed, _ := m.Int64Counter("tw.items.failed",
		metric.WithDescription("Item operations that failed"),
	)
	rollbacks, _ := m.Int64Counter("tw.rollbacks",
		metric.WithDescription("Batches rolled back"),
	)

	batches.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("tw.batch.rolled_back", result.RolledBack),
	))
	created.Add(ctx, int64(result.CreatedCount))
	failed.Add(ctx, int64(result.FailedCount))
	if result.RolledBack {
		rollbacks.Add(ctx, 1)
	}
}
