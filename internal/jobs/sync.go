// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/koski/dealsearch/internal/log"
	"github.com/koski/dealsearch/internal/metrics"
	"github.com/koski/dealsearch/internal/store"
	"github.com/koski/dealsearch/internal/telemetry"
)

// Sync performs the complete sync cycle: load products from the source,
// ensure the indexes exist, then write the documents to the engine.
func Sync(ctx context.Context, deps Deps, trigger string) (*Status, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}

	logger := xglog.WithComponentFromContext(ctx, "jobs")
	source := deps.Source.Name()

	ctx, span := telemetry.Tracer("jobs").Start(ctx, "dealsearch.sync",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	started := deps.now()
	logger.Info().
		Str("event", "sync.start").
		Str("source", source).
		Str("trigger", trigger).
		Bool("replace", deps.Replace).
		Msg("starting catalog sync")

	products, err := deps.Source.Load(ctx)
	if err != nil {
		return nil, failSync(ctx, deps, span, logger, started, source, trigger, "load catalog", err)
	}

	// A replace with zero products would wipe the index.
	if len(products) == 0 && deps.Replace {
		return nil, failSync(ctx, deps, span, logger, started, source, trigger, "load catalog", ErrEmptyCatalog)
	}

	if err := deps.Indexer.EnsureIndexes(ctx); err != nil {
		return nil, failSync(ctx, deps, span, logger, started, source, trigger, "ensure indexes", err)
	}

	count, err := deps.Indexer.IndexProducts(ctx, products, deps.Replace)
	if err != nil {
		return nil, failSync(ctx, deps, span, logger, started, source, trigger, "index products", err)
	}

	finished := deps.now()
	duration := finished.Sub(started)
	metrics.RecordSyncSuccess(count, duration)
	span.SetAttributes(telemetry.SyncAttributes(source, count, deps.Replace)...)

	persistRecord(ctx, deps, logger, &store.SyncRecord{
		StartedAt:  started,
		FinishedAt: finished,
		Documents:  count,
		Source:     source,
		Replace:    deps.Replace,
		Trigger:    trigger,
		Success:    true,
	})

	status := &Status{
		LastRun:    finished,
		Documents:  count,
		DurationMS: duration.Milliseconds(),
		Source:     source,
		Trigger:    trigger,
	}
	logger.Info().
		Str("event", "sync.success").
		Str("source", source).
		Str("trigger", trigger).
		Int("documents", status.Documents).
		Int64("duration_ms", status.DurationMS).
		Msg("sync completed")
	return status, nil
}

// failSync records the failure in metrics, trace, and the state store,
// then returns the stage-wrapped error.
func failSync(ctx context.Context, deps Deps, span trace.Span, logger zerolog.Logger, started time.Time, source, trigger, stage string, err error) error {
	finished := deps.now()
	duration := finished.Sub(started)
	metrics.RecordSyncFailure(duration)

	span.RecordError(err)
	span.SetStatus(codes.Error, stage)

	persistRecord(ctx, deps, logger, &store.SyncRecord{
		StartedAt:  started,
		FinishedAt: finished,
		Source:     source,
		Replace:    deps.Replace,
		Trigger:    trigger,
		Success:    false,
		Error:      err.Error(),
	})

	logger.Error().
		Err(err).
		Str("event", "sync.failed").
		Str("source", source).
		Str("trigger", trigger).
		Str("stage", stage).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("sync failed")
	return fmt.Errorf("%s: %w", stage, err)
}

// persistRecord is best-effort: a state store failure must not fail the sync.
func persistRecord(ctx context.Context, deps Deps, logger zerolog.Logger, rec *store.SyncRecord) {
	if deps.Records == nil {
		return
	}
	// Records must survive shutdown-cancelled syncs.
	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := deps.Records.PutSyncRecord(putCtx, rec); err != nil {
		logger.Warn().
			Err(err).
			Str("event", "sync.record_failed").
			Msg("failed to persist sync record")
	}
}
