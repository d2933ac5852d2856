package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("generation-metrics")

// GenerationMetrics provides metrics collection for the generation pipeline
type GenerationMetrics struct {
	generationsCreatedCounter   metric.Int64Counter
	generationsCompletedCounter metric.Int64Counter
	generationsFailedCounter    metric.Int64Counter
	stageDurationHistogram      metric.Float64Histogram
	generationsActiveGauge      metric.Int64UpDownCounter
	buildOutcomeCounter         metric.Int64Counter
}

// NewGenerationMetrics creates a new generation metrics collector
func NewGenerationMetrics() (*GenerationMetrics, error) {
	generationsCreatedCounter, err := meter.Int64Counter(
		"droid_builder.generations.created",
		metric.WithDescription("Total number of generation requests accepted"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, err
	}

	generationsCompletedCounter, err := meter.Int64Counter(
		"droid_builder.generations.completed",
		metric.WithDescription("Total number of generations completed successfully"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, err
	}

	generationsFailedCounter, err := meter.Int64Counter(
		"droid_builder.generations.failed",
		metric.WithDescription("Total number of generations that failed"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, err
	}

	stageDurationHistogram, err := meter.Float64Histogram(
		"droid_builder.generation.stage_duration",
		metric.WithDescription("Duration of individual pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	generationsActiveGauge, err := meter.Int64UpDownCounter(
		"droid_builder.generations.active",
		metric.WithDescription("Number of generations currently in flight"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, err
	}

	buildOutcomeCounter, err := meter.Int64Counter(
		"droid_builder.builds.outcome",
		metric.WithDescription("Build invocation outcomes by result"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, err
	}

	return &GenerationMetrics{
		generationsCreatedCounter:   generationsCreatedCounter,
		generationsCompletedCounter: generationsCompletedCounter,
		generationsFailedCounter:    generationsFailedCounter,
		stageDurationHistogram:      stageDurationHistogram,
		generationsActiveGauge:      generationsActiveGauge,
		buildOutcomeCounter:         buildOutcomeCounter,
	}, nil
}

// RecordCreated records an accepted generation request
func (gm *GenerationMetrics) RecordCreated(ctx context.Context, backend string) {
	gm.generationsCreatedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("genai.backend", backend)),
	)
	gm.generationsActiveGauge.Add(ctx, 1,
		metric.WithAttributes(attribute.String("genai.backend", backend)),
	)
}

// RecordCompleted records a successful generation
func (gm *GenerationMetrics) RecordCompleted(ctx context.Context, backend string, templateFallback bool) {
	gm.generationsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("genai.backend", backend),
			attribute.Bool("template_fallback", templateFallback),
		),
	)
	gm.generationsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(attribute.String("genai.backend", backend)),
	)
}

// RecordFailed records a failed or cancelled generation
func (gm *GenerationMetrics) RecordFailed(ctx context.Context, backend, stage string) {
	gm.generationsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("genai.backend", backend),
			attribute.String("stage", stage),
		),
	)
	gm.generationsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(attribute.String("genai.backend", backend)),
	)
}

// RecordStageDuration records how long one pipeline stage took
func (gm *GenerationMetrics) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
	gm.stageDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordBuildOutcome records the result of one build invocation. Outcome is
// one of "succeeded", "artifact_missing", "failed".
func (gm *GenerationMetrics) RecordBuildOutcome(ctx context.Context, outcome string, duration time.Duration) {
	gm.buildOutcomeCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	gm.stageDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("stage", "building")),
	)
}
