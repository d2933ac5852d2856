package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationMetrics_Creation(t *testing.T) {
	t.Run("successfully create generation metrics", func(t *testing.T) {
		metrics, err := NewGenerationMetrics()
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.generationsCreatedCounter)
		assert.NotNil(t, metrics.generationsCompletedCounter)
		assert.NotNil(t, metrics.generationsFailedCounter)
		assert.NotNil(t, metrics.stageDurationHistogram)
		assert.NotNil(t, metrics.generationsActiveGauge)
		assert.NotNil(t, metrics.buildOutcomeCounter)
	})
}

func TestGenerationMetrics_Recording(t *testing.T) {
	metrics, err := NewGenerationMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("record generation lifecycle", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordCreated(ctx, "hosted")
			metrics.RecordStageDuration(ctx, "materializing", 120*time.Millisecond)
			metrics.RecordCompleted(ctx, "hosted", false)
		})
	})

	t.Run("record failed generation", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordCreated(ctx, "ollama")
			metrics.RecordFailed(ctx, "ollama", "archiving")
		})
	})

	t.Run("record template fallback completion", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordCreated(ctx, "hosted")
			metrics.RecordCompleted(ctx, "hosted", true)
		})
	})

	t.Run("record build outcomes", func(t *testing.T) {
		outcomes := []string{"succeeded", "artifact_missing", "failed"}
		for i, outcome := range outcomes {
			metrics.RecordBuildOutcome(ctx, outcome, time.Duration(i+1)*time.Second)
		}
	})
}

func TestGenerationMetrics_ConcurrentRecording(t *testing.T) {
	metrics, err := NewGenerationMetrics()
	require.NoError(t, err)

	t.Run("handle concurrent metric recording", func(t *testing.T) {
		ctx := context.Background()
		done := make(chan bool)

		for i := 0; i < 10; i++ {
			go func(id int) {
				metrics.RecordCreated(ctx, "hosted")
				duration := time.Duration(id) * 100 * time.Millisecond
				if id%2 == 0 {
					metrics.RecordStageDuration(ctx, "building", duration)
					metrics.RecordCompleted(ctx, "hosted", false)
				} else {
					metrics.RecordFailed(ctx, "hosted", "generating")
				}
				done <- true
			}(i)
		}

		for i := 0; i < 10; i++ {
			<-done
		}
	})
}
