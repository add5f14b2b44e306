package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceContextFrom_NoSpan(t *testing.T) {
	traceID, spanID := TraceContextFrom(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}

func TestLogTraceFields(t *testing.T) {
	t.Run("without span leaves event untouched", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		logger.Info().Func(LogTraceFields(context.Background())).Msg("chat_turn_completed")
		assert.NotContains(t, buf.String(), "trace_id")
	})

	t.Run("with span adds ids", func(t *testing.T) {
		shutdown, err := Setup("wfbuilder-test", "0.0.1", true)
		require.NoError(t, err)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()

		ctx, span := Tracer("wfbuilder/test").Start(context.Background(), "log.test")
		defer span.End()

		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		logger.Info().Func(LogTraceFields(ctx)).Msg("chat_turn_completed")
		assert.Contains(t, buf.String(), `"trace_id"`)
		assert.Contains(t, buf.String(), `"span_id"`)
	})
}
