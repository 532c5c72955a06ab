package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(context.Background(), config.Telemetry{Enabled: false})
	require.NoError(t, err)
	assert.False(t, tracer.IsEnabled())

	ctx, span := tracer.Start(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_RequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewTracer(context.Background(), config.Telemetry{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}
