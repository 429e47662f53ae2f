package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderStillStartsSpans(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, nil)
	require.NoError(t, err)
	require.NotNil(t, provider)

	_, span := provider.Tracer("songlake").Start(context.Background(), "run")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestUnsupportedProtocol(t *testing.T) {
	_, err := NewProvider(nil, Config{Enabled: true, ExporterProtocol: "carrier-pigeon"}, nil)
	require.Error(t, err)
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 1.0, clampRatio(0))
	assert.Equal(t, 0.25, clampRatio(0.25))
	assert.Equal(t, 1.0, clampRatio(7))
}
