package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DefaultEndpoint(t *testing.T) {
	cfg := Config{
		Endpoint:    "", // Empty should use default
		Environment: "test",
		ServiceName: "test-service",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestSetup_CollectorUnavailable_GracefulDegradation(t *testing.T) {
	// Point to a collector that does not exist. Exporter creation may
	// succeed; spans then fail to export silently.
	cfg := Config{
		Endpoint:    "localhost:99999",
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
}

func TestDefaultEndpoint_Value(t *testing.T) {
	assert.Equal(t, "localhost:4318", DefaultEndpoint)
}
