package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupRejectsUnknownProtocol(t *testing.T) {
	_, err := Setup(context.Background(), Config{
		Enabled:  true,
		Protocol: "carrier-pigeon",
		Endpoint: "localhost:4317",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown telemetry protocol")
}
