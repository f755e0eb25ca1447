package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), "vertical-border", false)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
