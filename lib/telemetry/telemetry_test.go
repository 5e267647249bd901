package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "test:telemetry", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewLogger(t *testing.T) {
	var buff bytes.Buffer

	logger := NewLogger(&buff, false)
	logger.Debug("hidden")
	logger.Info("shown", "file", "a.csv")
	require.NotContains(t, buff.String(), "hidden")
	require.Contains(t, buff.String(), "file=a.csv")

	buff.Reset()
	logger = NewLogger(&buff, true)
	logger.Debug("visible")
	require.Contains(t, buff.String(), "visible")
}
