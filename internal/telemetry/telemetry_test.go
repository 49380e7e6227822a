package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(true, &buf, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "oracle.massQuery")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "oracle.massQuery")
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(false, nil, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
