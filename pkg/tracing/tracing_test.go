package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledIsNop(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), false, "", "directory-sync")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}
