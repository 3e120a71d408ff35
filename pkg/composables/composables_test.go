package composables

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestUseTenantID(t *testing.T) {
	_, err := UseTenantID(context.Background())
	require.ErrorIs(t, err, ErrNoTenantID)

	_, err = UseTenantID(WithTenantID(context.Background(), uuid.Nil))
	require.ErrorIs(t, err, ErrNoTenantID)

	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	got, err := UseTenantID(WithTenantID(context.Background(), id))
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestUseTx_WithoutPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)
}

func TestUseLogger_FallsBackToNop(t *testing.T) {
	require.NotNil(t, UseLogger(context.Background()))

	entry := logrus.NewEntry(logrus.New()).WithField("run_id", "r1")
	got := UseLogger(WithLogger(context.Background(), entry))
	require.Equal(t, "r1", got.Data["run_id"])
}
