package subscription

import (
	"context"
	"testing"

	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryNewEntitySubscription(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(newFakeTagIndex(), newRecordingEmitter())

	t.Run("events dataset builds an events subscription", func(t *testing.T) {
		sub, err := factory.NewEntitySubscription(ctx, types.DatasetEvents, "count()", 3600, nil)
		require.NoError(t, err)
		assert.Equal(t, types.EntityKindEvents, sub.EntityKind())
		assert.Equal(t, types.DatasetEvents, sub.Dataset())
	})

	t.Run("transactions dataset builds a transactions subscription", func(t *testing.T) {
		sub, err := factory.NewEntitySubscription(ctx, types.DatasetTransactions, "p95(transaction.duration)", 3600, nil)
		require.NoError(t, err)
		assert.Equal(t, types.EntityKindTransactions, sub.EntityKind())
	})

	t.Run("sessions dataset requires an organization id", func(t *testing.T) {
		_, err := factory.NewEntitySubscription(ctx, types.DatasetSessions,
			"percentage(sessions_crashed, sessions)", 3600, nil)
		assert.True(t, ierr.IsInvalidSubscription(err))
	})

	t.Run("sessions dataset builds a sessions subscription", func(t *testing.T) {
		sub, err := factory.NewEntitySubscription(ctx, types.DatasetSessions,
			"percentage(sessions_crashed, sessions)", 3600, &ExtraFields{OrganizationID: orgIDPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, types.EntityKindSessions, sub.EntityKind())
	})

	t.Run("metrics dataset routes by the counted column", func(t *testing.T) {
		sub, err := factory.NewEntitySubscription(ctx, types.DatasetMetrics,
			"percentage(sessions_crashed, sessions)", 3600, &ExtraFields{OrganizationID: orgIDPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, types.EntityKindMetricsCounters, sub.EntityKind())

		sub, err = factory.NewEntitySubscription(ctx, types.DatasetMetrics,
			"percentage(users_crashed, users)", 3600, &ExtraFields{OrganizationID: orgIDPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, types.EntityKindMetricsSets, sub.EntityKind())
	})

	t.Run("unsupported aggregates are rejected before construction", func(t *testing.T) {
		_, err := factory.NewEntitySubscription(ctx, types.DatasetMetrics, "count()", 3600,
			&ExtraFields{OrganizationID: orgIDPtr(1)})
		assert.True(t, ierr.IsUnsupportedSubscription(err))
	})
}
