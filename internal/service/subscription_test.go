package service

import (
	"context"
	"testing"
	"time"

	"github.com/crashwatch/crashwatch/internal/config"
	"github.com/crashwatch/crashwatch/internal/domain/subscription"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/logger"
	"github.com/crashwatch/crashwatch/internal/sentry"
	"github.com/crashwatch/crashwatch/internal/telemetry"
	"github.com/crashwatch/crashwatch/internal/testutil"
	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service  SubscriptionService
	runner   *testutil.InMemoryQueryRunner
	tagIndex *testutil.InMemoryTagIndexStore
}

func newServiceFixture(t *testing.T, rows []subscription.Row) *serviceFixture {
	t.Helper()

	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	sentrySvc, err := sentry.NewService(cfg, log)
	require.NoError(t, err)

	runner := testutil.NewInMemoryQueryRunner(rows)
	tagIndex := testutil.NewInMemoryTagIndexStore()

	return &serviceFixture{
		service: NewSubscriptionService(ServiceParams{
			Config:       cfg,
			Logger:       log,
			Telemetry:    telemetry.NewNoopEmitter(),
			Sentry:       sentrySvc,
			TagIndexRepo: tagIndex,
			QueryRunner:  runner,
		}),
		runner:   runner,
		tagIndex: tagIndex,
	}
}

func TestEvaluateSubscriptionRequestValidate(t *testing.T) {
	valid := func() *EvaluateSubscriptionRequest {
		return &EvaluateSubscriptionRequest{
			Dataset:    types.DatasetEvents,
			Aggregate:  "count()",
			TimeWindow: 3600,
			ProjectIDs: []int64{1},
		}
	}

	t.Run("a complete request passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("each missing field fails", func(t *testing.T) {
		req := valid()
		req.Dataset = types.Dataset("profiles")
		assert.Error(t, req.Validate())

		req = valid()
		req.Aggregate = ""
		assert.True(t, ierr.IsValidation(req.Validate()))

		req = valid()
		req.TimeWindow = 0
		assert.True(t, ierr.IsValidation(req.Validate()))

		req = valid()
		req.ProjectIDs = nil
		assert.True(t, ierr.IsValidation(req.Validate()))
	})
}

func TestEvaluateSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("events evaluation flows through to the runner", func(t *testing.T) {
		f := newServiceFixture(t, []subscription.Row{{"count": int64(42)}})

		end := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		rows, err := f.service.EvaluateSubscription(ctx, &EvaluateSubscriptionRequest{
			Dataset:    types.DatasetEvents,
			Aggregate:  "count()",
			TimeWindow: 3600,
			Query:      "release:1.0",
			ProjectIDs: []int64{1, 2},
			End:        end,
		})
		require.NoError(t, err)

		assert.Equal(t, []subscription.Row{{"count": int64(42)}}, rows)

		require.Len(t, f.runner.Specs, 1)
		spec := f.runner.Specs[0]
		assert.Equal(t, types.EntityKindEvents, spec.EntityKind)
		assert.Equal(t, "(event.type:error) AND (release:1.0)", spec.Query)
		assert.Equal(t, []int64{1, 2}, spec.ProjectIDs)
	})

	t.Run("metrics evaluation normalizes the crash free value", func(t *testing.T) {
		f := newServiceFixture(t, []subscription.Row{{"count": 100.0, "crashed": 5.0}})

		rows, err := f.service.EvaluateSubscription(ctx, &EvaluateSubscriptionRequest{
			Dataset:        types.DatasetMetrics,
			Aggregate:      "percentage(sessions_crashed, sessions)",
			TimeWindow:     3600,
			ProjectIDs:     []int64{1},
			OrganizationID: lo.ToPtr(int64(10)),
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 95.0, rows[0][types.CrashRateAlertAggregateAlias])

		require.Len(t, f.runner.Specs, 1)
		assert.Equal(t, types.EntityKindMetricsCounters, f.runner.Specs[0].EntityKind)
		assert.Equal(t, 10, f.runner.Specs[0].Granularity)
	})

	t.Run("missing organization id fails before any query runs", func(t *testing.T) {
		f := newServiceFixture(t, nil)

		_, err := f.service.EvaluateSubscription(ctx, &EvaluateSubscriptionRequest{
			Dataset:    types.DatasetSessions,
			Aggregate:  "percentage(sessions_crashed, sessions)",
			TimeWindow: 3600,
			ProjectIDs: []int64{1},
		})
		assert.True(t, ierr.IsInvalidSubscription(err))
		assert.Empty(t, f.runner.Specs)
	})

	t.Run("runner errors surface unchanged", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.runner.Err = ierr.NewError("connection refused").Mark(ierr.ErrDatabase)

		_, err := f.service.EvaluateSubscription(ctx, &EvaluateSubscriptionRequest{
			Dataset:    types.DatasetEvents,
			Aggregate:  "count()",
			TimeWindow: 3600,
			ProjectIDs: []int64{1},
		})
		assert.True(t, ierr.IsDatabase(err))
	})

	t.Run("normalization contract violations surface as internal errors", func(t *testing.T) {
		f := newServiceFixture(t, []subscription.Row{
			{types.CrashRateAlertAggregateAlias: 0.1},
			{types.CrashRateAlertAggregateAlias: 0.2},
		})

		_, err := f.service.EvaluateSubscription(ctx, &EvaluateSubscriptionRequest{
			Dataset:        types.DatasetSessions,
			Aggregate:      "percentage(sessions_crashed, sessions)",
			TimeWindow:     3600,
			ProjectIDs:     []int64{1},
			OrganizationID: lo.ToPtr(int64(10)),
		})
		assert.True(t, ierr.IsInternal(err))
	})
}
