package subscription

import (
	"context"
	"testing"

	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsSubscriptionConstruction(t *testing.T) {
	t.Run("requires an organization id", func(t *testing.T) {
		_, err := newSessionsSubscription("percentage(sessions_crashed, sessions)", nil, newRecordingEmitter())
		assert.True(t, ierr.IsInvalidSubscription(err))

		_, err = newSessionsSubscription("percentage(sessions_crashed, sessions)", &ExtraFields{}, newRecordingEmitter())
		assert.True(t, ierr.IsInvalidSubscription(err))
	})

	t.Run("exposes the organization in extra params", func(t *testing.T) {
		sub, err := newSessionsSubscription("percentage(sessions_crashed, sessions)", &ExtraFields{OrganizationID: orgIDPtr(42)}, newRecordingEmitter())
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"organization": int64(42)}, sub.GetEntityExtraParams())
	})
}

func TestSessionsSubscriptionBuildQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("adds the derived total count column", func(t *testing.T) {
		sub, err := newSessionsSubscription("percentage(sessions_crashed, sessions) AS _crash_rate_alert_aggregate", &ExtraFields{OrganizationID: orgIDPtr(1)}, newRecordingEmitter())
		require.NoError(t, err)

		spec, err := sub.BuildQuery(ctx, "", []int64{1}, "production")
		require.NoError(t, err)

		assert.Equal(t, types.DatasetSessions, spec.Dataset)
		assert.Equal(t, "started", spec.TimeColumn)
		assert.Equal(t, []string{
			"percentage(sessions_crashed, sessions) AS _crash_rate_alert_aggregate",
			"identity(sessions) AS crash_free_sessions_count",
		}, spec.SelectedColumns)
		assert.Equal(t, []string{"identity"}, spec.FunctionAllowlist)
	})

	t.Run("user based aggregates count users", func(t *testing.T) {
		sub, err := newSessionsSubscription("percentage(users_crashed, users)", &ExtraFields{OrganizationID: orgIDPtr(1)}, newRecordingEmitter())
		require.NoError(t, err)

		spec, err := sub.BuildQuery(ctx, "", []int64{1}, "")
		require.NoError(t, err)
		assert.Contains(t, spec.SelectedColumns, "identity(users) AS crash_free_sessions_count")
	})

	t.Run("rejects aggregates that count neither sessions nor users", func(t *testing.T) {
		sub, err := newSessionsSubscription("percentage(errors, total)", &ExtraFields{OrganizationID: orgIDPtr(1)}, newRecordingEmitter())
		require.NoError(t, err)

		_, err = sub.BuildQuery(ctx, "", []int64{1}, "")
		assert.True(t, ierr.IsUnsupportedSubscription(err))
	})
}

func TestSessionsSubscriptionAggregateQueryResults(t *testing.T) {
	ctx := context.Background()

	newSub := func(t *testing.T, emitter *recordingEmitter) *sessionsSubscription {
		sub, err := newSessionsSubscription("percentage(sessions_crashed, sessions)", &ExtraFields{OrganizationID: orgIDPtr(1)}, emitter)
		require.NoError(t, err)
		return sub
	}

	t.Run("flips the crash rate fraction into a crash free percentage", func(t *testing.T) {
		emitter := newRecordingEmitter()
		sub := newSub(t, emitter)

		rows, err := sub.AggregateQueryResults(ctx, []Row{{
			types.CrashRateAlertAggregateAlias:    0.1,
			types.CrashRateAlertSessionCountAlias: 100,
		}}, "")
		require.NoError(t, err)
		require.Len(t, rows, 1)

		assert.Equal(t, 90.0, rows[0][types.CrashRateAlertAggregateAlias])
		assert.Equal(t, 100, rows[0][types.CrashRateAlertSessionCountAlias])
		assert.Zero(t, emitter.count(sessionsNoDataCounter))
	})

	t.Run("rounds to three decimal places", func(t *testing.T) {
		sub := newSub(t, newRecordingEmitter())

		rows, err := sub.AggregateQueryResults(ctx, []Row{{
			types.CrashRateAlertAggregateAlias: 1.0 / 3.0,
		}}, "")
		require.NoError(t, err)
		assert.Equal(t, 66.667, rows[0][types.CrashRateAlertAggregateAlias])
	})

	t.Run("respects a caller supplied alias", func(t *testing.T) {
		sub := newSub(t, newRecordingEmitter())

		rows, err := sub.AggregateQueryResults(ctx, []Row{{"custom_alias": 0.25}}, "custom_alias")
		require.NoError(t, err)
		assert.Equal(t, 75.0, rows[0]["custom_alias"])
	})

	t.Run("normalizing the same rows twice yields identical output", func(t *testing.T) {
		sub := newSub(t, newRecordingEmitter())
		rows := []Row{{
			types.CrashRateAlertAggregateAlias:    0.1,
			types.CrashRateAlertSessionCountAlias: 100,
		}}

		first, err := sub.AggregateQueryResults(ctx, rows, "")
		require.NoError(t, err)
		second, err := sub.AggregateQueryResults(ctx, rows, "")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		// The input row is copied, never flipped in place.
		assert.Equal(t, 0.1, rows[0][types.CrashRateAlertAggregateAlias])
	})

	t.Run("keeps nil when the backend had no session data", func(t *testing.T) {
		emitter := newRecordingEmitter()
		sub := newSub(t, emitter)

		rows, err := sub.AggregateQueryResults(ctx, []Row{{
			types.CrashRateAlertAggregateAlias: nil,
		}}, "")
		require.NoError(t, err)
		assert.Nil(t, rows[0][types.CrashRateAlertAggregateAlias])
		assert.Equal(t, 1, emitter.count(sessionsNoDataCounter))
	})

	t.Run("requires exactly one row", func(t *testing.T) {
		sub := newSub(t, newRecordingEmitter())

		_, err := sub.AggregateQueryResults(ctx, nil, "")
		assert.True(t, ierr.IsInternal(err))

		_, err = sub.AggregateQueryResults(ctx, []Row{{}, {}}, "")
		assert.True(t, ierr.IsInternal(err))
	})
}
