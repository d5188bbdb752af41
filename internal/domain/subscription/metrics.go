package subscription

import (
	"context"
	"fmt"

	"github.com/crashwatch/crashwatch/internal/domain/tagindex"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/telemetry"
	"github.com/crashwatch/crashwatch/internal/types"
)

const (
	metricsNoDataCounter         = "incidents.entity_subscription.metrics.aggregate_query_results.no_session_data"
	metricIndexNotFoundCounter   = "incidents.entity_subscription.metric_index_not_found"
	aggregateQueryResultsCounter = "incidents.entity_subscription.aggregate_query_results"
)

// metricsSubscription serves the two metrics entities. Counters aggregates
// session counts via sumIf over the session.status tag; sets aggregates
// distinct users via uniq/uniqIf. Everything else is shared.
type metricsSubscription struct {
	entityKind types.EntityKind
	metricKey  types.MRI
	aggregate  string
	timeWindow int
	orgID      int64

	// session.status tag key, resolved once at construction.
	sessionStatusCol string

	tagIndex  tagindex.Repository
	telemetry telemetry.Emitter
}

func newMetricsSubscription(ctx context.Context, entityKind types.EntityKind, aggregate string, timeWindow int, extra *ExtraFields, tagIndex tagindex.Repository, emitter telemetry.Emitter) (*metricsSubscription, error) {
	if extra == nil || extra.OrganizationID == nil {
		return nil, ierr.NewError("organization_id is a required param when building a query for a metrics subscription").
			Mark(ierr.ErrInvalidSubscription)
	}
	orgID := *extra.OrganizationID

	sessionStatusKey, err := tagIndex.ResolveTagKey(ctx, orgID, "session.status")
	if err != nil {
		return nil, err
	}

	metricKey := types.MRISession
	if entityKind == types.EntityKindMetricsSets {
		metricKey = types.MRIUser
	}

	return &metricsSubscription{
		entityKind:       entityKind,
		metricKey:        metricKey,
		aggregate:        aggregate,
		timeWindow:       timeWindow,
		orgID:            orgID,
		sessionStatusCol: tagColumn(sessionStatusKey),
		tagIndex:         tagIndex,
		telemetry:        emitter,
	}, nil
}

func (s *metricsSubscription) Dataset() types.Dataset { return types.DatasetMetrics }

func (s *metricsSubscription) EntityKind() types.EntityKind { return s.entityKind }

func (s *metricsSubscription) TimeColumn() string { return s.entityKind.TimeColumn() }

// granularityFor derives the backend time-bucket resolution in seconds from
// the alert's evaluation window:
//
//	window <= 1h  -> 10s
//	window <= 4h  -> 60s
//	window <= 24h -> 1h
//	else          -> 1 day
func granularityFor(timeWindow int) int {
	switch {
	case timeWindow <= 3600:
		return 10
	case timeWindow <= 4*3600:
		return 60
	case timeWindow <= 24*3600:
		return 3600
	default:
		return 24 * 3600
	}
}

func (s *metricsSubscription) GetEntityExtraParams() map[string]interface{} {
	return map[string]interface{}{
		"organization": s.orgID,
		"granularity":  granularityFor(s.timeWindow),
	}
}

// aggregations returns the variant's selected backend aggregations.
func (s *metricsSubscription) aggregations() []string {
	if s.entityKind == types.EntityKindMetricsSets {
		return []string{
			"uniq() as count",
			"uniqIf(session.status, crashed) as crashed",
		}
	}
	return []string{
		"sumIf(session.status, init) as count",
		"sumIf(session.status, crashed) as crashed",
	}
}

// extraConditions returns variant-specific filter conditions. Counters must
// restrict session.status to the crashed/init tag values it sums over.
func (s *metricsSubscription) extraConditions(ctx context.Context) ([]Condition, error) {
	if s.entityKind == types.EntityKindMetricsSets {
		return nil, nil
	}

	statusValues, err := s.tagIndex.ResolveTagValues(ctx, s.orgID, []string{"crashed", "init"})
	if err != nil {
		return nil, err
	}
	return []Condition{
		{Column: s.sessionStatusCol, Op: OpIn, Value: statusValues},
	}, nil
}

func (s *metricsSubscription) BuildQuery(ctx context.Context, query string, projectIDs []int64, environment string) (*QuerySpec, error) {
	if err := rejectBlockedFilterKeys(query); err != nil {
		return nil, err
	}

	metricID, err := s.tagIndex.ResolveMetric(ctx, s.orgID, s.metricKey)
	if err != nil {
		return nil, err
	}

	conditions := []Condition{
		{Column: "metric_id", Op: OpEq, Value: metricID},
	}
	extra, err := s.extraConditions(ctx)
	if err != nil {
		return nil, err
	}
	conditions = append(conditions, extra...)

	if environment != "" {
		envKey, err := s.tagIndex.ResolveTagKey(ctx, s.orgID, "environment")
		if err != nil {
			return nil, err
		}
		envValue, err := s.tagIndex.ResolveTagValue(ctx, s.orgID, environment)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, Condition{
			Column: tagColumn(envKey),
			Op:     OpEq,
			Value:  envValue,
		})
	}

	return &QuerySpec{
		Dataset:            types.DatasetMetrics,
		EntityKind:         s.entityKind,
		TimeColumn:         s.TimeColumn(),
		SelectedColumns:    s.aggregations(),
		Query:              query,
		Conditions:         conditions,
		ProjectIDs:         projectIDs,
		Environment:        environment,
		Granularity:        granularityFor(s.timeWindow),
		BlockedFilterKeys:  alertBlockedFields,
		SkipTimeConditions: true,
		ExtraParams:        s.GetEntityExtraParams(),
	}, nil
}

// isCrashRateFormatV2 detects the current result shape. Remove together with
// the v1 path once all data producers are confirmed migrated.
func isCrashRateFormatV2(rows []Row) bool {
	if len(rows) == 0 {
		return false
	}
	_, ok := rows[0]["crashed"]
	return ok
}

// AggregateQueryResults handles both result formats. Once all producers emit
// v2 the v1 path can be deleted and this collapses into the v2 body.
func (s *metricsSubscription) AggregateQueryResults(ctx context.Context, rows []Row, alias string) ([]Row, error) {
	var (
		version string
		result  []Row
		err     error
	)
	if isCrashRateFormatV2(rows) {
		version = "v2"
		result, err = s.aggregateQueryResultsV2(rows, alias)
	} else {
		version = "v1"
		result, err = s.aggregateQueryResultsV1(ctx, rows, alias)
	}
	if err != nil {
		return nil, err
	}

	s.telemetry.Incr(aggregateQueryResultsCounter, []string{"format:" + version}, 1.0)
	return result, nil
}

// translateSessionsTagValues reverse-resolves each row's session.status tag
// value into a semantic label and sums per-label values. An unresolvable
// index in any row degrades the whole batch to zero/zero; alert evaluation
// must stay live even with partial data. A missing value column is a
// backend contract violation, not partial data, and fails the batch.
func (s *metricsSubscription) translateSessionsTagValues(ctx context.Context, rows []Row, alias string) (totalCount, crashCount float64, err error) {
	valueCol := "value"
	if alias != "" {
		valueCol = alias
	}

	translated := map[string]float64{}
	for _, row := range rows {
		tagValueIndex, ok := asInt(row[s.sessionStatusCol])
		if !ok {
			s.telemetry.Incr(metricIndexNotFoundCounter, nil, 1.0)
			return 0, 0, nil
		}
		label, resolveErr := s.tagIndex.ReverseResolveTagValue(ctx, tagValueIndex)
		if resolveErr != nil || label == "" {
			s.telemetry.Incr(metricIndexNotFoundCounter, nil, 1.0)
			return 0, 0, nil
		}
		value, ok := asFloat(row[valueCol])
		if !ok {
			return 0, 0, ierr.NewErrorf("metrics result row is missing the %q value column", valueCol).
				Mark(ierr.ErrInternal)
		}
		translated[label] = value
	}

	return translated["init"], translated["crashed"], nil
}

func (s *metricsSubscription) aggregateQueryResultsV1(ctx context.Context, rows []Row, alias string) ([]Row, error) {
	totalCount, crashCount, err := s.translateSessionsTagValues(ctx, rows, alias)
	if err != nil {
		return nil, err
	}
	return s.crashFreeRow(totalCount, crashCount, alias), nil
}

func (s *metricsSubscription) aggregateQueryResultsV2(rows []Row, alias string) ([]Row, error) {
	var totalCount, crashCount float64
	if len(rows) > 0 {
		if len(rows) != 1 {
			// Backend contract violation, not bad user input.
			return nil, ierr.NewErrorf("metrics aggregation expected exactly one row, got %d", len(rows)).
				Mark(ierr.ErrInternal)
		}
		row := rows[0]
		totalCount, _ = asFloat(row["count"])
		crashCount, _ = asFloat(row["crashed"])
	}
	return s.crashFreeRow(totalCount, crashCount, alias), nil
}

// crashFreeRow builds the canonical single-row result. A zero total is a
// data-quality condition: the value degrades to nil plus a telemetry signal.
func (s *metricsSubscription) crashFreeRow(totalCount, crashCount float64, alias string) []Row {
	colName := aliasOrDefault(alias)
	if totalCount == 0 {
		s.telemetry.Incr(metricsNoDataCounter, nil, 1.0)
		return []Row{{colName: nil}}
	}
	return []Row{{colName: roundToThree((1 - crashCount/totalCount) * 100)}}
}

// tagColumn renders the backend column name for a resolved tag key index.
func tagColumn(index int64) string {
	return fmt.Sprintf("tags[%d]", index)
}
