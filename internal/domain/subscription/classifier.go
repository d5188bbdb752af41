package subscription

import (
	"regexp"

	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
)

// crashRateAggregateRe is the only aggregate shape supported for the
// percentage-based datasets. Group 2 (sessions|users) selects which metrics
// entity a metrics-dataset subscription routes to.
var crashRateAggregateRe = regexp.MustCompile(
	`^percentage\([ ]*(sessions_crashed|users_crashed)[ ]*,[ ]*(sessions|users)[ ]*\)`,
)

// MapAggregateToEntityKind routes a (dataset, aggregate) pair to the storage
// entity that must serve it. For the sessions and metrics datasets the
// aggregate must match the crash-free percentage pattern; non-matches fail
// with an error marked ierr.ErrUnsupportedSubscription rather than a parse
// error needing recovery.
func MapAggregateToEntityKind(dataset types.Dataset, aggregate string) (types.EntityKind, error) {
	switch dataset {
	case types.DatasetEvents:
		return types.EntityKindEvents, nil
	case types.DatasetTransactions:
		return types.EntityKindTransactions, nil
	case types.DatasetSessions, types.DatasetMetrics:
		match := crashRateAggregateRe.FindStringSubmatch(aggregate)
		if match == nil {
			return "", ierr.NewErrorf("only crash free percentage queries are supported for subscriptions over the %s dataset", dataset).
				WithReportableDetails(map[string]interface{}{
					"dataset":   dataset,
					"aggregate": aggregate,
				}).
				Mark(ierr.ErrUnsupportedSubscription)
		}
		if dataset == types.DatasetSessions {
			return types.EntityKindSessions, nil
		}
		if match[2] == "sessions" {
			return types.EntityKindMetricsCounters, nil
		}
		return types.EntityKindMetricsSets, nil
	default:
		return "", ierr.NewErrorf("%s dataset does not have an entity kind mapped to it", dataset).
			Mark(ierr.ErrUnsupportedSubscription)
	}
}
