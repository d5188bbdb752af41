package subscription

import (
	"fmt"
	"strings"

	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/samber/lo"
)

// datasetConditions holds the default event-type clause per dataset. Datasets
// absent here (sessions, metrics) carry no implicit event-type scoping.
var datasetConditions = map[types.Dataset]string{
	types.DatasetEvents:       "event.type:error",
	types.DatasetTransactions: "event.type:transaction",
}

// ApplyDatasetConditions ANDs the dataset's event-type clause into a user
// query, turning 'release:123 or release:456' into
// '(event.type:error) AND (release:123 or release:456)'.
//
// When discover is false, transactions queries are returned unchanged: the
// transactions entity already implies the event type, and an event.type
// filter there degenerates into a tag search. Discover-style queries always
// need event.type spelled out to tell errors and transactions apart.
//
// Pure function of its inputs; no I/O.
func ApplyDatasetConditions(dataset types.Dataset, query string, eventTypes []types.EventType, discover bool) string {
	if !discover && dataset == types.DatasetTransactions {
		return query
	}

	var eventTypeClause string
	if len(eventTypes) > 0 {
		clauses := lo.Map(eventTypes, func(et types.EventType, _ int) string {
			return "event.type:" + strings.ToLower(string(et))
		})
		eventTypeClause = strings.Join(clauses, " OR ")
	} else if clause, ok := datasetConditions[dataset]; ok {
		eventTypeClause = clause
	} else {
		return query
	}

	if query != "" {
		return fmt.Sprintf("(%s) AND (%s)", eventTypeClause, query)
	}

	return eventTypeClause
}
