package subscription

import (
	"context"
	"fmt"
	"regexp"

	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/telemetry"
	"github.com/crashwatch/crashwatch/internal/types"
)

const sessionsNoDataCounter = "incidents.entity_subscription.sessions.aggregate_query_results.no_session_data"

// sessionCountRe extracts which of sessions/users the aggregate counts so the
// derived total-count column can be added alongside the primary aggregate.
var sessionCountRe = regexp.MustCompile(`(sessions|users)`)

// sessionsSubscription queries the sessions entity. The backend returns the
// crash rate as a fraction; normalization turns it into a crash-free
// percentage.
type sessionsSubscription struct {
	aggregate string
	orgID     int64
	telemetry telemetry.Emitter
}

func newSessionsSubscription(aggregate string, extra *ExtraFields, emitter telemetry.Emitter) (*sessionsSubscription, error) {
	if extra == nil || extra.OrganizationID == nil {
		return nil, ierr.NewError("organization_id is a required param when building a query for a sessions subscription").
			Mark(ierr.ErrInvalidSubscription)
	}
	return &sessionsSubscription{
		aggregate: aggregate,
		orgID:     *extra.OrganizationID,
		telemetry: emitter,
	}, nil
}

func (s *sessionsSubscription) Dataset() types.Dataset { return types.DatasetSessions }

func (s *sessionsSubscription) EntityKind() types.EntityKind { return types.EntityKindSessions }

func (s *sessionsSubscription) TimeColumn() string {
	return types.EntityKindSessions.TimeColumn()
}

func (s *sessionsSubscription) GetEntityExtraParams() map[string]interface{} {
	return map[string]interface{}{
		"organization": s.orgID,
	}
}

func (s *sessionsSubscription) BuildQuery(ctx context.Context, query string, projectIDs []int64, environment string) (*QuerySpec, error) {
	if err := rejectBlockedFilterKeys(query); err != nil {
		return nil, err
	}

	countCol := sessionCountRe.FindString(s.aggregate)
	if countCol == "" {
		return nil, ierr.NewError("only crash free percentage queries are supported for subscriptions over the sessions dataset").
			WithReportableDetails(map[string]interface{}{
				"aggregate": s.aggregate,
			}).
			Mark(ierr.ErrUnsupportedSubscription)
	}

	// The derived total count rides along with the primary aggregate so
	// minimum-threshold checks need no second query.
	aggregations := []string{
		s.aggregate,
		fmt.Sprintf("identity(%s) AS %s", countCol, types.CrashRateAlertSessionCountAlias),
	}

	return &QuerySpec{
		Dataset:            types.DatasetSessions,
		EntityKind:         types.EntityKindSessions,
		TimeColumn:         s.TimeColumn(),
		SelectedColumns:    aggregations,
		Query:              query,
		ProjectIDs:         projectIDs,
		Environment:        environment,
		FunctionAllowlist:  []string{"identity"},
		BlockedFilterKeys:  alertBlockedFields,
		SkipTimeConditions: true,
		ExtraParams:        s.GetEntityExtraParams(),
	}, nil
}

func (s *sessionsSubscription) AggregateQueryResults(ctx context.Context, rows []Row, alias string) ([]Row, error) {
	if len(rows) != 1 {
		// Backend contract violation, not bad user input.
		return nil, ierr.NewErrorf("sessions aggregation expected exactly one row, got %d", len(rows)).
			Mark(ierr.ErrInternal)
	}

	colName := aliasOrDefault(alias)
	out := Row{}
	for k, v := range rows[0] {
		out[k] = v
	}

	if value, ok := asFloat(out[colName]); ok && out[colName] != nil {
		// The stored value is a crash-rate fraction; flip it into a
		// crash-free percentage.
		out[colName] = roundToThree((1 - value) * 100)
	} else {
		s.telemetry.Incr(sessionsNoDataCounter, nil, 1.0)
	}

	return []Row{out}, nil
}
