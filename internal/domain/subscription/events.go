package subscription

import (
	"context"
	"strings"

	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
)

// eventsSubscription serves both the events and transactions entities: the
// backend evaluates the raw aggregate expression server-side, so no result
// post-processing is needed.
type eventsSubscription struct {
	dataset    types.Dataset
	entityKind types.EntityKind
	aggregate  string
	eventTypes []types.EventType
}

func newEventsSubscription(dataset types.Dataset, entityKind types.EntityKind, aggregate string, extra *ExtraFields) *eventsSubscription {
	s := &eventsSubscription{
		dataset:    dataset,
		entityKind: entityKind,
		aggregate:  aggregate,
	}
	if extra != nil {
		s.eventTypes = extra.EventTypes
	}
	return s
}

func (s *eventsSubscription) Dataset() types.Dataset { return s.dataset }

func (s *eventsSubscription) EntityKind() types.EntityKind { return s.entityKind }

func (s *eventsSubscription) TimeColumn() string { return s.entityKind.TimeColumn() }

func (s *eventsSubscription) GetEntityExtraParams() map[string]interface{} {
	return map[string]interface{}{}
}

func (s *eventsSubscription) BuildQuery(ctx context.Context, query string, projectIDs []int64, environment string) (*QuerySpec, error) {
	if err := rejectBlockedFilterKeys(query); err != nil {
		return nil, err
	}

	query = ApplyDatasetConditions(s.dataset, query, s.eventTypes, false)

	return &QuerySpec{
		Dataset:            s.dataset,
		EntityKind:         s.entityKind,
		TimeColumn:         s.TimeColumn(),
		SelectedColumns:    []string{s.aggregate},
		Query:              query,
		ProjectIDs:         projectIDs,
		Environment:        environment,
		BlockedFilterKeys:  alertBlockedFields,
		SkipTimeConditions: true,
		ExtraParams:        s.GetEntityExtraParams(),
	}, nil
}

// AggregateQueryResults is a pass-through: the backend already returned the
// aggregate under its own alias.
func (s *eventsSubscription) AggregateQueryResults(ctx context.Context, rows []Row, alias string) ([]Row, error) {
	return rows, nil
}

// rejectBlockedFilterKeys fails when a user filter references a field that is
// never permitted in alert subscription queries. The executor enforces the
// same set; rejecting here surfaces the problem at definition time.
func rejectBlockedFilterKeys(query string) error {
	for _, token := range strings.Fields(query) {
		token = strings.Trim(token, "()")
		key := token
		if idx := strings.Index(token, ":"); idx >= 0 {
			key = token[:idx]
		}
		if _, blocked := alertBlockedFields[key]; blocked {
			return ierr.NewErrorf("invalid key for this search: %s", key).
				WithHint("This field cannot be filtered on in alert subscription queries").
				Mark(ierr.ErrUnsupportedSubscription)
		}
	}
	return nil
}
