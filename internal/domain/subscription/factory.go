package subscription

import (
	"context"

	"github.com/crashwatch/crashwatch/internal/domain/tagindex"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/telemetry"
	"github.com/crashwatch/crashwatch/internal/types"
)

// ExtraFields carries the backend-specific construction parameters.
// OrganizationID is required for sessions and metrics subscriptions;
// EventTypes is only meaningful for events and transactions.
type ExtraFields struct {
	OrganizationID *int64
	EventTypes     []types.EventType
}

// Factory constructs the correct EntitySubscription variant for a dataset
// and aggregate. It owns the collaborator handles the variants need.
type Factory struct {
	tagIndex  tagindex.Repository
	telemetry telemetry.Emitter
}

// NewFactory creates a subscription factory.
func NewFactory(tagIndex tagindex.Repository, emitter telemetry.Emitter) *Factory {
	if emitter == nil {
		emitter = telemetry.NewNoopEmitter()
	}
	return &Factory{
		tagIndex:  tagIndex,
		telemetry: emitter,
	}
}

// NewEntitySubscription routes to the correct EntitySubscription variant
// based on the dataset, validating the aggregate for the percentage-based
// datasets. timeWindow is in seconds. Construction-time failures abort
// immediately; no partial subscription is ever returned.
func (f *Factory) NewEntitySubscription(ctx context.Context, dataset types.Dataset, aggregate string, timeWindow int, extra *ExtraFields) (EntitySubscription, error) {
	entityKind, err := MapAggregateToEntityKind(dataset, aggregate)
	if err != nil {
		return nil, err
	}

	switch entityKind {
	case types.EntityKindEvents, types.EntityKindTransactions:
		return newEventsSubscription(dataset, entityKind, aggregate, extra), nil
	case types.EntityKindSessions:
		return newSessionsSubscription(aggregate, extra, f.telemetry)
	case types.EntityKindMetricsCounters, types.EntityKindMetricsSets:
		return newMetricsSubscription(ctx, entityKind, aggregate, timeWindow, extra, f.tagIndex, f.telemetry)
	default:
		return nil, ierr.NewErrorf("no subscription implementation for entity kind %s", entityKind).
			Mark(ierr.ErrUnsupportedSubscription)
	}
}
