package service

import (
	"context"
	"time"

	"github.com/crashwatch/crashwatch/internal/domain/subscription"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
)

// SubscriptionService runs one full subscription evaluation: route the
// dataset/aggregate to an entity, build the backend query, execute it and
// normalize the raw rows into the canonical single-row result.
type SubscriptionService interface {
	EvaluateSubscription(ctx context.Context, req *EvaluateSubscriptionRequest) ([]subscription.Row, error)
}

// EvaluateSubscriptionRequest describes one alert-rule evaluation query.
type EvaluateSubscriptionRequest struct {
	Dataset    types.Dataset
	Aggregate  string
	TimeWindow int // seconds
	Query      string
	ProjectIDs []int64

	// Environment name; empty means all environments.
	Environment string

	// OrganizationID is required for sessions and metrics datasets.
	OrganizationID *int64

	// EventTypes scopes events/transactions queries; ignored elsewhere.
	EventTypes []types.EventType

	// Alias overrides the canonical result column name.
	Alias string

	// End of the evaluation window; zero means now.
	End time.Time
}

// Validate validates the request
func (r *EvaluateSubscriptionRequest) Validate() error {
	if err := r.Dataset.Validate(); err != nil {
		return err
	}
	if r.Aggregate == "" {
		return ierr.NewError("aggregate is required").
			Mark(ierr.ErrValidation)
	}
	if r.TimeWindow <= 0 {
		return ierr.NewError("time_window must be a positive number of seconds").
			Mark(ierr.ErrValidation)
	}
	if len(r.ProjectIDs) == 0 {
		return ierr.NewError("at least one project_id is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type subscriptionService struct {
	ServiceParams
	factory *subscription.Factory
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		factory:       subscription.NewFactory(params.TagIndexRepo, params.Telemetry),
	}
}

func (s *subscriptionService) EvaluateSubscription(ctx context.Context, req *EvaluateSubscriptionRequest) ([]subscription.Row, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.factory.NewEntitySubscription(ctx, req.Dataset, req.Aggregate, req.TimeWindow, &subscription.ExtraFields{
		OrganizationID: req.OrganizationID,
		EventTypes:     req.EventTypes,
	})
	if err != nil {
		return nil, err
	}

	spec, err := sub.BuildQuery(ctx, req.Query, req.ProjectIDs, req.Environment)
	if err != nil {
		return nil, err
	}

	end := req.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := end.Add(-time.Duration(req.TimeWindow) * time.Second)

	s.Logger.Debugw("evaluating subscription",
		"dataset", req.Dataset,
		"entity_kind", sub.EntityKind(),
		"aggregate", req.Aggregate,
		"time_window", req.TimeWindow,
		"start", start,
		"end", end,
	)

	rows, err := s.QueryRunner.Run(ctx, spec, start, end)
	if err != nil {
		return nil, err
	}

	result, err := sub.AggregateQueryResults(ctx, rows, req.Alias)
	if err != nil {
		// Normalization only fails on backend contract violations; report
		// loudly instead of coercing a value.
		s.Sentry.CaptureException(err)
		s.Logger.Errorw("subscription result normalization failed",
			"dataset", req.Dataset,
			"entity_kind", sub.EntityKind(),
			"error", err,
		)
		return nil, err
	}

	return result, nil
}
