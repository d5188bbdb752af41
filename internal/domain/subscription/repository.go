package subscription

import (
	"context"
	"time"
)

// QueryRunner executes a built QuerySpec against the analytical store over
// the given time range and returns raw rows for normalization. Independent
// subscriptions may run concurrently; the runner imposes no ordering.
type QueryRunner interface {
	Run(ctx context.Context, spec *QuerySpec, start, end time.Time) ([]Row, error)
}
