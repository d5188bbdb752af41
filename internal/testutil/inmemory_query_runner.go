package testutil

import (
	"context"
	"time"

	"github.com/crashwatch/crashwatch/internal/domain/subscription"
)

// InMemoryQueryRunner implements subscription.QueryRunner for tests. It
// records the specs it receives and replays canned rows.
type InMemoryQueryRunner struct {
	Rows  []subscription.Row
	Err   error
	Specs []*subscription.QuerySpec
}

// NewInMemoryQueryRunner creates a runner that returns the given rows.
func NewInMemoryQueryRunner(rows []subscription.Row) *InMemoryQueryRunner {
	return &InMemoryQueryRunner{Rows: rows}
}

func (r *InMemoryQueryRunner) Run(ctx context.Context, spec *subscription.QuerySpec, start, end time.Time) ([]subscription.Row, error) {
	r.Specs = append(r.Specs, spec)
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Rows, nil
}

var _ subscription.QueryRunner = (*InMemoryQueryRunner)(nil)
