package tagindex

import (
	"context"

	"github.com/crashwatch/crashwatch/internal/types"
)

// Repository resolves organization-scoped string tag keys/values and metric
// names to the integer indices the metrics backend stores, and back.
// Implementations may block on network or storage I/O; callers budget
// timeouts via ctx.
type Repository interface {
	// ResolveTagKey resolves a tag key name to its index.
	ResolveTagKey(ctx context.Context, orgID int64, name string) (int64, error)

	// ResolveTagValue resolves a tag value to its index.
	ResolveTagValue(ctx context.Context, orgID int64, value string) (int64, error)

	// ResolveTagValues resolves a batch of tag values, preserving order.
	ResolveTagValues(ctx context.Context, orgID int64, values []string) ([]int64, error)

	// ReverseResolveTagValue maps an index back to its string value. Returns
	// an error marked ierr.ErrNotFound when the index is unknown.
	ReverseResolveTagValue(ctx context.Context, index int64) (string, error)

	// ResolveMetric resolves a metric resource identifier to its index.
	ResolveMetric(ctx context.Context, orgID int64, metricKey types.MRI) (int64, error)
}
