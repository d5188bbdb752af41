package subscription

import (
	"context"

	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/shopspring/decimal"
)

// Row is a single raw result row from the query executor, field name to value.
type Row map[string]interface{}

// ConditionOp is a comparison operator in an extra query condition.
type ConditionOp string

const (
	OpEq ConditionOp = "="
	OpIn ConditionOp = "IN"
)

// Condition is an extra filter ANDed into the outgoing backend query, on top
// of whatever the user's filter string expresses.
type Condition struct {
	Column string
	Op     ConditionOp
	Value  interface{}
}

// QuerySpec is the fully-qualified backend query handed to the query
// executor. The executor treats it as opaque input; this package never
// renders SQL itself.
type QuerySpec struct {
	Dataset         types.Dataset
	EntityKind      types.EntityKind
	TimeColumn      string
	SelectedColumns []string
	Query           string
	Conditions      []Condition
	ProjectIDs      []int64
	Environment     string
	Granularity     int

	// FunctionAllowlist names backend functions the executor may accept in
	// selected columns beyond its defaults.
	FunctionAllowlist []string

	// BlockedFilterKeys are fields the executor must never accept as raw
	// user filters for alert subscriptions.
	BlockedFilterKeys map[string]struct{}

	// SkipTimeConditions tells the executor that the caller owns the time
	// window; the spec carries no start/end of its own.
	SkipTimeConditions bool

	// ExtraParams are backend-specific parameters (organization id,
	// granularity) merged in from the subscription.
	ExtraParams map[string]interface{}
}

// alertBlockedFields are never permitted to reach the backend as raw user
// filters for alert subscriptions.
var alertBlockedFields = map[string]struct{}{
	"start":             {},
	"end":               {},
	"last_seen()":       {},
	"time":              {},
	"timestamp":         {},
	"timestamp.to_hour": {},
	"timestamp.to_day":  {},
}

// EntitySubscription is the polymorphic core: one implementation per entity
// kind. Each builds a backend-specific query spec and normalizes raw rows
// into the canonical single-row result.
//
// An instance is created once per alert-rule evaluation, builds exactly one
// query, consumes exactly one result batch, then is discarded. Fields are
// set at construction and never mutated.
type EntitySubscription interface {
	// Dataset returns the logical dataset this subscription queries.
	Dataset() types.Dataset

	// EntityKind returns the storage entity the subscription was routed to.
	EntityKind() types.EntityKind

	// TimeColumn returns the entity's backend time column.
	TimeColumn() string

	// GetEntityExtraParams returns backend-specific parameters to merge into
	// the outgoing query spec.
	GetEntityExtraParams() map[string]interface{}

	// BuildQuery produces the fully-qualified backend query. environment is
	// the environment name, empty for none. Fails with an error marked
	// ierr.ErrUnsupportedSubscription for conditions structurally invalid
	// for the variant.
	BuildQuery(ctx context.Context, query string, projectIDs []int64, environment string) (*QuerySpec, error)

	// AggregateQueryResults transforms raw backend rows into a single-row
	// result holding the canonical aggregate field (alias overrides the
	// default name). A nil value in the row means no data. Pure in its
	// inputs: calling it twice on the same rows yields identical output.
	AggregateQueryResults(ctx context.Context, rows []Row, alias string) ([]Row, error)
}

// aliasOrDefault picks the canonical result column name.
func aliasOrDefault(alias string) string {
	if alias != "" {
		return alias
	}
	return types.CrashRateAlertAggregateAlias
}

// roundToThree rounds a percentage to the canonical 3 decimal places.
func roundToThree(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

// asFloat coerces the numeric column types the backend driver hands back.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asInt coerces the integer column types the backend driver hands back.
func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
