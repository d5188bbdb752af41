package types

import (
	ierr "github.com/crashwatch/crashwatch/internal/errors"
)

// Dataset is the logical grouping an alert subscription queries. A dataset
// may fan out to more than one storage entity (Metrics fans out to counters
// and sets depending on the aggregate).
type Dataset string

const (
	DatasetEvents       Dataset = "events"
	DatasetTransactions Dataset = "transactions"
	DatasetSessions     Dataset = "sessions"
	DatasetMetrics      Dataset = "metrics"
)

func (d Dataset) String() string {
	return string(d)
}

// Validate validates the dataset
func (d Dataset) Validate() error {
	switch d {
	case DatasetEvents, DatasetTransactions, DatasetSessions, DatasetMetrics:
		return nil
	default:
		return ierr.NewErrorf("invalid dataset %q", d).
			WithHint("Dataset must be one of events, transactions, sessions, metrics").
			Mark(ierr.ErrValidation)
	}
}

// EntityKind identifies a concrete storage backend/table family with its own
// schema and time column.
type EntityKind string

const (
	EntityKindEvents          EntityKind = "events"
	EntityKindTransactions    EntityKind = "transactions"
	EntityKindSessions        EntityKind = "sessions"
	EntityKindMetricsCounters EntityKind = "metrics_counters"
	EntityKindMetricsSets     EntityKind = "metrics_sets"
)

func (k EntityKind) String() string {
	return string(k)
}

// entityTimeColumns maps every entity kind to its backend time column.
var entityTimeColumns = map[EntityKind]string{
	EntityKindEvents:          "timestamp",
	EntityKindTransactions:    "finish_ts",
	EntityKindSessions:        "started",
	EntityKindMetricsCounters: "timestamp",
	EntityKindMetricsSets:     "timestamp",
}

// TimeColumn returns the backend time column for the entity kind.
func (k EntityKind) TimeColumn() string {
	return entityTimeColumns[k]
}

// EventType scopes an events/transactions query to a particular event class.
type EventType string

const (
	EventTypeError       EventType = "error"
	EventTypeDefault     EventType = "default"
	EventTypeTransaction EventType = "transaction"
)

func (e EventType) String() string {
	return string(e)
}

// Metric resource identifiers for the two session-health metric streams.
type MRI string

const (
	MRISession MRI = "sentry.sessions.session"
	MRIUser    MRI = "sentry.sessions.user"
)

func (m MRI) String() string {
	return string(m)
}

// Canonical result-row aliases the alert evaluation layer depends on.
const (
	// CrashRateAlertAggregateAlias names the single normalized value column.
	CrashRateAlertAggregateAlias = "crash_rate_alert_aggregate_value"

	// CrashRateAlertSessionCountAlias names the derived total-count column
	// added to sessions queries so minimum-threshold checks can read it.
	CrashRateAlertSessionCountAlias = "crash_free_sessions_count"
)
