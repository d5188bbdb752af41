package clickhouse

import (
	"context"
	"strings"
	"time"

	"github.com/crashwatch/crashwatch/internal/clickhouse"
	"github.com/crashwatch/crashwatch/internal/domain/subscription"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/logger"
	"github.com/crashwatch/crashwatch/internal/types"
)

// entityTables maps each entity kind to its backing table.
var entityTables = map[types.EntityKind]string{
	types.EntityKindEvents:          "events",
	types.EntityKindTransactions:    "transactions",
	types.EntityKindSessions:        "sessions",
	types.EntityKindMetricsCounters: "metrics_counters",
	types.EntityKindMetricsSets:     "metrics_sets",
}

// searchColumns maps search-syntax field names to physical columns. Fields
// absent here fall back to dotted-name flattening.
var searchColumns = map[string]string{
	"event.type": "type",
	"release":    "release",
}

// SubscriptionQueryRepository renders a QuerySpec to ClickHouse SQL and
// executes it, returning raw rows for normalization.
type SubscriptionQueryRepository struct {
	store  *clickhouse.ClickHouseStore
	logger *logger.Logger
}

func NewSubscriptionQueryRepository(store *clickhouse.ClickHouseStore, logger *logger.Logger) subscription.QueryRunner {
	return &SubscriptionQueryRepository{store: store, logger: logger}
}

// Run executes the query spec over [start, end) and returns rows as
// field->value maps keyed by the selected column aliases.
func (r *SubscriptionQueryRepository) Run(ctx context.Context, spec *subscription.QuerySpec, start, end time.Time) ([]subscription.Row, error) {
	span := StartRepositorySpan(ctx, "subscription_query", "run", map[string]interface{}{
		"entity_kind": spec.EntityKind,
		"dataset":     spec.Dataset,
	})
	defer FinishSpan(span)

	query, args, err := r.buildSQL(spec, start, end)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	r.logger.Debugw("executing subscription query",
		"query", query,
		"args", args,
		"entity_kind", spec.EntityKind,
	)

	rows, err := r.store.GetConn().Query(ctx, query, args...)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to execute subscription query").
			WithReportableDetails(map[string]interface{}{
				"entity_kind": spec.EntityKind,
			}).
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	columns := rows.Columns()
	columnTypes := rows.ColumnTypes()

	var out []subscription.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		for i, ct := range columnTypes {
			values[i] = newScanTarget(ct.ScanType().String())
		}
		if err := rows.Scan(values...); err != nil {
			SetSpanError(span, err)
			return nil, ierr.WithError(err).
				WithHint("Failed to scan subscription query row").
				Mark(ierr.ErrDatabase)
		}

		row := subscription.Row{}
		for i, col := range columns {
			row[col] = deref(values[i])
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Error occurred during row iteration").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return out, nil
}

// buildSQL renders the spec. The filter query arrives pre-scoped: the
// subscription variants already ANDed in dataset conditions and rejected
// blocked fields.
func (r *SubscriptionQueryRepository) buildSQL(spec *subscription.QuerySpec, start, end time.Time) (string, []interface{}, error) {
	table, ok := entityTables[spec.EntityKind]
	if !ok {
		return "", nil, ierr.NewErrorf("no table mapped for entity kind %s", spec.EntityKind).
			Mark(ierr.ErrInternal)
	}

	var sb strings.Builder
	args := []interface{}{}

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(spec.SelectedColumns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	sb.WriteString(" WHERE ")
	sb.WriteString(spec.TimeColumn)
	sb.WriteString(" >= ? AND ")
	sb.WriteString(spec.TimeColumn)
	sb.WriteString(" < ?")
	args = append(args, start.UTC(), end.UTC())

	if len(spec.ProjectIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(spec.ProjectIDs)), ", ")
		sb.WriteString(" AND project_id IN (" + placeholders + ")")
		for _, id := range spec.ProjectIDs {
			args = append(args, id)
		}
	}

	if spec.Environment != "" && spec.Dataset != types.DatasetMetrics {
		// Metrics queries carry the environment as a resolved tag condition
		// instead.
		sb.WriteString(" AND environment = ?")
		args = append(args, spec.Environment)
	}

	for _, cond := range spec.Conditions {
		clause, condArgs, err := renderCondition(cond)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND " + clause)
		args = append(args, condArgs...)
	}

	if spec.Granularity > 0 {
		// The metrics tables materialize one row set per granularity.
		sb.WriteString(" AND granularity = ?")
		args = append(args, spec.Granularity)
	}

	if spec.Query != "" {
		clause, filterArgs, err := renderSearchFilter(spec.Query, spec.BlockedFilterKeys)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND (" + clause + ")")
		args = append(args, filterArgs...)
	}

	return sb.String(), args, nil
}

// renderCondition renders a structured extra condition.
func renderCondition(cond subscription.Condition) (string, []interface{}, error) {
	switch cond.Op {
	case subscription.OpEq:
		return cond.Column + " = ?", []interface{}{cond.Value}, nil
	case subscription.OpIn:
		values, ok := cond.Value.([]int64)
		if !ok {
			return "", nil, ierr.NewErrorf("IN condition on %s requires an int64 slice value", cond.Column).
				Mark(ierr.ErrInternal)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		args := make([]interface{}, len(values))
		for i, v := range values {
			args[i] = v
		}
		return cond.Column + " IN (" + placeholders + ")", args, nil
	default:
		return "", nil, ierr.NewErrorf("unsupported condition operator %q", cond.Op).
			Mark(ierr.ErrInternal)
	}
}

// renderSearchFilter translates the alert filter syntax into SQL. Supported
// shapes are the ones the subscription layer produces: `key:value` terms
// joined by AND/OR, optionally parenthesized.
func renderSearchFilter(query string, blockedKeys map[string]struct{}) (string, []interface{}, error) {
	var sb strings.Builder
	args := []interface{}{}

	for i, token := range strings.Fields(query) {
		if i > 0 {
			sb.WriteString(" ")
		}

		upper := strings.ToUpper(token)
		if upper == "AND" || upper == "OR" {
			sb.WriteString(upper)
			continue
		}

		prefix, suffix := splitParens(token)
		term := strings.TrimPrefix(strings.TrimSuffix(token, suffix), prefix)

		key, value, found := strings.Cut(term, ":")
		if !found {
			return "", nil, ierr.NewErrorf("unsupported filter term %q", term).
				WithHint("Alert subscription filters must be key:value terms").
				Mark(ierr.ErrValidation)
		}
		if _, blocked := blockedKeys[key]; blocked {
			return "", nil, ierr.NewErrorf("invalid key for this search: %s", key).
				Mark(ierr.ErrValidation)
		}

		sb.WriteString(prefix)
		sb.WriteString(searchColumn(key) + " = ?")
		sb.WriteString(suffix)
		args = append(args, value)
	}

	return sb.String(), args, nil
}

// splitParens peels leading '(' and trailing ')' runs off a token.
func splitParens(token string) (prefix, suffix string) {
	trimmedLeft := strings.TrimLeft(token, "(")
	prefix = token[:len(token)-len(trimmedLeft)]
	trimmedRight := strings.TrimRight(trimmedLeft, ")")
	suffix = trimmedLeft[len(trimmedRight):]
	return prefix, suffix
}

// searchColumn maps a search field name to a physical column.
func searchColumn(key string) string {
	if col, ok := searchColumns[key]; ok {
		return col
	}
	return strings.ReplaceAll(key, ".", "_")
}

// newScanTarget allocates a scan destination for the driver's scan type.
// Nullable aggregate results come back as pointer types.
func newScanTarget(scanType string) interface{} {
	switch scanType {
	case "float64", "*float64":
		return new(*float64)
	case "float32", "*float32":
		return new(*float32)
	case "uint64", "*uint64":
		return new(*uint64)
	case "int64", "*int64":
		return new(*int64)
	case "string", "*string":
		return new(*string)
	default:
		return new(interface{})
	}
}

// deref unwraps scan targets back into plain values, keeping nil for NULLs.
func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case **float64:
		if *p == nil {
			return nil
		}
		return **p
	case **float32:
		if *p == nil {
			return nil
		}
		return float64(**p)
	case **uint64:
		if *p == nil {
			return nil
		}
		return int64(**p)
	case **int64:
		if *p == nil {
			return nil
		}
		return **p
	case **string:
		if *p == nil {
			return nil
		}
		return **p
	case *interface{}:
		return *p
	default:
		return v
	}
}
