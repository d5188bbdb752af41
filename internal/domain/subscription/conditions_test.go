package subscription

import (
	"testing"

	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestApplyDatasetConditions(t *testing.T) {
	t.Run("transactions queries are untouched outside discover", func(t *testing.T) {
		got := ApplyDatasetConditions(types.DatasetTransactions, "release:1.0", nil, false)
		assert.Equal(t, "release:1.0", got)
	})

	t.Run("transactions queries get the event type clause in discover", func(t *testing.T) {
		got := ApplyDatasetConditions(types.DatasetTransactions, "release:1.0", nil, true)
		assert.Equal(t, "(event.type:transaction) AND (release:1.0)", got)
	})

	t.Run("events default clause stands alone for an empty query", func(t *testing.T) {
		got := ApplyDatasetConditions(types.DatasetEvents, "", nil, false)
		assert.Equal(t, "event.type:error", got)
	})

	t.Run("events default clause is ANDed into a non-empty query", func(t *testing.T) {
		got := ApplyDatasetConditions(types.DatasetEvents, "release:1.0", nil, false)
		assert.Equal(t, "(event.type:error) AND (release:1.0)", got)
	})

	t.Run("explicit event types are ORed together", func(t *testing.T) {
		got := ApplyDatasetConditions(types.DatasetEvents, "release:1.0",
			[]types.EventType{types.EventTypeError, types.EventTypeDefault}, false)
		assert.Equal(t, "(event.type:error OR event.type:default) AND (release:1.0)", got)
	})

	t.Run("datasets without a default clause pass through", func(t *testing.T) {
		got := ApplyDatasetConditions(types.DatasetSessions, "release:1.0", nil, false)
		assert.Equal(t, "release:1.0", got)
	})
}
