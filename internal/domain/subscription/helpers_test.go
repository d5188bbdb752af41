package subscription

import (
	"context"
	"sync"

	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/samber/lo"
)

// recordingEmitter counts telemetry increments per counter name so tests can
// assert on emitted signals.
type recordingEmitter struct {
	mu     sync.Mutex
	counts map[string]int
	tags   map[string][]string
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{
		counts: map[string]int{},
		tags:   map[string][]string{},
	}
}

func (e *recordingEmitter) Incr(name string, tags []string, rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[name]++
	e.tags[name] = tags
}

func (e *recordingEmitter) Close() error { return nil }

func (e *recordingEmitter) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[name]
}

func (e *recordingEmitter) tagsFor(name string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tags[name]
}

// fakeTagIndex is a fixed-table tag index for these tests. The indices are
// deliberately non-sequential so accidental identity mappings fail.
type fakeTagIndex struct {
	keys    map[string]int64
	values  map[string]int64
	reverse map[int64]string
	metrics map[types.MRI]int64
}

func newFakeTagIndex() *fakeTagIndex {
	idx := &fakeTagIndex{
		keys: map[string]int64{
			"session.status": 100,
			"environment":    101,
		},
		values: map[string]int64{
			"crashed":    11,
			"init":       12,
			"production": 13,
		},
		metrics: map[types.MRI]int64{
			types.MRISession: 1000,
			types.MRIUser:    1001,
		},
	}
	idx.reverse = map[int64]string{}
	for v, i := range idx.values {
		idx.reverse[i] = v
	}
	return idx
}

func (f *fakeTagIndex) ResolveTagKey(ctx context.Context, orgID int64, name string) (int64, error) {
	if i, ok := f.keys[name]; ok {
		return i, nil
	}
	return 0, ierr.NewErrorf("no tag key indexed for %s", name).Mark(ierr.ErrNotFound)
}

func (f *fakeTagIndex) ResolveTagValue(ctx context.Context, orgID int64, value string) (int64, error) {
	if i, ok := f.values[value]; ok {
		return i, nil
	}
	return 0, ierr.NewErrorf("no tag value indexed for %s", value).Mark(ierr.ErrNotFound)
}

func (f *fakeTagIndex) ResolveTagValues(ctx context.Context, orgID int64, values []string) ([]int64, error) {
	out := make([]int64, len(values))
	for i, v := range values {
		idx, err := f.ResolveTagValue(ctx, orgID, v)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func (f *fakeTagIndex) ReverseResolveTagValue(ctx context.Context, index int64) (string, error) {
	if v, ok := f.reverse[index]; ok {
		return v, nil
	}
	return "", ierr.NewErrorf("no tag value indexed at %d", index).Mark(ierr.ErrNotFound)
}

func (f *fakeTagIndex) ResolveMetric(ctx context.Context, orgID int64, metricKey types.MRI) (int64, error) {
	if i, ok := f.metrics[metricKey]; ok {
		return i, nil
	}
	return 0, ierr.NewErrorf("no metric indexed for %s", metricKey).Mark(ierr.ErrNotFound)
}

func orgIDPtr(id int64) *int64 { return lo.ToPtr(id) }
