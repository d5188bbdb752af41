package redis

import (
	"context"
	"fmt"

	"github.com/crashwatch/crashwatch/internal/domain/tagindex"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/logger"
	internalredis "github.com/crashwatch/crashwatch/internal/redis"
	"github.com/crashwatch/crashwatch/internal/types"
	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
)

const (
	tagKeyPrefix      = "tagindex:key"
	tagValuePrefix    = "tagindex:value"
	tagValueRevPrefix = "tagindex:value:rev"
	metricPrefix      = "tagindex:metric"
)

// TagIndexRepository resolves tag keys/values and metric names against the
// shared Redis index, with an in-process cache in front. Indices are written
// by the ingestion pipeline; this repository only reads.
type TagIndexRepository struct {
	client *internalredis.Client
	cache  *gocache.Cache
	logger *logger.Logger
}

func NewTagIndexRepository(client *internalredis.Client, log *logger.Logger) tagindex.Repository {
	return &TagIndexRepository{
		client: client,
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: log,
	}
}

func (r *TagIndexRepository) ResolveTagKey(ctx context.Context, orgID int64, name string) (int64, error) {
	return r.lookupIndex(ctx, fmt.Sprintf("%s:%d:%s", tagKeyPrefix, orgID, name))
}

func (r *TagIndexRepository) ResolveTagValue(ctx context.Context, orgID int64, value string) (int64, error) {
	return r.lookupIndex(ctx, fmt.Sprintf("%s:%d:%s", tagValuePrefix, orgID, value))
}

func (r *TagIndexRepository) ResolveTagValues(ctx context.Context, orgID int64, values []string) ([]int64, error) {
	out := make([]int64, len(values))
	for i, v := range values {
		idx, err := r.ResolveTagValue(ctx, orgID, v)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func (r *TagIndexRepository) ReverseResolveTagValue(ctx context.Context, index int64) (string, error) {
	cacheKey := fmt.Sprintf("%s:%d", tagValueRevPrefix, index)
	if cached, found := r.cache.Get(cacheKey); found {
		if s, ok := cached.(string); ok {
			return s, nil
		}
	}

	value, err := r.client.GetClient().Get(ctx, cacheKey).Result()
	if err == goredis.Nil {
		return "", ierr.NewErrorf("no tag value indexed at %d", index).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to reverse resolve tag value").
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(cacheKey, value, gocache.NoExpiration)
	return value, nil
}

func (r *TagIndexRepository) ResolveMetric(ctx context.Context, orgID int64, metricKey types.MRI) (int64, error) {
	return r.lookupIndex(ctx, fmt.Sprintf("%s:%d:%s", metricPrefix, orgID, metricKey))
}

// lookupIndex reads an integer index through the in-process cache. Indices
// are append-only, so cached entries never go stale.
func (r *TagIndexRepository) lookupIndex(ctx context.Context, key string) (int64, error) {
	if cached, found := r.cache.Get(key); found {
		if idx, ok := cached.(int64); ok {
			return idx, nil
		}
	}

	idx, err := r.client.GetClient().Get(ctx, key).Int64()
	if err == goredis.Nil {
		return 0, ierr.NewErrorf("no index found for %s", key).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to resolve index").
			WithReportableDetails(map[string]interface{}{
				"key": key,
			}).
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(key, idx, gocache.NoExpiration)
	return idx, nil
}
