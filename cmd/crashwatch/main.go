package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crashwatch/crashwatch/internal/clickhouse"
	"github.com/crashwatch/crashwatch/internal/config"
	"github.com/crashwatch/crashwatch/internal/logger"
	"github.com/crashwatch/crashwatch/internal/redis"
	chrepo "github.com/crashwatch/crashwatch/internal/repository/clickhouse"
	redisrepo "github.com/crashwatch/crashwatch/internal/repository/redis"
	"github.com/crashwatch/crashwatch/internal/sentry"
	"github.com/crashwatch/crashwatch/internal/service"
	"github.com/crashwatch/crashwatch/internal/telemetry"
	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/samber/lo"
)

// crashwatch evaluates a single alert subscription query against the
// analytical store and prints the normalized result. The alert-rule
// scheduler invokes the same service once per rule per tick.
func main() {
	var (
		dataset    = flag.String("dataset", "", "dataset to query (events, transactions, sessions, metrics)")
		aggregate  = flag.String("aggregate", "", "aggregate expression, e.g. percentage(sessions_crashed, sessions)")
		timeWindow = flag.Int("window", 3600, "evaluation window in seconds")
		query      = flag.String("query", "", "additional filter query, e.g. release:1.2.0")
		projects   = flag.String("projects", "", "comma-separated project ids")
		env        = flag.String("environment", "", "environment name (optional)")
		orgID      = flag.Int64("org", 0, "organization id (required for sessions/metrics)")
	)
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}

	sentrySvc, err := sentry.NewService(cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize sentry: %v", err)
	}
	defer sentrySvc.Flush()

	emitter, err := telemetry.NewEmitter(cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer emitter.Close()

	store, err := clickhouse.NewClickHouseStore(cfg, log)
	if err != nil {
		log.Fatalf("failed to connect to clickhouse: %v", err)
	}
	defer store.Close()

	redisClient, err := redis.NewClient(cfg, log)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	svc := service.NewSubscriptionService(service.ServiceParams{
		Config:       cfg,
		Logger:       log,
		Telemetry:    emitter,
		Sentry:       sentrySvc,
		TagIndexRepo: redisrepo.NewTagIndexRepository(redisClient, log),
		QueryRunner:  chrepo.NewSubscriptionQueryRepository(store, log),
	})

	req := &service.EvaluateSubscriptionRequest{
		Dataset:     types.Dataset(*dataset),
		Aggregate:   *aggregate,
		TimeWindow:  *timeWindow,
		Query:       *query,
		ProjectIDs:  parseProjectIDs(*projects),
		Environment: *env,
	}
	if *orgID != 0 {
		req.OrganizationID = lo.ToPtr(*orgID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := svc.EvaluateSubscription(ctx, req)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}
	fmt.Println(string(out))
}

func parseProjectIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
