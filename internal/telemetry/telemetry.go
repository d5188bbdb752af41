package telemetry

import (
	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/crashwatch/crashwatch/internal/config"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/logger"
)

// Emitter emits fire-and-forget counters. Emission failures are logged and
// swallowed; telemetry must never fail a call.
type Emitter interface {
	Incr(name string, tags []string, rate float64)
	Close() error
}

// statsdEmitter ships counters to a statsd agent.
type statsdEmitter struct {
	client *statsd.Client
	logger *logger.Logger
}

// NewEmitter returns a statsd-backed emitter, or a no-op emitter when
// telemetry is disabled.
func NewEmitter(cfg *config.Configuration, log *logger.Logger) (Emitter, error) {
	if !cfg.Telemetry.Enabled {
		return NewNoopEmitter(), nil
	}

	client, err := statsd.New(cfg.Telemetry.StatsdAddr,
		statsd.WithNamespace(cfg.Telemetry.Namespace+"."),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to statsd").
			WithReportableDetails(map[string]interface{}{
				"statsd_addr": cfg.Telemetry.StatsdAddr,
			}).
			Mark(ierr.ErrInternal)
	}

	return &statsdEmitter{client: client, logger: log}, nil
}

func (e *statsdEmitter) Incr(name string, tags []string, rate float64) {
	if err := e.client.Incr(name, tags, rate); err != nil {
		e.logger.Warnw("failed to emit telemetry counter",
			"counter", name,
			"error", err,
		)
	}
}

func (e *statsdEmitter) Close() error {
	return e.client.Close()
}

// noopEmitter drops all counters.
type noopEmitter struct{}

// NewNoopEmitter returns an emitter that discards everything. Used when
// telemetry is disabled and in tests.
func NewNoopEmitter() Emitter {
	return noopEmitter{}
}

func (noopEmitter) Incr(string, []string, float64) {}
func (noopEmitter) Close() error                   { return nil }
