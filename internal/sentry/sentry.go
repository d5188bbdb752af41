package sentry

import (
	"time"

	"github.com/crashwatch/crashwatch/internal/config"
	"github.com/crashwatch/crashwatch/internal/logger"
	sentrygo "github.com/getsentry/sentry-go"
)

// Service wraps Sentry error reporting. All methods are safe to call when
// Sentry is disabled.
type Service struct {
	cfg *config.Configuration
	log *logger.Logger
}

// NewService initializes the Sentry SDK if enabled.
func NewService(cfg *config.Configuration, log *logger.Logger) (*Service, error) {
	s := &Service{cfg: cfg, log: log}
	if cfg == nil || !cfg.Sentry.Enabled {
		return s, nil
	}

	err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Sentry.Enabled
}

// CaptureException reports err to Sentry.
func (s *Service) CaptureException(err error) {
	if !s.enabled() || err == nil {
		return
	}
	sentrygo.CaptureException(err)
}

// Flush drains buffered events. Call on shutdown.
func (s *Service) Flush() {
	if !s.enabled() {
		return
	}
	sentrygo.Flush(2 * time.Second)
}
