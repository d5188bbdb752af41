package service

import (
	"github.com/crashwatch/crashwatch/internal/config"
	"github.com/crashwatch/crashwatch/internal/domain/subscription"
	"github.com/crashwatch/crashwatch/internal/domain/tagindex"
	"github.com/crashwatch/crashwatch/internal/logger"
	"github.com/crashwatch/crashwatch/internal/sentry"
	"github.com/crashwatch/crashwatch/internal/telemetry"
)

// ServiceParams holds the shared dependencies injected into services.
type ServiceParams struct {
	Config       *config.Configuration
	Logger       *logger.Logger
	Telemetry    telemetry.Emitter
	Sentry       *sentry.Service
	TagIndexRepo tagindex.Repository
	QueryRunner  subscription.QueryRunner
}
