package http

import (
	"context"

	"summercamp_backend/platform/config"
	"summercamp_backend/platform/logger"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.ServiceTokenConfig
}

// HealthChecker backs /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is what cmd/api hands to the router once everything is wired.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker // nil skips the dependency check
	Modules []Module
}
