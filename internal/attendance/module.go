// Package attendance provides the attendance reconciliation module: recognition
// callbacks from the face recognition service and staff photo uploads.
package attendance

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"summercamp_backend/internal/adapters/storage"
	"summercamp_backend/internal/attendance/handler"
	"summercamp_backend/internal/attendance/repository"
	"summercamp_backend/internal/attendance/service"
	"summercamp_backend/internal/events"
	apphttp "summercamp_backend/internal/http"
	"summercamp_backend/internal/idempotency"
	"summercamp_backend/platform/config"
	"summercamp_backend/platform/logger"
	"summercamp_backend/platform/validator"
)

// Config is what the module reads from the application config.
type Config interface {
	config.IdempotencyConfig
	GetMinioBucketAttendance() string
}

// Module is the attendance bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the attendance module. store may be nil
// when object storage is disabled.
func NewModule(pool *pgxpool.Pool, recognizer service.Recognizer, store storage.FolderStore, cache idempotency.Cache,
	eventBus events.Bus, val *validator.Validator, cfg Config, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), recognizer, store, cache, eventBus, service.Options{
		AttendanceBucket: cfg.GetMinioBucketAttendance(),
		IdempotencyTTL:   cfg.GetIdempotencyTTL(),
	}, log)

	return &Module{
		handler: handler.New(svc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "attendance"
}

// RegisterRoutes mounts the staff and webhook routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/attendance"))
	m.handler.RegisterWebhookRoutes(ctx.Webhook)
}

var _ apphttp.Module = (*Module)(nil)
