// Package camps provides the camp lifecycle module: the admin surface over the
// milestone scheduler and the provisioning workflow.
package camps

import (
	"summercamp_backend/internal/camps/handler"
	apphttp "summercamp_backend/internal/http"
	"summercamp_backend/platform/validator"
)

// Module is the camps bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the camps module around an already wired scheduler and workflow.
func NewModule(jobs handler.JobManager, provisioner handler.ProvisioningRunner, val *validator.Validator) *Module {
	return &Module{handler: handler.New(jobs, provisioner, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "camps"
}

// RegisterRoutes mounts the admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
