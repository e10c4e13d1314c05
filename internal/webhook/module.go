package webhook

import (
	"callops_backend/internal/calls"
	"callops_backend/internal/directory"
	"callops_backend/internal/enrichment"
	"callops_backend/internal/events"
	"callops_backend/internal/followup"
	apphttp "callops_backend/internal/http"
	"callops_backend/internal/quality"
	"callops_backend/internal/scheduler"
	"callops_backend/platform/logger"
	"callops_backend/platform/tasks"
	"callops_backend/platform/validator"
)

// Module is the webhook ingress module implementing http.Module.
type Module struct {
	handler *Handler
	secret  string
}

// Deps are the collaborating services the orchestrator depends on.
type Deps struct {
	Calls      *calls.Service
	Resolver   *directory.Resolver
	Followup   *followup.Service
	Quality    *quality.Service
	Enrichment *enrichment.Service
	Runner     *tasks.Runner
	Recordings scheduler.RecordingScheduler
	Bus        events.Bus
}

// NewModule wires the webhook ingress.
func NewModule(deps Deps, secret string, val *validator.Validator, log *logger.Logger) *Module {
	service := NewService(
		deps.Calls,
		deps.Resolver,
		deps.Followup,
		deps.Quality,
		deps.Enrichment,
		deps.Runner,
		deps.Recordings,
		deps.Bus,
		log,
	)
	return &Module{
		handler: NewHandler(service, val, log),
		secret:  secret,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the provider webhook endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhooks")
	group.Use(SharedSecretMiddleware(m.secret))
	group.POST("/calls", m.handler.HandleCallEvent)
}

var _ apphttp.Module = (*Module)(nil)
