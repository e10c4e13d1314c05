// Package webhook is the telephony provider ingress. It orchestrates the
// event pipeline: state store upsert, agent and customer resolution, the
// post-call decision engine, and the detached scoring and enrichment tasks.
package webhook

import (
	"context"
	"errors"
	"strings"

	"callops_backend/internal/calls"
	"callops_backend/internal/directory"
	"callops_backend/internal/events"
	"callops_backend/internal/followup"
	"callops_backend/internal/scheduler"
	"callops_backend/internal/tickets"
	"callops_backend/platform/apperr"
	"callops_backend/platform/logger"
	"callops_backend/platform/tasks"

	"github.com/google/uuid"
)

// CallIngestor is the state store surface.
type CallIngestor interface {
	Ingest(ctx context.Context, orgID, agentID uuid.UUID, ev calls.Event) (calls.CallRecord, error)
	LinkCustomer(ctx context.Context, callID, customerID uuid.UUID) error
}

// Resolver maps agent references and provisions customers.
type Resolver interface {
	ResolveAgent(ctx context.Context, externalAgentID string) (directory.Agent, error)
	Organization(ctx context.Context, orgID uuid.UUID) (directory.Organization, error)
	EnsureCustomer(ctx context.Context, orgID uuid.UUID, rawPhone string) (directory.Customer, error)
}

// DecisionEngine runs the synchronous follow-up stages.
type DecisionEngine interface {
	Run(ctx context.Context, in followup.Input)
}

// Scorer is the quality engine surface.
type Scorer interface {
	EnsureTicket(ctx context.Context, call calls.CallRecord) (tickets.Ticket, error)
	Score(ctx context.Context, ticket tickets.Ticket, call calls.CallRecord, org directory.Organization) error
}

// Enricher applies customer attribute extraction.
type Enricher interface {
	Enrich(ctx context.Context, customerID uuid.UUID, transcript string) error
}

// Service orchestrates one webhook delivery as a request-scoped unit of
// work. The response contract: nil for handled or intentionally ignored
// events, *apperr.Error with KindInternal for persistence failures the
// provider should retry.
type Service struct {
	calls      CallIngestor
	resolver   Resolver
	engine     DecisionEngine
	scorer     Scorer
	enricher   Enricher
	runner     *tasks.Runner
	recordings scheduler.RecordingScheduler
	bus        events.Bus
	log        *logger.Logger
}

// NewService creates the webhook orchestrator. recordings may be nil when
// no durable queue is configured.
func NewService(
	callIngestor CallIngestor,
	resolver Resolver,
	engine DecisionEngine,
	scorer Scorer,
	enricher Enricher,
	runner *tasks.Runner,
	recordings scheduler.RecordingScheduler,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		calls:      callIngestor,
		resolver:   resolver,
		engine:     engine,
		scorer:     scorer,
		enricher:   enricher,
		runner:     runner,
		recordings: recordings,
		bus:        bus,
		log:        log,
	}
}

// HandleEvent processes one delivery. Deliveries are at-least-once and may
// arrive out of order; idempotency comes from the storage layer, not from
// rejecting duplicates here.
func (s *Service) HandleEvent(ctx context.Context, env Envelope) error {
	ev := env.ToEvent()

	// Pre-call events carry no call id to persist against.
	if ev.IsPreCall() {
		s.log.WebhookEvent(ev.Kind, "", "discarded")
		return nil
	}

	// Missing identifiers are a provider quirk, not an error worth retrying.
	if ev.ExternalCallID == "" || ev.ExternalAgentID == "" {
		s.log.WebhookEvent(ev.Kind, ev.ExternalCallID, "ignored")
		return nil
	}

	agent, err := s.resolver.ResolveAgent(ctx, ev.ExternalAgentID)
	if err != nil {
		// Configuration defect on the tenant side; retrying will not help.
		s.log.Warn("no agent for external id, acknowledging",
			"external_agent_id", ev.ExternalAgentID, "event", ev.Kind)
		return nil
	}

	call, err := s.calls.Ingest(ctx, agent.OrganizationID, agent.ID, ev)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "persist call event", err)
	}

	customer, err := s.resolveCustomer(ctx, agent.OrganizationID, call)
	if err != nil {
		return err
	}

	switch ev.Kind {
	case calls.KindCallEnded:
		s.handleEnded(ctx, call)
	case calls.KindCallAnalyzed:
		if err := s.handleAnalyzed(ctx, ev, call, agent, customer); err != nil {
			return err
		}
	}

	s.log.WebhookEvent(ev.Kind, ev.ExternalCallID, "handled")
	return nil
}

// resolveCustomer provisions the customer and links it to the call. A call
// without a usable phone number simply has no customer.
func (s *Service) resolveCustomer(ctx context.Context, orgID uuid.UUID, call calls.CallRecord) (directory.Customer, error) {
	if call.CustomerPhone == "" {
		return directory.Customer{}, nil
	}

	customer, err := s.resolver.EnsureCustomer(ctx, orgID, call.CustomerPhone)
	if err != nil {
		if errors.Is(err, directory.ErrCustomerNotFound) {
			return directory.Customer{}, nil
		}
		return directory.Customer{}, apperr.Wrap(apperr.KindInternal, "provision customer", err)
	}

	if call.CustomerID == nil {
		if err := s.calls.LinkCustomer(ctx, call.ID, customer.ID); err != nil {
			s.log.Warn("link customer failed", "call_id", call.ID, "error", err)
		}
	}
	return customer, nil
}

// handleEnded publishes the domain event and schedules recording archival
// before the provider URL expires.
func (s *Service) handleEnded(ctx context.Context, call calls.CallRecord) {
	recordingURL := ""
	if call.RecordingURL != nil {
		recordingURL = *call.RecordingURL
	}

	s.bus.Publish(ctx, events.CallEnded{
		BaseEvent:      events.NewBaseEvent(),
		CallID:         call.ID,
		ExternalCallID: call.ExternalCallID,
		TenantID:       call.OrganizationID,
		RecordingURL:   recordingURL,
	})

	if s.recordings == nil || recordingURL == "" {
		return
	}
	err := s.recordings.ScheduleRecordingArchive(ctx, scheduler.RecordingArchivePayload{
		CallID:       call.ID.String(),
		RecordingURL: recordingURL,
	})
	if err != nil {
		s.log.Warn("enqueue recording archive failed", "call_id", call.ID, "error", err)
	}
}

// handleAnalyzed runs the decision engine synchronously and spawns scoring
// and enrichment as detached tasks that outlive the response.
func (s *Service) handleAnalyzed(ctx context.Context, ev calls.Event, call calls.CallRecord, agent directory.Agent, customer directory.Customer) error {
	org, err := s.resolver.Organization(ctx, agent.OrganizationID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "load organization", err)
	}

	in := followup.Input{
		Call:          call,
		Org:           org,
		Agent:         agent,
		Customer:      customer,
		UserResponded: ev.UserResponded != nil && *ev.UserResponded,
	}
	s.engine.Run(ctx, in)

	s.bus.Publish(ctx, events.CallAnalyzed{
		BaseEvent:      events.NewBaseEvent(),
		CallID:         call.ID,
		ExternalCallID: call.ExternalCallID,
		TenantID:       org.ID,
	})

	if call.Transcript != nil && strings.TrimSpace(*call.Transcript) != "" {
		ticket, err := s.scorer.EnsureTicket(ctx, call)
		if err != nil {
			s.log.StageError("ensure_ticket", call.ID.String(), err)
		} else {
			s.runner.Go(ctx, "quality_score", func(taskCtx context.Context) error {
				return s.scorer.Score(taskCtx, ticket, call, org)
			})
		}

		if customer.ID != uuid.Nil {
			transcript := *call.Transcript
			customerID := customer.ID
			s.runner.Go(ctx, "customer_enrichment", func(taskCtx context.Context) error {
				return s.enricher.Enrich(taskCtx, customerID, transcript)
			})
		}
	}
	return nil
}
