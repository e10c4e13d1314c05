package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"callops_backend/internal/calls"
	"callops_backend/internal/directory"
	"callops_backend/internal/events"
	"callops_backend/internal/tickets"
	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

// ResolutionChannelAI marks tickets resolved by the scoring engine.
const ResolutionChannelAI = "ai_quality_review"

// TranscriptAnalyzer is the analysis capability the service depends on.
type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, transcript string) (Result, error)
}

// TicketStore is the persistence surface for tickets and scores.
type TicketStore interface {
	FindByCallID(ctx context.Context, callID uuid.UUID) (tickets.Ticket, error)
	CreateIfAbsent(ctx context.Context, t tickets.Ticket) (tickets.Ticket, error)
	UpdateScoring(ctx context.Context, ticketID uuid.UUID, outcome string, confidence int, channel string, bookingDetails []byte, transcript *string) error
	Resolve(ctx context.Context, ticketID uuid.UUID) error
	UpsertScore(ctx context.Context, s tickets.ScoreRecord) error
}

// EscalationNotifier emails the tenant when a call escalates. A nil
// notifier disables notification.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, toEmail, orgName string, ticketID uuid.UUID, confidence int, summary string) error
}

// Service is the quality scoring engine.
type Service struct {
	analyzer TranscriptAnalyzer
	tickets  TicketStore
	notifier EscalationNotifier
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the scoring engine. notifier may be nil.
func NewService(analyzer TranscriptAnalyzer, ticketStore TicketStore, notifier EscalationNotifier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		analyzer: analyzer,
		tickets:  ticketStore,
		notifier: notifier,
		bus:      bus,
		log:      log,
	}
}

// EnsureTicket guarantees exactly one ticket exists for the call, reusing a
// routing-created one or creating a neutral one. Runs synchronously so the
// detached scoring task always has a ticket to write against.
func (s *Service) EnsureTicket(ctx context.Context, call calls.CallRecord) (tickets.Ticket, error) {
	if existing, err := s.tickets.FindByCallID(ctx, call.ID); err == nil {
		return existing, nil
	}
	t := tickets.Ticket{
		OrganizationID: call.OrganizationID,
		CustomerID:     call.CustomerID,
		CallID:         call.ID,
		Status:         tickets.StatusOpen,
		Priority:       tickets.PriorityMedium,
		Source:         tickets.SourcePhoneCall,
		Description:    "Call pending quality review.",
	}
	created, err := s.tickets.CreateIfAbsent(ctx, t)
	if err != nil {
		return tickets.Ticket{}, fmt.Errorf("ensure ticket for call %s: %w", call.ID, err)
	}
	return created, nil
}

// Score runs the transcript analysis and persists its result. Designed to
// run as a detached task; errors are returned for the task runner to log,
// never propagated to the webhook response. An invalid analysis result
// leaves the ticket and score untouched.
func (s *Service) Score(ctx context.Context, ticket tickets.Ticket, call calls.CallRecord, org directory.Organization) error {
	if call.Transcript == nil || strings.TrimSpace(*call.Transcript) == "" {
		return nil
	}
	transcript := *call.Transcript

	res, err := s.analyzer.Analyze(ctx, transcript)
	if err != nil {
		return fmt.Errorf("score call %s: %w", call.ID, err)
	}

	score := tickets.ScoreRecord{
		TicketID:        ticket.ID,
		Greeting:        res.Scores.Greeting,
		Communication:   res.Scores.Communication,
		ProblemSolving:  res.Scores.ProblemSolving,
		Professionalism: res.Scores.Professionalism,
		Closing:         res.Scores.Closing,
		Total:           res.Scores.Total,
		Feedback:        res.Feedback,
		Outcome:         res.Outcome,
		AvgResponseSecs: res.ResponseTimes.AvgSeconds,
		MaxResponseSecs: res.ResponseTimes.MaxSeconds,
	}
	if err := s.tickets.UpsertScore(ctx, score); err != nil {
		return fmt.Errorf("upsert score for ticket %s: %w", ticket.ID, err)
	}

	booking, err := json.Marshal(res.BookingDetails)
	if err != nil {
		return fmt.Errorf("marshal booking details: %w", err)
	}
	if err := s.tickets.UpdateScoring(ctx, ticket.ID, res.Outcome, res.Confidence, ResolutionChannelAI, booking, &transcript); err != nil {
		return fmt.Errorf("update ticket %s: %w", ticket.ID, err)
	}

	if ShouldAutoResolve(res.Outcome, res.Confidence) {
		if err := s.tickets.Resolve(ctx, ticket.ID); err != nil {
			return fmt.Errorf("resolve ticket %s: %w", ticket.ID, err)
		}
		s.log.Info("ticket auto-resolved",
			"ticket_id", ticket.ID, "outcome", res.Outcome, "confidence", res.Confidence)
	}

	if res.Outcome == OutcomeEscalated {
		s.escalate(ctx, ticket, call, org, res)
	}
	return nil
}

// escalate publishes the escalation event and notifies the tenant.
// Notification failures are logged, never propagated.
func (s *Service) escalate(ctx context.Context, ticket tickets.Ticket, call calls.CallRecord, org directory.Organization, res Result) {
	s.bus.Publish(ctx, events.TicketEscalated{
		BaseEvent:  events.NewBaseEvent(),
		TicketID:   ticket.ID,
		CallID:     call.ID,
		TenantID:   org.ID,
		Confidence: res.Confidence,
	})

	if s.notifier == nil || org.NotifyEmail == nil || *org.NotifyEmail == "" {
		return
	}
	summary := res.Reasoning
	if call.Summary != nil && *call.Summary != "" {
		summary = *call.Summary
	}
	if err := s.notifier.NotifyEscalation(ctx, *org.NotifyEmail, org.Name, ticket.ID, res.Confidence, summary); err != nil {
		s.log.StageError("escalation_email", call.ID.String(), err)
	}
}
