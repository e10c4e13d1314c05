package followup

import (
	"context"
	"fmt"
	"strings"

	"callops_backend/internal/calls"
	"callops_backend/internal/directory"
	"callops_backend/internal/events"
	"callops_backend/internal/tickets"
	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

// Classifier turns a call summary into a need phrase and category, and
// composes booking follow-up text.
type Classifier interface {
	Classify(ctx context.Context, summary string) (Classification, error)
	ComposeBookingMessage(ctx context.Context, businessName, need, link string) (string, error)
}

// Messenger dispatches one SMS and returns the provider message id.
type Messenger interface {
	Send(ctx context.Context, from, to, body string) (string, error)
}

// LinkGenerator produces tenant-scoped tracked booking links.
type LinkGenerator interface {
	GenerateBookingLink(ctx context.Context, orgID uuid.UUID, ref string) (string, error)
}

// CallFlags exposes the at-most-one-SMS flag on call records.
type CallFlags interface {
	TryMarkSMSSent(ctx context.Context, callID uuid.UUID) (bool, error)
}

// TicketStore is the routing persistence surface.
type TicketStore interface {
	FindByCallID(ctx context.Context, callID uuid.UUID) (tickets.Ticket, error)
	CreateIfAbsent(ctx context.Context, t tickets.Ticket) (tickets.Ticket, error)
}

// MessageStore persists outbound message records.
type MessageStore interface {
	RecordMessage(ctx context.Context, m MessageRecord) error
}

// Input is everything the engine needs for one analysis event.
type Input struct {
	Call          calls.CallRecord
	Org           directory.Organization
	Agent         directory.Agent
	Customer      directory.Customer
	UserResponded bool
}

// Service is the post-call decision engine. Each stage's failure is caught
// locally and never blocks sibling stages or the webhook response.
type Service struct {
	classifier Classifier
	messenger  Messenger
	links      LinkGenerator
	callFlags  CallFlags
	tickets    TicketStore
	messages   MessageStore
	bus        events.Bus
	log        *logger.Logger
}

// NewService creates the decision engine. links may be nil when no tracked
// link service is configured.
func NewService(
	classifier Classifier,
	messenger Messenger,
	links LinkGenerator,
	callFlags CallFlags,
	ticketStore TicketStore,
	messages MessageStore,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		classifier: classifier,
		messenger:  messenger,
		links:      links,
		callFlags:  callFlags,
		tickets:    ticketStore,
		messages:   messages,
		bus:        bus,
		log:        log,
	}
}

// Run executes the stages for one analysis event. Messaging and routing are
// independent; a failure in one never aborts the other.
func (s *Service) Run(ctx context.Context, in Input) {
	classification := s.runMessaging(ctx, in)
	s.runRouting(ctx, in, classification)
}

// runMessaging covers the dedupe guard, eligibility, content generation and
// dispatch. It returns whatever classification it obtained so routing can
// reuse it instead of paying for a second AI call.
func (s *Service) runMessaging(ctx context.Context, in Input) *Classification {
	call := in.Call

	// Dedupe guard: a set flag means a previous delivery already sent.
	if call.SMSSent {
		return nil
	}

	successful := call.Successful != nil && *call.Successful
	eligible := (successful || in.UserResponded) && call.CustomerPhone != ""
	if !eligible {
		return nil
	}

	body, classification := s.buildMessage(ctx, in)
	if body == "" {
		return classification
	}

	s.dispatch(ctx, in, body)
	return classification
}

// buildMessage picks the message content. Classification failures fall back
// to the generic template rather than aborting.
func (s *Service) buildMessage(ctx context.Context, in Input) (string, *Classification) {
	call := in.Call
	business := in.Org.Name

	if call.Successful != nil && !*call.Successful {
		return ApologyMessage(business), nil
	}

	summary := ""
	if call.Summary != nil {
		summary = strings.TrimSpace(*call.Summary)
	}
	if len(summary) < 10 {
		return ThankYouMessage(business), nil
	}

	classification, err := s.classifier.Classify(ctx, summary)
	if err != nil {
		s.log.StageError("classify", call.ID.String(), err)
		return ThankYouMessage(business), nil
	}

	if !HasBookingIntent(classification.Need, summary) {
		return ThankYouMessage(business), &classification
	}

	link := s.bookingLink(ctx, in)
	msg, err := s.classifier.ComposeBookingMessage(ctx, business, classification.Need, link)
	if err != nil {
		s.log.StageError("compose", call.ID.String(), err)
		return BookingFallbackMessage(business, classification.Need, link), &classification
	}
	if !ValidBookingMessage(msg, link) {
		s.log.Warn("generated message failed validation, using fallback", "call_id", call.ID)
		return BookingFallbackMessage(business, classification.Need, link), &classification
	}
	return msg, &classification
}

// bookingLink resolves the link in priority order: tracked link, tenant
// booking URL, platform default.
func (s *Service) bookingLink(ctx context.Context, in Input) string {
	if s.links != nil {
		link, err := s.links.GenerateBookingLink(ctx, in.Org.ID, in.Call.ExternalCallID)
		if err == nil && link != "" {
			return link
		}
		if err != nil {
			s.log.StageError("link", in.Call.ID.String(), err)
		}
	}
	if in.Org.BookingURL != nil && *in.Org.BookingURL != "" {
		return *in.Org.BookingURL
	}
	return DefaultBookingLink
}

// dispatch sends the message, records it and claims the sms_sent flag after
// the provider acknowledged delivery.
func (s *Service) dispatch(ctx context.Context, in Input, body string) {
	call := in.Call
	from := s.fromNumber(in)
	if from == "" {
		s.log.Warn("no sending number configured, skipping dispatch", "org_id", in.Org.ID)
		return
	}

	providerID, err := s.messenger.Send(ctx, from, call.CustomerPhone, body)
	if err != nil {
		s.log.StageError("dispatch", call.ID.String(), err)
		return
	}

	msg := MessageRecord{
		OrganizationID:    in.Org.ID,
		CallID:            call.ID,
		FromNumber:        from,
		ToNumber:          call.CustomerPhone,
		Body:              body,
		ProviderMessageID: providerID,
	}
	if in.Customer.ID != uuid.Nil {
		id := in.Customer.ID
		msg.CustomerID = &id
	}
	if err := s.messages.RecordMessage(ctx, msg); err != nil {
		s.log.StageError("record_message", call.ID.String(), err)
	}

	won, err := s.callFlags.TryMarkSMSSent(ctx, call.ID)
	if err != nil {
		s.log.StageError("mark_sms_sent", call.ID.String(), err)
	} else if !won {
		s.log.Warn("sms flag already claimed by concurrent delivery", "call_id", call.ID)
	}

	s.bus.Publish(ctx, events.FollowupSent{
		BaseEvent: events.NewBaseEvent(),
		CallID:    call.ID,
		TenantID:  in.Org.ID,
		To:        call.CustomerPhone,
	})
}

func (s *Service) fromNumber(in Input) string {
	if in.Org.SMSFromNumber != nil && *in.Org.SMSFromNumber != "" {
		return *in.Org.SMSFromNumber
	}
	return in.Agent.PhoneNumber
}

// runRouting creates or reuses the ticket for support calls and negative
// sentiment. Sales calls never get a ticket from routing.
func (s *Service) runRouting(ctx context.Context, in Input, classification *Classification) {
	call := in.Call

	category := CategoryGeneral
	if classification != nil {
		category = classification.Category
	}
	negative := call.Sentiment != nil && strings.EqualFold(*call.Sentiment, "negative")

	if category == CategorySales {
		return
	}
	if category != CategorySupport && !negative {
		return
	}

	priority := tickets.PriorityMedium
	if negative {
		priority = tickets.PriorityHigh
	}

	// Ticket-per-call: reuse any existing ticket before inserting.
	if existing, err := s.tickets.FindByCallID(ctx, call.ID); err == nil {
		s.log.Info("routing reused existing ticket", "ticket_id", existing.ID, "call_id", call.ID)
		return
	}

	t := tickets.Ticket{
		OrganizationID: in.Org.ID,
		CustomerID:     in.Call.CustomerID,
		CallID:         call.ID,
		Status:         tickets.StatusOpen,
		Priority:       priority,
		Source:         tickets.SourcePhoneCall,
		Description:    routingDescription(call),
	}
	created, err := s.tickets.CreateIfAbsent(ctx, t)
	if err != nil {
		s.log.StageError("routing", call.ID.String(), err)
		return
	}
	s.log.Info("routing created ticket", "ticket_id", created.ID, "call_id", call.ID, "priority", priority)
}

func routingDescription(call calls.CallRecord) string {
	summary := "No summary available."
	if call.Summary != nil && strings.TrimSpace(*call.Summary) != "" {
		summary = strings.TrimSpace(*call.Summary)
	}
	sentiment := "unknown"
	if call.Sentiment != nil {
		sentiment = *call.Sentiment
	}
	return fmt.Sprintf("Phone call follow-up.\n\nSummary: %s\nSentiment: %s", summary, sentiment)
}
