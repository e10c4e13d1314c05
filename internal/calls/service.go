package calls

import (
	"context"
	"fmt"
	"strings"
	"time"

	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

// Event kinds delivered by the telephony provider.
const (
	KindCallStarted  = "call_started"
	KindCallEnded    = "call_ended"
	KindCallAnalyzed = "call_analyzed"
	KindCallInbound  = "call_inbound"
)

// Event is one normalized webhook event. Fields beyond the identifiers are
// optional; which ones are present depends on the kind.
type Event struct {
	Kind            string
	ExternalCallID  string
	ExternalAgentID string

	Direction  string
	FromNumber string
	ToNumber   string

	StartedAt *time.Time
	EndedAt   *time.Time

	DurationSeconds  *int
	CostCents        *int
	Transcript       *string
	RecordingURL     *string
	Summary          *string
	Sentiment        *string
	Successful       *bool
	UserResponded    *bool
	DisconnectReason *string
}

// IsPreCall reports whether the event precedes call creation and carries no
// call id to persist against.
func (e Event) IsPreCall() bool { return e.Kind == KindCallInbound }

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, c CallRecord) (CallRecord, error)
	GetByExternalID(ctx context.Context, externalCallID string) (CallRecord, error)
	MergeUpdate(ctx context.Context, externalCallID string, p Patch) (CallRecord, error)
	SetCustomer(ctx context.Context, callID, customerID uuid.UUID) error
	TryMarkSMSSent(ctx context.Context, callID uuid.UUID) (bool, error)
	SweepStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Service consolidates events into call records.
type Service struct {
	store Store
	log   *logger.Logger
}

// NewService creates the call state store service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Ingest applies one event for a resolved agent. First arrival inserts the
// record with status in-progress; a duplicate-key conflict means the record
// already exists and is not an error. The event's fields are then merged on
// top, never overwriting previously set values with absence.
func (s *Service) Ingest(ctx context.Context, orgID, agentID uuid.UUID, ev Event) (CallRecord, error) {
	rec := CallRecord{
		ExternalCallID: ev.ExternalCallID,
		OrganizationID: orgID,
		AgentID:        agentID,
		Direction:      ev.Direction,
		FromNumber:     ev.FromNumber,
		ToNumber:       ev.ToNumber,
		CustomerPhone:  CustomerPhone(ev.Direction, ev.FromNumber, ev.ToNumber),
		StartedAt:      ev.StartedAt,
	}

	inserted, err := s.store.Insert(ctx, rec)
	switch {
	case err == nil:
		rec = inserted
	case IsDuplicateKey(err):
		// Expected under duplicate or out-of-order delivery.
	default:
		return CallRecord{}, fmt.Errorf("insert call %s: %w", ev.ExternalCallID, err)
	}

	patch := patchFromEvent(ev)
	merged, err := s.store.MergeUpdate(ctx, ev.ExternalCallID, patch)
	if err != nil {
		return CallRecord{}, fmt.Errorf("merge call %s: %w", ev.ExternalCallID, err)
	}
	return merged, nil
}

// LinkCustomer records the resolved customer on the call.
func (s *Service) LinkCustomer(ctx context.Context, callID, customerID uuid.UUID) error {
	return s.store.SetCustomer(ctx, callID, customerID)
}

// TryMarkSMSSent claims the at-most-one-SMS flag for a call.
func (s *Service) TryMarkSMSSent(ctx context.Context, callID uuid.UUID) (bool, error) {
	return s.store.TryMarkSMSSent(ctx, callID)
}

// SweepStale closes out calls whose termination event never arrived.
func (s *Service) SweepStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := s.store.SweepStale(ctx, maxAge)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("swept stale calls", "count", n, "max_age", maxAge.String())
	}
	return n, nil
}

// patchFromEvent maps an event kind to the fields it is allowed to set.
// Analysis events carry summary/sentiment/success; termination events carry
// duration/status/cost/recording.
func patchFromEvent(ev Event) Patch {
	var p Patch
	switch ev.Kind {
	case KindCallEnded:
		status := StatusCompleted
		p.Status = &status
		p.EndedAt = ev.EndedAt
		p.DurationSeconds = ev.DurationSeconds
		p.CostCents = ev.CostCents
		p.RecordingURL = ev.RecordingURL
		p.Transcript = ev.Transcript
		p.DisconnectReason = ev.DisconnectReason
	case KindCallAnalyzed:
		p.Summary = ev.Summary
		p.Sentiment = ev.Sentiment
		p.Successful = ev.Successful
		p.Transcript = ev.Transcript
	}
	return p
}

// CustomerPhone picks the customer's side of the call: the caller for
// inbound calls, the callee for outbound ones.
func CustomerPhone(direction, from, to string) string {
	if strings.EqualFold(direction, "outbound") {
		return to
	}
	return from
}
