package events

import "github.com/google/uuid"

// CallEnded fires when a termination event has been merged into a call record.
type CallEnded struct {
	BaseEvent
	CallID         uuid.UUID
	ExternalCallID string
	TenantID       uuid.UUID
	RecordingURL   string
}

func (CallEnded) EventName() string { return "call.ended" }

// CallAnalyzed fires once the analysis event for a call has been ingested.
type CallAnalyzed struct {
	BaseEvent
	CallID         uuid.UUID
	ExternalCallID string
	TenantID       uuid.UUID
}

func (CallAnalyzed) EventName() string { return "call.analyzed" }

// FollowupSent fires after an outbound follow-up SMS was dispatched.
type FollowupSent struct {
	BaseEvent
	CallID   uuid.UUID
	TenantID uuid.UUID
	To       string
}

func (FollowupSent) EventName() string { return "followup.sent" }

// TicketEscalated fires when quality scoring marks a ticket as escalated.
type TicketEscalated struct {
	BaseEvent
	TicketID   uuid.UUID
	CallID     uuid.UUID
	TenantID   uuid.UUID
	Confidence int
}

func (TicketEscalated) EventName() string { return "ticket.escalated" }
