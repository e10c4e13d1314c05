package webhook

import (
	"time"

	"callops_backend/internal/calls"
)

// Envelope is the provider's delivery format: a tagged event plus either a
// call object or, for pre-call events, a call_inbound object.
type Envelope struct {
	Event       string          `json:"event" validate:"required"`
	Call        *CallPayload    `json:"call,omitempty"`
	CallInbound *InboundPayload `json:"call_inbound,omitempty"`
}

// CallPayload mirrors the provider's call object. Pointer fields are only
// present on the event kinds that carry them.
type CallPayload struct {
	CallID              string        `json:"call_id"`
	AgentID             string        `json:"agent_id"`
	Direction           string        `json:"direction"`
	FromNumber          string        `json:"from_number"`
	ToNumber            string        `json:"to_number"`
	StartTimestamp      *int64        `json:"start_timestamp,omitempty"`
	EndTimestamp        *int64        `json:"end_timestamp,omitempty"`
	DurationMs          *int64        `json:"duration_ms,omitempty"`
	CallCostCents       *int          `json:"call_cost_cents,omitempty"`
	Transcript          *string       `json:"transcript,omitempty"`
	RecordingURL        *string       `json:"recording_url,omitempty"`
	DisconnectionReason *string       `json:"disconnection_reason,omitempty"`
	CallAnalysis        *CallAnalysis `json:"call_analysis,omitempty"`
}

// CallAnalysis is the provider's post-call analysis block.
type CallAnalysis struct {
	CallSummary       *string `json:"call_summary,omitempty"`
	UserSentiment     *string `json:"user_sentiment,omitempty"`
	CallSuccessful    *bool   `json:"call_successful,omitempty"`
	CustomerResponded *bool   `json:"customer_responded,omitempty"`
}

// InboundPayload is the pre-call object. It carries no call id; the event
// is acknowledged and discarded.
type InboundPayload struct {
	AgentID    string `json:"agent_id"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`
}

// ToEvent normalizes the envelope into a call event.
func (e Envelope) ToEvent() calls.Event {
	ev := calls.Event{Kind: e.Event}
	if e.Call == nil {
		return ev
	}

	c := e.Call
	ev.ExternalCallID = c.CallID
	ev.ExternalAgentID = c.AgentID
	ev.Direction = c.Direction
	ev.FromNumber = c.FromNumber
	ev.ToNumber = c.ToNumber
	ev.Transcript = c.Transcript
	ev.RecordingURL = c.RecordingURL
	ev.CostCents = c.CallCostCents
	ev.DisconnectReason = c.DisconnectionReason

	if c.StartTimestamp != nil {
		t := time.UnixMilli(*c.StartTimestamp).UTC()
		ev.StartedAt = &t
	}
	if c.EndTimestamp != nil {
		t := time.UnixMilli(*c.EndTimestamp).UTC()
		ev.EndedAt = &t
	}
	if c.DurationMs != nil {
		secs := int(*c.DurationMs / 1000)
		ev.DurationSeconds = &secs
	}
	if c.CallAnalysis != nil {
		ev.Summary = c.CallAnalysis.CallSummary
		ev.Sentiment = c.CallAnalysis.UserSentiment
		ev.Successful = c.CallAnalysis.CallSuccessful
		ev.UserResponded = c.CallAnalysis.CustomerResponded
	}
	return ev
}
