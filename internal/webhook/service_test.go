package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

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

type fakeIngestor struct {
	ingested  []calls.Event
	record    calls.CallRecord
	ingestErr error
}

func (f *fakeIngestor) Ingest(_ context.Context, orgID, agentID uuid.UUID, ev calls.Event) (calls.CallRecord, error) {
	if f.ingestErr != nil {
		return calls.CallRecord{}, f.ingestErr
	}
	f.ingested = append(f.ingested, ev)
	rec := f.record
	rec.OrganizationID = orgID
	rec.AgentID = agentID
	rec.ExternalCallID = ev.ExternalCallID
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return rec, nil
}

func (f *fakeIngestor) LinkCustomer(_ context.Context, _, _ uuid.UUID) error { return nil }

type fakeResolver struct {
	agent    directory.Agent
	agentErr error
	org      directory.Organization
	customer directory.Customer
}

func (f *fakeResolver) ResolveAgent(_ context.Context, _ string) (directory.Agent, error) {
	if f.agentErr != nil {
		return directory.Agent{}, f.agentErr
	}
	return f.agent, nil
}

func (f *fakeResolver) Organization(_ context.Context, _ uuid.UUID) (directory.Organization, error) {
	return f.org, nil
}

func (f *fakeResolver) EnsureCustomer(_ context.Context, _ uuid.UUID, _ string) (directory.Customer, error) {
	return f.customer, nil
}

type fakeEngine struct {
	runs chan followup.Input
}

func (f *fakeEngine) Run(_ context.Context, in followup.Input) {
	f.runs <- in
}

type fakeScorer struct {
	tickets chan uuid.UUID
	scored  chan uuid.UUID
}

func (f *fakeScorer) EnsureTicket(_ context.Context, call calls.CallRecord) (tickets.Ticket, error) {
	t := tickets.Ticket{ID: uuid.New(), CallID: call.ID}
	f.tickets <- t.ID
	return t, nil
}

func (f *fakeScorer) Score(_ context.Context, ticket tickets.Ticket, _ calls.CallRecord, _ directory.Organization) error {
	f.scored <- ticket.ID
	return nil
}

type fakeEnricher struct {
	enriched chan uuid.UUID
}

func (f *fakeEnricher) Enrich(_ context.Context, customerID uuid.UUID, _ string) error {
	f.enriched <- customerID
	return nil
}

type fakeRecordings struct {
	payloads []scheduler.RecordingArchivePayload
}

func (f *fakeRecordings) ScheduleRecordingArchive(_ context.Context, p scheduler.RecordingArchivePayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

type orchestratorFixture struct {
	ingestor   *fakeIngestor
	resolver   *fakeResolver
	engine     *fakeEngine
	scorer     *fakeScorer
	enricher   *fakeEnricher
	recordings *fakeRecordings
	svc        *Service
}

func newOrchestratorFixture() *orchestratorFixture {
	log := logger.New("test")
	f := &orchestratorFixture{
		ingestor: &fakeIngestor{},
		resolver: &fakeResolver{
			agent:    directory.Agent{ID: uuid.New(), OrganizationID: uuid.New()},
			org:      directory.Organization{ID: uuid.New(), Name: "Joe's Auto"},
			customer: directory.Customer{ID: uuid.New()},
		},
		engine:     &fakeEngine{runs: make(chan followup.Input, 1)},
		scorer:     &fakeScorer{tickets: make(chan uuid.UUID, 1), scored: make(chan uuid.UUID, 1)},
		enricher:   &fakeEnricher{enriched: make(chan uuid.UUID, 1)},
		recordings: &fakeRecordings{},
	}
	f.svc = NewService(f.ingestor, f.resolver, f.engine, f.scorer, f.enricher,
		tasks.NewRunner(log), f.recordings, events.NewInMemoryBus(log), log)
	return f
}

func analyzedEnvelope() Envelope {
	summary := "Customer needs an oil change"
	sentiment := "positive"
	ok := true
	transcript := "agent: hello..."
	return Envelope{
		Event: calls.KindCallAnalyzed,
		Call: &CallPayload{
			CallID:     "call_abc",
			AgentID:    "agent_42",
			Direction:  "inbound",
			FromNumber: "+12125550101",
			ToNumber:   "+12125550100",
			Transcript: &transcript,
			CallAnalysis: &CallAnalysis{
				CallSummary:    &summary,
				UserSentiment:  &sentiment,
				CallSuccessful: &ok,
			},
		},
	}
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestHandleEventAcksPreCall(t *testing.T) {
	f := newOrchestratorFixture()
	env := Envelope{
		Event:       calls.KindCallInbound,
		CallInbound: &InboundPayload{AgentID: "agent_42", FromNumber: "+12125550101"},
	}

	if err := f.svc.HandleEvent(context.Background(), env); err != nil {
		t.Fatalf("pre-call event should be acknowledged: %v", err)
	}
	if len(f.ingestor.ingested) != 0 {
		t.Error("pre-call event must not be persisted")
	}
}

func TestHandleEventIgnoresMissingIdentifiers(t *testing.T) {
	f := newOrchestratorFixture()
	env := Envelope{
		Event: calls.KindCallStarted,
		Call:  &CallPayload{CallID: "", AgentID: "agent_42"},
	}

	if err := f.svc.HandleEvent(context.Background(), env); err != nil {
		t.Fatalf("missing call id should be acknowledged: %v", err)
	}
	if len(f.ingestor.ingested) != 0 {
		t.Error("event without call id must not be persisted")
	}
}

func TestHandleEventAcksAgentMiss(t *testing.T) {
	f := newOrchestratorFixture()
	f.resolver.agentErr = directory.ErrAgentNotFound

	if err := f.svc.HandleEvent(context.Background(), analyzedEnvelope()); err != nil {
		t.Fatalf("agent miss is a configuration defect, not a retryable error: %v", err)
	}
	if len(f.ingestor.ingested) != 0 {
		t.Error("unresolvable agent must not persist the call")
	}
}

func TestHandleEventSurfacesPersistenceFailure(t *testing.T) {
	f := newOrchestratorFixture()
	f.ingestor.ingestErr = errors.New("connection refused")

	err := f.svc.HandleEvent(context.Background(), analyzedEnvelope())
	if err == nil {
		t.Fatal("persistence failure must surface for provider retry")
	}
	if !apperr.Is(err, apperr.KindInternal) {
		t.Errorf("kind = %v, want KindInternal", apperr.GetKind(err))
	}
}

func TestHandleAnalyzedRunsEngineAndDetachedTasks(t *testing.T) {
	f := newOrchestratorFixture()
	transcript := "agent: hello..."
	f.ingestor.record.Transcript = &transcript
	f.ingestor.record.CustomerPhone = "+12125550101"

	if err := f.svc.HandleEvent(context.Background(), analyzedEnvelope()); err != nil {
		t.Fatalf("handle: %v", err)
	}

	in := waitFor(t, f.engine.runs, "decision engine run")
	if in.Org.Name != "Joe's Auto" {
		t.Errorf("engine input org = %q", in.Org.Name)
	}

	ticketID := waitFor(t, f.scorer.tickets, "ensure ticket")
	scoredID := waitFor(t, f.scorer.scored, "detached scoring")
	if ticketID != scoredID {
		t.Errorf("scoring got ticket %s, ensured %s", scoredID, ticketID)
	}

	enrichedID := waitFor(t, f.enricher.enriched, "detached enrichment")
	if enrichedID != f.resolver.customer.ID {
		t.Errorf("enrichment customer = %s", enrichedID)
	}
}

func TestHandleAnalyzedSkipsScoringWithoutTranscript(t *testing.T) {
	f := newOrchestratorFixture()
	env := analyzedEnvelope()
	env.Call.Transcript = nil

	if err := f.svc.HandleEvent(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	waitFor(t, f.engine.runs, "decision engine run")

	select {
	case <-f.scorer.tickets:
		t.Error("no transcript should mean no scoring ticket")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleEndedSchedulesRecordingArchive(t *testing.T) {
	f := newOrchestratorFixture()
	rec := "https://provider.example/rec/abc.wav"
	f.ingestor.record.RecordingURL = &rec
	end := time.Now().UnixMilli()
	env := Envelope{
		Event: calls.KindCallEnded,
		Call: &CallPayload{
			CallID:       "call_abc",
			AgentID:      "agent_42",
			Direction:    "inbound",
			FromNumber:   "+12125550101",
			EndTimestamp: &end,
			RecordingURL: &rec,
		},
	}

	if err := f.svc.HandleEvent(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.recordings.payloads) != 1 {
		t.Fatalf("scheduled %d archive jobs, want 1", len(f.recordings.payloads))
	}
	if f.recordings.payloads[0].RecordingURL != rec {
		t.Errorf("payload url = %q", f.recordings.payloads[0].RecordingURL)
	}
}
