package quality

import (
	"context"
	"errors"
	"testing"

	"callops_backend/internal/calls"
	"callops_backend/internal/directory"
	"callops_backend/internal/events"
	"callops_backend/internal/tickets"
	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeAnalyzer struct {
	result Result
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string) (Result, error) {
	if f.err != nil {
		return Result{}, f.err
	}
	return f.result, nil
}

type fakeTicketStore struct {
	byCall   map[uuid.UUID]tickets.Ticket
	scores   map[uuid.UUID]tickets.ScoreRecord
	resolved map[uuid.UUID]bool
	updated  map[uuid.UUID]string
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		byCall:   make(map[uuid.UUID]tickets.Ticket),
		scores:   make(map[uuid.UUID]tickets.ScoreRecord),
		resolved: make(map[uuid.UUID]bool),
		updated:  make(map[uuid.UUID]string),
	}
}

func (f *fakeTicketStore) FindByCallID(_ context.Context, callID uuid.UUID) (tickets.Ticket, error) {
	t, ok := f.byCall[callID]
	if !ok {
		return tickets.Ticket{}, tickets.ErrTicketNotFound
	}
	return t, nil
}

func (f *fakeTicketStore) CreateIfAbsent(_ context.Context, t tickets.Ticket) (tickets.Ticket, error) {
	if existing, ok := f.byCall[t.CallID]; ok {
		return existing, nil
	}
	t.ID = uuid.New()
	f.byCall[t.CallID] = t
	return t, nil
}

func (f *fakeTicketStore) UpdateScoring(_ context.Context, ticketID uuid.UUID, outcome string, _ int, _ string, _ []byte, _ *string) error {
	f.updated[ticketID] = outcome
	return nil
}

func (f *fakeTicketStore) Resolve(_ context.Context, ticketID uuid.UUID) error {
	f.resolved[ticketID] = true
	return nil
}

func (f *fakeTicketStore) UpsertScore(_ context.Context, s tickets.ScoreRecord) error {
	f.scores[s.TicketID] = s
	return nil
}

type fakeNotifier struct {
	notified int
	lastTo   string
}

func (f *fakeNotifier) NotifyEscalation(_ context.Context, toEmail, _ string, _ uuid.UUID, _ int, _ string) error {
	f.notified++
	f.lastTo = toEmail
	return nil
}

func goodResult(outcome string, confidence int) Result {
	return Result{
		Scores:     Scores{Greeting: 15, Communication: 16, ProblemSolving: 14, Professionalism: 18, Closing: 13, Total: 76},
		Feedback:   "Good call overall.",
		Outcome:    outcome,
		Confidence: confidence,
		Reasoning:  "Customer confirmed the booking.",
	}
}

func scoringFixture(res Result) (*Service, *fakeTicketStore, *fakeNotifier) {
	log := logger.New("test")
	store := newFakeTicketStore()
	notifier := &fakeNotifier{}
	svc := NewService(&fakeAnalyzer{result: res}, store, notifier, events.NewInMemoryBus(log), log)
	return svc, store, notifier
}

func scoredCall() (calls.CallRecord, directory.Organization) {
	transcript := "agent: thanks for calling..."
	return calls.CallRecord{
			ID:             uuid.New(),
			OrganizationID: uuid.New(),
			Transcript:     &transcript,
		}, directory.Organization{
			ID:   uuid.New(),
			Name: "Joe's Auto",
		}
}

func TestEnsureTicketCreatesNeutralTicket(t *testing.T) {
	svc, store, _ := scoringFixture(goodResult(OutcomeNeedsReview, 50))
	call, _ := scoredCall()

	ticket, err := svc.EnsureTicket(context.Background(), call)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ticket.Status != tickets.StatusOpen || ticket.Priority != tickets.PriorityMedium {
		t.Errorf("neutral ticket wrong shape: status=%q priority=%q", ticket.Status, ticket.Priority)
	}

	again, err := svc.EnsureTicket(context.Background(), call)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.ID != ticket.ID {
		t.Error("second ensure created a different ticket")
	}
	if len(store.byCall) != 1 {
		t.Errorf("tickets = %d, want 1", len(store.byCall))
	}
}

func TestScoreAutoResolvesConfidentTerminalOutcome(t *testing.T) {
	svc, store, _ := scoringFixture(goodResult(OutcomeAppointmentBooked, 85))
	call, org := scoredCall()
	ticket, _ := svc.EnsureTicket(context.Background(), call)

	if err := svc.Score(context.Background(), ticket, call, org); err != nil {
		t.Fatalf("score: %v", err)
	}

	if !store.resolved[ticket.ID] {
		t.Error("appointment_booked at 85 should auto-resolve")
	}
	if store.updated[ticket.ID] != OutcomeAppointmentBooked {
		t.Errorf("ticket outcome = %q", store.updated[ticket.ID])
	}
	if _, ok := store.scores[ticket.ID]; !ok {
		t.Error("score not upserted")
	}
}

func TestScoreNeverAutoResolvesEscalated(t *testing.T) {
	svc, store, notifier := scoringFixture(goodResult(OutcomeEscalated, 95))
	call, org := scoredCall()
	notify := "owner@joesauto.example"
	org.NotifyEmail = &notify
	ticket, _ := svc.EnsureTicket(context.Background(), call)

	if err := svc.Score(context.Background(), ticket, call, org); err != nil {
		t.Fatalf("score: %v", err)
	}

	if store.resolved[ticket.ID] {
		t.Error("escalated at 95 must not auto-resolve")
	}
	if notifier.notified != 1 || notifier.lastTo != notify {
		t.Errorf("escalation notification: count=%d to=%q", notifier.notified, notifier.lastTo)
	}
}

func TestScoreLowConfidenceLeavesTicketOpen(t *testing.T) {
	svc, store, _ := scoringFixture(goodResult(OutcomeIssueResolved, 70))
	call, org := scoredCall()
	ticket, _ := svc.EnsureTicket(context.Background(), call)

	if err := svc.Score(context.Background(), ticket, call, org); err != nil {
		t.Fatalf("score: %v", err)
	}
	if store.resolved[ticket.ID] {
		t.Error("confidence 70 must not auto-resolve")
	}
}

func TestScoreDiscardsInvalidAnalysisWhole(t *testing.T) {
	log := logger.New("test")
	store := newFakeTicketStore()
	svc := NewService(&fakeAnalyzer{err: errors.New("analysis failed validation")}, store, nil,
		events.NewInMemoryBus(log), log)
	call, org := scoredCall()
	ticket, _ := svc.EnsureTicket(context.Background(), call)

	if err := svc.Score(context.Background(), ticket, call, org); err == nil {
		t.Fatal("expected error from failed analysis")
	}
	if len(store.scores) != 0 {
		t.Error("invalid analysis wrote a score")
	}
	if len(store.updated) != 0 {
		t.Error("invalid analysis updated the ticket")
	}
	if len(store.resolved) != 0 {
		t.Error("invalid analysis resolved the ticket")
	}
}

func TestScoreSkipsEmptyTranscript(t *testing.T) {
	svc, store, _ := scoringFixture(goodResult(OutcomeAppointmentBooked, 90))
	call, org := scoredCall()
	call.Transcript = nil
	ticket, _ := svc.EnsureTicket(context.Background(), call)

	if err := svc.Score(context.Background(), ticket, call, org); err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(store.scores) != 0 {
		t.Error("empty transcript should not produce a score")
	}
}
