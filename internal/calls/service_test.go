package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"callops_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeStore struct {
	records map[string]CallRecord

	insertErr error
	mergeErr  error
	smsSent   map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]CallRecord),
		smsSent: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) Insert(_ context.Context, c CallRecord) (CallRecord, error) {
	if f.insertErr != nil {
		return CallRecord{}, f.insertErr
	}
	if _, ok := f.records[c.ExternalCallID]; ok {
		return CallRecord{}, &pgconn.PgError{Code: "23505"}
	}
	c.ID = uuid.New()
	c.Status = StatusInProgress
	c.CreatedAt = time.Now()
	f.records[c.ExternalCallID] = c
	return c, nil
}

func (f *fakeStore) GetByExternalID(_ context.Context, id string) (CallRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return CallRecord{}, ErrCallNotFound
	}
	return rec, nil
}

func (f *fakeStore) MergeUpdate(_ context.Context, id string, p Patch) (CallRecord, error) {
	if f.mergeErr != nil {
		return CallRecord{}, f.mergeErr
	}
	rec, ok := f.records[id]
	if !ok {
		return CallRecord{}, ErrCallNotFound
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.EndedAt != nil {
		rec.EndedAt = p.EndedAt
	}
	if p.DurationSeconds != nil {
		rec.DurationSeconds = p.DurationSeconds
	}
	if p.CostCents != nil {
		rec.CostCents = p.CostCents
	}
	if p.Transcript != nil {
		rec.Transcript = p.Transcript
	}
	if p.RecordingURL != nil {
		rec.RecordingURL = p.RecordingURL
	}
	if p.Summary != nil {
		rec.Summary = p.Summary
	}
	if p.Sentiment != nil {
		rec.Sentiment = p.Sentiment
	}
	if p.Successful != nil {
		rec.Successful = p.Successful
	}
	if p.DisconnectReason != nil {
		rec.DisconnectReason = p.DisconnectReason
	}
	f.records[id] = rec
	return rec, nil
}

func (f *fakeStore) SetCustomer(_ context.Context, callID, customerID uuid.UUID) error {
	for k, rec := range f.records {
		if rec.ID == callID {
			rec.CustomerID = &customerID
			f.records[k] = rec
		}
	}
	return nil
}

func (f *fakeStore) TryMarkSMSSent(_ context.Context, callID uuid.UUID) (bool, error) {
	if f.smsSent[callID] {
		return false, nil
	}
	f.smsSent[callID] = true
	return true, nil
}

func (f *fakeStore) SweepStale(_ context.Context, _ time.Duration) (int64, error) {
	var n int64
	for k, rec := range f.records {
		if rec.Status == StatusInProgress {
			rec.Status = StatusMissed
			f.records[k] = rec
			n++
		}
	}
	return n, nil
}

func testService(store Store) *Service {
	return NewService(store, logger.New("test"))
}

func endedEvent(callID string) Event {
	dur := 95
	rec := "https://provider.example/rec/abc.wav"
	ended := time.Now()
	return Event{
		Kind:            KindCallEnded,
		ExternalCallID:  callID,
		ExternalAgentID: "agent_1",
		Direction:       "inbound",
		FromNumber:      "+15550001111",
		ToNumber:        "+15550002222",
		EndedAt:         &ended,
		DurationSeconds: &dur,
		RecordingURL:    &rec,
	}
}

func TestIngestCreatesThenMerges(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)
	orgID, agentID := uuid.New(), uuid.New()

	rec, err := svc.Ingest(context.Background(), orgID, agentID, endedEvent("call_1"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", rec.Status, StatusCompleted)
	}
	if rec.DurationSeconds == nil || *rec.DurationSeconds != 95 {
		t.Errorf("duration not merged: %v", rec.DurationSeconds)
	}
	if rec.CustomerPhone != "+15550001111" {
		t.Errorf("customer phone = %q, want caller number on inbound", rec.CustomerPhone)
	}
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)
	orgID, agentID := uuid.New(), uuid.New()
	ev := endedEvent("call_replay")

	first, err := svc.Ingest(context.Background(), orgID, agentID, ev)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := svc.Ingest(context.Background(), orgID, agentID, ev)
	if err != nil {
		t.Fatalf("replay ingest: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("replay produced a different record: %s vs %s", first.ID, second.ID)
	}
	if len(store.records) != 1 {
		t.Errorf("records = %d, want 1", len(store.records))
	}
	if second.Status != StatusCompleted || *second.DurationSeconds != 95 {
		t.Errorf("replay destabilized fields: status=%q duration=%v", second.Status, second.DurationSeconds)
	}
}

func TestIngestOutOfOrderKeepsAnalysisFields(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)
	orgID, agentID := uuid.New(), uuid.New()

	summary := "customer needs an oil change"
	sentiment := "positive"
	ok := true
	analyzed := Event{
		Kind:            KindCallAnalyzed,
		ExternalCallID:  "call_ooo",
		ExternalAgentID: "agent_1",
		Direction:       "inbound",
		FromNumber:      "+15550001111",
		ToNumber:        "+15550002222",
		Summary:         &summary,
		Sentiment:       &sentiment,
		Successful:      &ok,
	}

	if _, err := svc.Ingest(context.Background(), orgID, agentID, analyzed); err != nil {
		t.Fatalf("analyzed ingest: %v", err)
	}
	rec, err := svc.Ingest(context.Background(), orgID, agentID, endedEvent("call_ooo"))
	if err != nil {
		t.Fatalf("ended ingest: %v", err)
	}

	if rec.Summary == nil || *rec.Summary != summary {
		t.Errorf("termination event erased analysis summary: %v", rec.Summary)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", rec.Status, StatusCompleted)
	}
}

func TestIngestSurfacesNonDuplicateInsertError(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("connection refused")
	svc := testService(store)

	_, err := svc.Ingest(context.Background(), uuid.New(), uuid.New(), endedEvent("call_err"))
	if err == nil {
		t.Fatal("expected error for non-duplicate persistence failure")
	}
}

func TestTryMarkSMSSentSingleWinner(t *testing.T) {
	store := newFakeStore()
	svc := testService(store)
	callID := uuid.New()

	won, err := svc.TryMarkSMSSent(context.Background(), callID)
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	won, err = svc.TryMarkSMSSent(context.Background(), callID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Error("second claim won the flag, want exactly one winner")
	}
}

func TestCustomerPhone(t *testing.T) {
	if got := CustomerPhone("inbound", "+1555", "+1666"); got != "+1555" {
		t.Errorf("inbound: got %q", got)
	}
	if got := CustomerPhone("outbound", "+1555", "+1666"); got != "+1666" {
		t.Errorf("outbound: got %q", got)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if !IsDuplicateKey(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 not detected as duplicate")
	}
	if IsDuplicateKey(errors.New("boom")) {
		t.Error("plain error detected as duplicate")
	}
}
