// Package tickets provides ticket and call-score persistence.
// At most one ticket exists per call and at most one score per ticket;
// both invariants are enforced by unique constraints, not locks.
package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTicketNotFound = errors.New("ticket not found")

// Ticket statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// Ticket priorities.
const (
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// SourcePhoneCall marks tickets created from the call pipeline.
const SourcePhoneCall = "phone_call"

// Ticket is a unit of follow-up work created by routing or scoring.
type Ticket struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	CustomerID        *uuid.UUID
	CallID            uuid.UUID
	Status            string
	Priority          string
	Source            string
	Description       string
	Outcome           *string
	OutcomeConfidence *int
	ResolutionChannel *string
	BookingDetails    []byte
	Transcript        *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ScoreRecord is the single current quality score for a ticket.
type ScoreRecord struct {
	ID              uuid.UUID
	TicketID        uuid.UUID
	Greeting        int
	Communication   int
	ProblemSolving  int
	Professionalism int
	Closing         int
	Total           int
	Feedback        string
	Outcome         string
	AvgResponseSecs float64
	MaxResponseSecs float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository provides data access for tickets and scores.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new tickets repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ticketColumns = `id, organization_id, customer_id, call_id, status, priority, source,
		description, outcome, outcome_confidence, resolution_channel,
		booking_details, transcript, created_at, updated_at`

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.CustomerID, &t.CallID, &t.Status, &t.Priority, &t.Source,
		&t.Description, &t.Outcome, &t.OutcomeConfidence, &t.ResolutionChannel,
		&t.BookingDetails, &t.Transcript, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrTicketNotFound
	}
	return t, err
}

// FindByCallID retrieves the ticket for a call, if one exists.
func (r *Repository) FindByCallID(ctx context.Context, callID uuid.UUID) (Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE call_id = $1
	`, callID))
}

// CreateIfAbsent inserts a ticket for the call unless one already exists.
// Concurrent creators race on the call_id unique constraint; the loser's
// insert is a no-op and both get the surviving row.
func (r *Repository) CreateIfAbsent(ctx context.Context, t Ticket) (Ticket, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tickets (organization_id, customer_id, call_id, status, priority, source, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (call_id) DO NOTHING
	`, t.OrganizationID, t.CustomerID, t.CallID, t.Status, t.Priority, t.Source, t.Description)
	if err != nil {
		return Ticket{}, err
	}
	return r.FindByCallID(ctx, t.CallID)
}

// UpdateScoring writes the scoring engine's outcome onto the ticket.
func (r *Repository) UpdateScoring(ctx context.Context, ticketID uuid.UUID, outcome string, confidence int, channel string, bookingDetails []byte, transcript *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tickets SET
			outcome = $2,
			outcome_confidence = $3,
			resolution_channel = $4,
			booking_details = $5,
			transcript = COALESCE($6, transcript),
			updated_at = now()
		WHERE id = $1
	`, ticketID, outcome, confidence, channel, bookingDetails, transcript)
	return err
}

// Resolve transitions the ticket to resolved.
func (r *Repository) Resolve(ctx context.Context, ticketID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tickets SET status = $2, resolved_at = now(), updated_at = now()
		WHERE id = $1
	`, ticketID, StatusResolved)
	return err
}

// UpsertScore writes the current score for a ticket, replacing any prior one.
func (r *Repository) UpsertScore(ctx context.Context, s ScoreRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO call_scores (ticket_id, greeting, communication, problem_solving,
			professionalism, closing, total, feedback, outcome,
			avg_response_seconds, max_response_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (ticket_id) DO UPDATE SET
			greeting = EXCLUDED.greeting,
			communication = EXCLUDED.communication,
			problem_solving = EXCLUDED.problem_solving,
			professionalism = EXCLUDED.professionalism,
			closing = EXCLUDED.closing,
			total = EXCLUDED.total,
			feedback = EXCLUDED.feedback,
			outcome = EXCLUDED.outcome,
			avg_response_seconds = EXCLUDED.avg_response_seconds,
			max_response_seconds = EXCLUDED.max_response_seconds,
			updated_at = now()
	`, s.TicketID, s.Greeting, s.Communication, s.ProblemSolving,
		s.Professionalism, s.Closing, s.Total, s.Feedback, s.Outcome,
		s.AvgResponseSecs, s.MaxResponseSecs)
	return err
}

// GetScoreByTicketID retrieves the current score for a ticket.
func (r *Repository) GetScoreByTicketID(ctx context.Context, ticketID uuid.UUID) (ScoreRecord, error) {
	var s ScoreRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, ticket_id, greeting, communication, problem_solving,
			professionalism, closing, total, feedback, outcome,
			avg_response_seconds, max_response_seconds, created_at, updated_at
		FROM call_scores
		WHERE ticket_id = $1
	`, ticketID).Scan(
		&s.ID, &s.TicketID, &s.Greeting, &s.Communication, &s.ProblemSolving,
		&s.Professionalism, &s.Closing, &s.Total, &s.Feedback, &s.Outcome,
		&s.AvgResponseSecs, &s.MaxResponseSecs, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScoreRecord{}, ErrTicketNotFound
	}
	return s, err
}
