// Package calls provides the call state store bounded context.
// It consolidates telephony webhook events into durable call records.
package calls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCallNotFound = errors.New("call not found")

// Call statuses.
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusMissed     = "missed"
)

// CallRecord is the durable row representing one call's lifecycle.
// external_call_id is immutable and unique; all other event-sourced
// fields merge across deliveries and are never nulled by absence.
type CallRecord struct {
	ID              uuid.UUID
	ExternalCallID  string
	OrganizationID  uuid.UUID
	AgentID         uuid.UUID
	CustomerID      *uuid.UUID
	Direction       string
	FromNumber      string
	ToNumber        string
	CustomerPhone   string
	Status          string
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds *int
	CostCents       *int
	Transcript      *string
	RecordingURL    *string
	RecordingKey    *string
	Summary         *string
	Sentiment       *string
	Successful      *bool
	DisconnectReason *string
	SMSSent         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Patch carries the fields present in one event. Nil fields are left
// untouched by MergeUpdate.
type Patch struct {
	Status           *string
	StartedAt        *time.Time
	EndedAt          *time.Time
	DurationSeconds  *int
	CostCents        *int
	Transcript       *string
	RecordingURL     *string
	Summary          *string
	Sentiment        *string
	Successful       *bool
	DisconnectReason *string
}

// Repository provides data access for call records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new calls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const callColumns = `id, external_call_id, organization_id, agent_id, customer_id,
		direction, from_number, to_number, customer_phone, status,
		started_at, ended_at, duration_seconds, cost_cents,
		transcript, recording_url, recording_key, summary, sentiment,
		successful, disconnect_reason, sms_sent, created_at, updated_at`

func scanCall(row pgx.Row) (CallRecord, error) {
	var c CallRecord
	err := row.Scan(
		&c.ID, &c.ExternalCallID, &c.OrganizationID, &c.AgentID, &c.CustomerID,
		&c.Direction, &c.FromNumber, &c.ToNumber, &c.CustomerPhone, &c.Status,
		&c.StartedAt, &c.EndedAt, &c.DurationSeconds, &c.CostCents,
		&c.Transcript, &c.RecordingURL, &c.RecordingKey, &c.Summary, &c.Sentiment,
		&c.Successful, &c.DisconnectReason, &c.SMSSent, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CallRecord{}, ErrCallNotFound
	}
	return c, err
}

// Insert creates the initial record for a call id with status in-progress.
// A unique-constraint violation on external_call_id is expected under
// duplicate delivery; callers detect it via IsDuplicateKey.
func (r *Repository) Insert(ctx context.Context, c CallRecord) (CallRecord, error) {
	return scanCall(r.pool.QueryRow(ctx, `
		INSERT INTO calls (external_call_id, organization_id, agent_id,
			direction, from_number, to_number, customer_phone, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+callColumns+`
	`, c.ExternalCallID, c.OrganizationID, c.AgentID,
		c.Direction, c.FromNumber, c.ToNumber, c.CustomerPhone, StatusInProgress, c.StartedAt))
}

// GetByExternalID retrieves a call record by its provider call id.
func (r *Repository) GetByExternalID(ctx context.Context, externalCallID string) (CallRecord, error) {
	return scanCall(r.pool.QueryRow(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE external_call_id = $1
	`, externalCallID))
}

// GetByID retrieves a call record by its internal id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (CallRecord, error) {
	return scanCall(r.pool.QueryRow(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE id = $1
	`, id))
}

// MergeUpdate applies the non-nil fields of the patch to an existing call.
// COALESCE keeps previously set values when the patch carries absence.
func (r *Repository) MergeUpdate(ctx context.Context, externalCallID string, p Patch) (CallRecord, error) {
	return scanCall(r.pool.QueryRow(ctx, `
		UPDATE calls SET
			status = COALESCE($2, status),
			started_at = COALESCE($3, started_at),
			ended_at = COALESCE($4, ended_at),
			duration_seconds = COALESCE($5, duration_seconds),
			cost_cents = COALESCE($6, cost_cents),
			transcript = COALESCE($7, transcript),
			recording_url = COALESCE($8, recording_url),
			summary = COALESCE($9, summary),
			sentiment = COALESCE($10, sentiment),
			successful = COALESCE($11, successful),
			disconnect_reason = COALESCE($12, disconnect_reason),
			updated_at = now()
		WHERE external_call_id = $1
		RETURNING `+callColumns+`
	`, externalCallID, p.Status, p.StartedAt, p.EndedAt, p.DurationSeconds, p.CostCents,
		p.Transcript, p.RecordingURL, p.Summary, p.Sentiment, p.Successful, p.DisconnectReason))
}

// SetCustomer links a resolved customer to the call.
func (r *Repository) SetCustomer(ctx context.Context, callID, customerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE calls SET customer_id = $2, updated_at = now()
		WHERE id = $1
	`, callID, customerID)
	return err
}

// TryMarkSMSSent flips the sms_sent flag and reports whether this caller
// won the flip. A false return means another delivery already sent.
func (r *Repository) TryMarkSMSSent(ctx context.Context, callID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calls SET sms_sent = true, updated_at = now()
		WHERE id = $1 AND sms_sent = false
	`, callID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetRecordingKey saves the archived recording object key on the call.
func (r *Repository) SetRecordingKey(ctx context.Context, callID uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE calls SET recording_key = $2, updated_at = now()
		WHERE id = $1
	`, callID, key)
	return err
}

// SweepStale marks calls stuck in-progress beyond maxAge as missed and
// returns how many rows were swept.
func (r *Repository) SweepStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calls SET status = $1, updated_at = now()
		WHERE status = $2 AND created_at < now() - $3::interval
	`, StatusMissed, StatusInProgress, maxAge.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IsDuplicateKey reports whether err is a postgres unique-constraint violation.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
