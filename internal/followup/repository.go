// Package followup runs the post-call decision engine: follow-up SMS
// generation, dispatch and ticket routing from analysis events.
package followup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRecord is one dispatched outbound SMS.
type MessageRecord struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	CallID            uuid.UUID
	CustomerID        *uuid.UUID
	FromNumber        string
	ToNumber          string
	Body              string
	ProviderMessageID string
	CreatedAt         time.Time
}

// Repository persists outbound message records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new followup repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordMessage saves a dispatched message.
func (r *Repository) RecordMessage(ctx context.Context, m MessageRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outbound_messages (organization_id, call_id, customer_id,
			from_number, to_number, body, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.OrganizationID, m.CallID, m.CustomerID,
		m.FromNumber, m.ToNumber, m.Body, m.ProviderMessageID)
	return err
}

// CountByCallID returns how many messages were sent for a call.
func (r *Repository) CountByCallID(ctx context.Context, callID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM outbound_messages WHERE call_id = $1
	`, callID).Scan(&n)
	return n, err
}
