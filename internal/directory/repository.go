// Package directory provides the agent and customer resolver bounded context.
// Agents and organizations are static reference data; customers are lazily
// provisioned on first contact and enriched over time.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrOrgNotFound      = errors.New("organization not found")
)

// PlaceholderName is assigned to customers created from an unseen phone
// number before any name is captured.
const PlaceholderName = "Walk-in Customer"

// Organization is one tenant shop.
type Organization struct {
	ID            uuid.UUID
	Name          string
	BookingURL    *string
	NotifyEmail   *string
	SMSFromNumber *string
	CreatedAt     time.Time
}

// Agent maps a provider agent id to a tenant and its assigned number.
type Agent struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	ExternalAgentID string
	Name            string
	PhoneNumber     string
	CreatedAt       time.Time
}

// Customer is keyed (organization_id, phone) and mutated by enrichment.
type Customer struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Phone            string
	FirstName        string
	LastName         string
	VehicleMake      *string
	VehicleModel     *string
	VehicleYear      *int
	RequestedService *string
	VisitCount       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPlaceholderName reports whether the customer's name was never captured.
func (c Customer) HasPlaceholderName() bool {
	return c.FirstName == PlaceholderName && c.LastName == ""
}

// FullName returns the display name for message templates.
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Repository provides data access for organizations, agents and customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new directory repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAgentByExternalID matches on the trimmed provider agent id.
func (r *Repository) GetAgentByExternalID(ctx context.Context, externalAgentID string) (Agent, error) {
	var a Agent
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, external_agent_id, name, phone_number, created_at
		FROM agents
		WHERE btrim(external_agent_id) = $1
	`, externalAgentID).Scan(
		&a.ID, &a.OrganizationID, &a.ExternalAgentID, &a.Name, &a.PhoneNumber, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	return a, err
}

// GetOrganization retrieves a tenant by id.
func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	var o Organization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, booking_url, notify_email, sms_from_number, created_at
		FROM organizations
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.BookingURL, &o.NotifyEmail, &o.SMSFromNumber, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrOrgNotFound
	}
	return o, err
}

const customerColumns = `id, organization_id, phone, first_name, last_name,
		vehicle_make, vehicle_model, vehicle_year, requested_service,
		visit_count, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.Phone, &c.FirstName, &c.LastName,
		&c.VehicleMake, &c.VehicleModel, &c.VehicleYear, &c.RequestedService,
		&c.VisitCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	return c, err
}

// GetCustomerByPhone looks up a customer by (tenant, phone).
func (r *Repository) GetCustomerByPhone(ctx context.Context, orgID uuid.UUID, phone string) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE organization_id = $1 AND phone = $2
	`, orgID, phone))
}

// GetCustomerByID retrieves a customer by id.
func (r *Repository) GetCustomerByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id))
}

// CreateCustomerIfAbsent inserts a placeholder customer. Concurrent first
// contacts race on the (organization_id, phone) unique constraint; the
// loser's insert is a no-op and both callers get the surviving row.
func (r *Repository) CreateCustomerIfAbsent(ctx context.Context, orgID uuid.UUID, phone string) (Customer, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO customers (organization_id, phone, first_name, last_name, visit_count)
		VALUES ($1, $2, $3, '', 1)
		ON CONFLICT (organization_id, phone) DO NOTHING
	`, orgID, phone, PlaceholderName)
	if err != nil {
		return Customer{}, err
	}
	return r.GetCustomerByPhone(ctx, orgID, phone)
}

// IncrementVisitCount bumps the customer's visit counter.
func (r *Repository) IncrementVisitCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE customers SET visit_count = visit_count + 1, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// UpdateCustomerName sets the captured name.
func (r *Repository) UpdateCustomerName(ctx context.Context, id uuid.UUID, first, last string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE customers SET first_name = $2, last_name = $3, updated_at = now()
		WHERE id = $1
	`, id, first, last)
	return err
}

// UpdateCustomerVehicle overwrites the non-nil vehicle and service fields.
func (r *Repository) UpdateCustomerVehicle(ctx context.Context, id uuid.UUID, make, model *string, year *int, service *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE customers SET
			vehicle_make = COALESCE($2, vehicle_make),
			vehicle_model = COALESCE($3, vehicle_model),
			vehicle_year = COALESCE($4, vehicle_year),
			requested_service = COALESCE($5, requested_service),
			updated_at = now()
		WHERE id = $1
	`, id, make, model, year, service)
	return err
}
