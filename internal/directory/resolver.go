package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"callops_backend/platform/logger"
	"callops_backend/platform/phone"

	"github.com/google/uuid"
)

// Directory is the lookup surface the resolver needs.
type Directory interface {
	GetAgentByExternalID(ctx context.Context, externalAgentID string) (Agent, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error)
	GetCustomerByPhone(ctx context.Context, orgID uuid.UUID, phone string) (Customer, error)
	CreateCustomerIfAbsent(ctx context.Context, orgID uuid.UUID, phone string) (Customer, error)
	IncrementVisitCount(ctx context.Context, id uuid.UUID) error
}

// Resolver maps provider agent references to tenants and provisions
// customer records on first contact.
type Resolver struct {
	dir Directory
	log *logger.Logger
}

// NewResolver creates the directory resolver.
func NewResolver(dir Directory, log *logger.Logger) *Resolver {
	return &Resolver{dir: dir, log: log}
}

// ResolveAgent matches the external agent id after trimming whitespace on
// both sides. A miss is a configuration defect on the tenant side, not a
// transient fault; callers log and acknowledge rather than retry.
func (r *Resolver) ResolveAgent(ctx context.Context, externalAgentID string) (Agent, error) {
	trimmed := strings.TrimSpace(externalAgentID)
	if trimmed == "" {
		return Agent{}, ErrAgentNotFound
	}
	agent, err := r.dir.GetAgentByExternalID(ctx, trimmed)
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// Organization retrieves the tenant for a resolved agent.
func (r *Resolver) Organization(ctx context.Context, orgID uuid.UUID) (Organization, error) {
	return r.dir.GetOrganization(ctx, orgID)
}

// EnsureCustomer resolves (tenant, phone) to a customer record, creating a
// placeholder on first contact. The raw number is normalized to E.164 first;
// numbers that cannot be normalized are stored as given so the record still
// exists for follow-up review. Repeat contacts bump the visit counter.
func (r *Resolver) EnsureCustomer(ctx context.Context, orgID uuid.UUID, rawPhone string) (Customer, error) {
	if strings.TrimSpace(rawPhone) == "" {
		return Customer{}, ErrCustomerNotFound
	}

	normalized := phone.NormalizeE164(rawPhone)

	existing, err := r.dir.GetCustomerByPhone(ctx, orgID, normalized)
	if err == nil {
		if err := r.dir.IncrementVisitCount(ctx, existing.ID); err != nil {
			r.log.Warn("visit count bump failed", "customer_id", existing.ID, "error", err)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return Customer{}, fmt.Errorf("lookup customer %s: %w", normalized, err)
	}

	created, err := r.dir.CreateCustomerIfAbsent(ctx, orgID, normalized)
	if err != nil {
		return Customer{}, fmt.Errorf("create customer %s: %w", normalized, err)
	}
	return created, nil
}
