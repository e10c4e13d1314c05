package directory

import (
	"context"
	"errors"
	"testing"

	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeDirectory struct {
	agents    map[string]Agent
	customers map[string]Customer
	orgs      map[uuid.UUID]Organization

	visitBumps int
	creates    int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		agents:    make(map[string]Agent),
		customers: make(map[string]Customer),
		orgs:      make(map[uuid.UUID]Organization),
	}
}

func custKey(orgID uuid.UUID, phone string) string { return orgID.String() + "|" + phone }

func (f *fakeDirectory) GetAgentByExternalID(_ context.Context, id string) (Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return a, nil
}

func (f *fakeDirectory) GetOrganization(_ context.Context, id uuid.UUID) (Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return Organization{}, ErrOrgNotFound
	}
	return o, nil
}

func (f *fakeDirectory) GetCustomerByPhone(_ context.Context, orgID uuid.UUID, phone string) (Customer, error) {
	c, ok := f.customers[custKey(orgID, phone)]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

func (f *fakeDirectory) CreateCustomerIfAbsent(_ context.Context, orgID uuid.UUID, phone string) (Customer, error) {
	f.creates++
	key := custKey(orgID, phone)
	if c, ok := f.customers[key]; ok {
		return c, nil
	}
	c := Customer{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Phone:          phone,
		FirstName:      PlaceholderName,
		VisitCount:     1,
	}
	f.customers[key] = c
	return c, nil
}

func (f *fakeDirectory) IncrementVisitCount(_ context.Context, _ uuid.UUID) error {
	f.visitBumps++
	return nil
}

func TestResolveAgentTrimsWhitespace(t *testing.T) {
	dir := newFakeDirectory()
	agent := Agent{ID: uuid.New(), OrganizationID: uuid.New(), ExternalAgentID: "agent_42"}
	dir.agents["agent_42"] = agent
	r := NewResolver(dir, logger.New("test"))

	got, err := r.ResolveAgent(context.Background(), "  agent_42\n")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != agent.ID {
		t.Errorf("resolved wrong agent: %s", got.ID)
	}
}

func TestResolveAgentMiss(t *testing.T) {
	r := NewResolver(newFakeDirectory(), logger.New("test"))

	_, err := r.ResolveAgent(context.Background(), "agent_unknown")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}

	_, err = r.ResolveAgent(context.Background(), "   ")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("blank id: err = %v, want ErrAgentNotFound", err)
	}
}

func TestEnsureCustomerCreatesPlaceholder(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, logger.New("test"))
	orgID := uuid.New()

	c, err := r.EnsureCustomer(context.Background(), orgID, "(212) 555-0101")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if c.FirstName != PlaceholderName {
		t.Errorf("first name = %q, want placeholder", c.FirstName)
	}
	if c.VisitCount != 1 {
		t.Errorf("visit count = %d, want 1", c.VisitCount)
	}
	if c.Phone != "+12125550101" {
		t.Errorf("phone = %q, want E.164 normalized", c.Phone)
	}
}

func TestEnsureCustomerReusesExisting(t *testing.T) {
	dir := newFakeDirectory()
	r := NewResolver(dir, logger.New("test"))
	orgID := uuid.New()

	first, err := r.EnsureCustomer(context.Background(), orgID, "+12125550101")
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := r.EnsureCustomer(context.Background(), orgID, "212-555-0101")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("same phone resolved to two customers: %s vs %s", first.ID, second.ID)
	}
	if dir.creates != 1 {
		t.Errorf("creates = %d, want 1", dir.creates)
	}
	if dir.visitBumps != 1 {
		t.Errorf("visit bumps = %d, want 1", dir.visitBumps)
	}
}

func TestEnsureCustomerRejectsEmptyPhone(t *testing.T) {
	r := NewResolver(newFakeDirectory(), logger.New("test"))

	_, err := r.EnsureCustomer(context.Background(), uuid.New(), "  ")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Errorf("err = %v, want ErrCustomerNotFound", err)
	}
}

func TestHasPlaceholderName(t *testing.T) {
	c := Customer{FirstName: PlaceholderName}
	if !c.HasPlaceholderName() {
		t.Error("placeholder not detected")
	}
	c = Customer{FirstName: "Mike", LastName: "Johnson"}
	if c.HasPlaceholderName() {
		t.Error("real name flagged as placeholder")
	}
}
