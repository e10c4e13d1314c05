package enrichment

import (
	"context"
	"testing"

	"callops_backend/internal/directory"
	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeExtractor struct {
	extraction Extraction
	err        error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (Extraction, error) {
	if f.err != nil {
		return Extraction{}, f.err
	}
	return f.extraction, nil
}

type fakeCustomers struct {
	customer      directory.Customer
	nameUpdates   int
	vehicleWrites int
	lastMake      *string
}

func (f *fakeCustomers) GetCustomerByID(_ context.Context, _ uuid.UUID) (directory.Customer, error) {
	return f.customer, nil
}

func (f *fakeCustomers) UpdateCustomerName(_ context.Context, _ uuid.UUID, first, last string) error {
	f.nameUpdates++
	f.customer.FirstName = first
	f.customer.LastName = last
	return nil
}

func (f *fakeCustomers) UpdateCustomerVehicle(_ context.Context, _ uuid.UUID, make, _ *string, _ *int, _ *string) error {
	f.vehicleWrites++
	f.lastMake = make
	return nil
}

func enrichmentFixture(ext Extraction, customer directory.Customer) (*Service, *fakeCustomers) {
	customers := &fakeCustomers{customer: customer}
	svc := NewService(&fakeExtractor{extraction: ext}, customers, logger.New("test"))
	return svc, customers
}

func TestEnrichDiscardsLowConfidence(t *testing.T) {
	ext := Extraction{FirstName: "Sarah", VehicleMake: "Honda", Confidence: ConfidenceLow}
	svc, customers := enrichmentFixture(ext, directory.Customer{FirstName: directory.PlaceholderName})

	if err := svc.Enrich(context.Background(), uuid.New(), "transcript"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if customers.nameUpdates != 0 || customers.vehicleWrites != 0 {
		t.Error("low-confidence extraction must be discarded outright")
	}
}

func TestEnrichSetsNameOnlyOverPlaceholder(t *testing.T) {
	ext := Extraction{FirstName: "Sarah", LastName: "Lee", Confidence: ConfidenceHigh}

	svc, customers := enrichmentFixture(ext, directory.Customer{FirstName: directory.PlaceholderName})
	if err := svc.Enrich(context.Background(), uuid.New(), "transcript"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if customers.nameUpdates != 1 {
		t.Error("placeholder name should be replaced")
	}

	// A captured real name is never overwritten.
	svc, customers = enrichmentFixture(ext, directory.Customer{FirstName: "Mike", LastName: "Johnson"})
	if err := svc.Enrich(context.Background(), uuid.New(), "transcript"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if customers.nameUpdates != 0 {
		t.Error("real name must not be overwritten")
	}
}

func TestEnrichVehicleIsLastWriteWins(t *testing.T) {
	ext := Extraction{VehicleMake: "Toyota", VehicleModel: "Tacoma", VehicleYear: 2021, Confidence: ConfidenceHigh}
	existingMake := "Ford"
	svc, customers := enrichmentFixture(ext, directory.Customer{
		FirstName:   "Mike",
		VehicleMake: &existingMake,
	})

	if err := svc.Enrich(context.Background(), uuid.New(), "transcript"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if customers.vehicleWrites != 1 {
		t.Fatal("vehicle fields should be overwritten by qualifying extraction")
	}
	if customers.lastMake == nil || *customers.lastMake != "Toyota" {
		t.Errorf("vehicle make = %v, want Toyota", customers.lastMake)
	}
}

func TestEnrichMediumConfidenceQualifies(t *testing.T) {
	ext := Extraction{RequestedService: "brake inspection", Confidence: ConfidenceMedium}
	svc, customers := enrichmentFixture(ext, directory.Customer{FirstName: "Mike"})

	if err := svc.Enrich(context.Background(), uuid.New(), "transcript"); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if customers.vehicleWrites != 1 {
		t.Error("medium-confidence extraction should apply vehicle/service fields")
	}
}

func TestEnrichSkipsEmptyTranscript(t *testing.T) {
	svc, customers := enrichmentFixture(Extraction{Confidence: ConfidenceHigh}, directory.Customer{})

	if err := svc.Enrich(context.Background(), uuid.New(), "   "); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if customers.nameUpdates != 0 || customers.vehicleWrites != 0 {
		t.Error("empty transcript should be a no-op")
	}
}
