package enrichment

import (
	"context"
	"fmt"
	"strings"

	"callops_backend/internal/directory"
	"callops_backend/platform/logger"

	"github.com/google/uuid"
)

// AttributeExtractor is the extraction capability the service depends on.
type AttributeExtractor interface {
	Extract(ctx context.Context, transcript string) (Extraction, error)
}

// CustomerStore is the persistence surface for merges.
type CustomerStore interface {
	GetCustomerByID(ctx context.Context, id uuid.UUID) (directory.Customer, error)
	UpdateCustomerName(ctx context.Context, id uuid.UUID, first, last string) error
	UpdateCustomerVehicle(ctx context.Context, id uuid.UUID, make, model *string, year *int, service *string) error
}

// Service applies the enrichment merge policy: low-confidence extractions
// are discarded, names never overwrite a captured real name, vehicle and
// service attributes are last-write-wins.
type Service struct {
	extractor AttributeExtractor
	customers CustomerStore
	log       *logger.Logger
}

// NewService creates the enrichment service.
func NewService(extractor AttributeExtractor, customers CustomerStore, log *logger.Logger) *Service {
	return &Service{extractor: extractor, customers: customers, log: log}
}

// Enrich runs one extraction for the customer. Designed to run as a
// detached task in parallel with scoring; errors go to the task runner.
func (s *Service) Enrich(ctx context.Context, customerID uuid.UUID, transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	ext, err := s.extractor.Extract(ctx, transcript)
	if err != nil {
		return fmt.Errorf("enrich customer %s: %w", customerID, err)
	}
	if ext.Confidence == ConfidenceLow {
		s.log.Info("discarding low-confidence extraction", "customer_id", customerID)
		return nil
	}

	customer, err := s.customers.GetCustomerByID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("load customer %s: %w", customerID, err)
	}

	if ext.HasName() && customer.HasPlaceholderName() {
		if err := s.customers.UpdateCustomerName(ctx, customerID, ext.FirstName, ext.LastName); err != nil {
			return fmt.Errorf("update name for %s: %w", customerID, err)
		}
	}

	if ext.HasVehicleOrService() {
		var (
			make_, model, service *string
			year                  *int
		)
		if ext.VehicleMake != "" {
			make_ = &ext.VehicleMake
		}
		if ext.VehicleModel != "" {
			model = &ext.VehicleModel
		}
		if ext.VehicleYear != 0 {
			year = &ext.VehicleYear
		}
		if ext.RequestedService != "" {
			service = &ext.RequestedService
		}
		if err := s.customers.UpdateCustomerVehicle(ctx, customerID, make_, model, year, service); err != nil {
			return fmt.Errorf("update vehicle for %s: %w", customerID, err)
		}
	}
	return nil
}
