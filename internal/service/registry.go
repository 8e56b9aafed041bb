package service

import (
	"context"
	"fmt"

	"github.com/farmtofork/coldchain/internal/models"
)

// RegisterManufacturer adds a producer to the participant registry.
func (s *OrderService) RegisterManufacturer(ctx context.Context, m *models.Manufacturer) error {
	if m.Addr == "" || m.Name == "" {
		return invalid("manufacturer", "addr and name are required")
	}
	if err := s.store.AddManufacturer(ctx, m); err != nil {
		return fmt.Errorf("register manufacturer: %w", err)
	}
	return nil
}

func (s *OrderService) RegisterRetailer(ctx context.Context, r *models.Retailer) error {
	if r.Addr == "" || r.Name == "" {
		return invalid("retailer", "addr and name are required")
	}
	if err := s.store.AddRetailer(ctx, r); err != nil {
		return fmt.Errorf("register retailer: %w", err)
	}
	return nil
}

// RegisterDistributor adds a carrier. At least one transport capability and
// one working day are required, otherwise the carrier could never match any
// order.
func (s *OrderService) RegisterDistributor(ctx context.Context, d *models.Distributor) error {
	if d.Addr == "" || d.Name == "" {
		return invalid("distributor", "addr and name are required")
	}
	if !d.IsRefrigerated && !d.IsFrozen && !d.IsAmbient {
		return invalid("distributor", "at least one transport capability is required")
	}
	worksSomeday := false
	for _, day := range d.WorkingDays {
		if day {
			worksSomeday = true
			break
		}
	}
	if !worksSomeday {
		return invalid("distributor", "at least one working day is required")
	}
	if !d.IsAM && !d.IsPM {
		return invalid("distributor", "at least one delivery slot is required")
	}
	if err := s.store.AddDistributor(ctx, d); err != nil {
		return fmt.Errorf("register distributor: %w", err)
	}
	return nil
}

// CreateProduct adds a catalog entry on behalf of its manufacturer.
func (s *OrderService) CreateProduct(ctx context.Context, p *models.Product) (int64, error) {
	if p.Name == "" {
		return 0, invalid("name", "must not be empty")
	}
	if _, err := s.store.GetManufacturer(ctx, p.Manufacturer); err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	if p.MinTemp > p.MaxTemp {
		return 0, invalid("minTemp", "must not exceed maxTemp")
	}
	switch p.Details.TransportMode {
	case models.TransportRefrigerated, models.TransportFrozen, models.TransportAmbient:
	default:
		return 0, invalid("transportMode", "must be Refrigerated, Frozen or Ambient")
	}
	if p.Details.MinOrderQuantity <= 0 || p.Details.MaxOrderQuantity < p.Details.MinOrderQuantity {
		return 0, invalid("minOrderQuantity", "order quantity bounds are inconsistent")
	}
	if p.Status == "" {
		p.Status = models.ProductInStock
	}
	id, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	p.ProductID = id
	return id, nil
}

func (s *OrderService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *OrderService) ListProductsByManufacturer(ctx context.Context, addr string) ([]*models.Product, error) {
	return s.store.ListProductsByManufacturer(ctx, addr)
}

// SetProductStatus flips stock availability and drops the cached copy.
func (s *OrderService) SetProductStatus(ctx context.Context, id int64, status models.ProductStatus) error {
	if status != models.ProductInStock && status != models.ProductOutOfStock {
		return invalid("status", "must be %q or %q", models.ProductInStock, models.ProductOutOfStock)
	}
	if err := s.store.SetProductStatus(ctx, id, status); err != nil {
		return fmt.Errorf("set product status: %w", err)
	}
	s.products.Invalidate(id)
	return nil
}

func (s *OrderService) ListManufacturers(ctx context.Context) ([]*models.Manufacturer, error) {
	return s.store.ListManufacturers(ctx)
}

func (s *OrderService) ListDistributors(ctx context.Context) ([]*models.Distributor, error) {
	return s.store.ListDistributors(ctx)
}
