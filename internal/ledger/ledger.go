// Package ledger defines the port to the external transactional store that
// owns orders, products and participant records. Every write is atomic; the
// status write is a compare-and-set so concurrent writers observing the same
// state race safely (the loser gets ErrStaleStatus and the record is left in
// the winner's state).
package ledger

import (
	"context"
	"errors"

	"github.com/farmtofork/coldchain/internal/models"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrStaleStatus         = errors.New("order status changed since it was read")
	ErrDistributorSet      = errors.New("order already has a distributor assigned")
)

// Orders is the order slice of the ledger.
type Orders interface {
	// CreateOrder stores a new order and returns the ledger-assigned id.
	// The caller supplies the record already in its initial status with the
	// first history entry recorded.
	CreateOrder(ctx context.Context, o *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
	ListOrdersByManufacturer(ctx context.Context, addr string) ([]*models.Order, error)
	ListOrdersByRetailer(ctx context.Context, addr string) ([]*models.Order, error)
	ListOrdersByDistributor(ctx context.Context, addr string) ([]*models.Order, error)

	// UpdateOrderStatus moves the order from -> to, appends the history
	// entry and, when reason is non-empty, records it. Fails with
	// ErrStaleStatus when the stored status no longer equals from.
	UpdateOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus, reason string) error

	// AssignDistributor sets the distributor and moves the order from ->
	// Dispatched in one write. The distributor field may only be written
	// while the order is awaiting assignment.
	AssignDistributor(ctx context.Context, id int64, from models.OrderStatus, distributor string) error

	// UpdateOrderTemperature overwrites the latest feed reading. It never
	// changes the status.
	UpdateOrderTemperature(ctx context.Context, id int64, temperature int) error
}

// Products is the product-catalog slice of the ledger.
type Products interface {
	CreateProduct(ctx context.Context, p *models.Product) (int64, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProductsByManufacturer(ctx context.Context, addr string) ([]*models.Product, error)
	SetProductStatus(ctx context.Context, id int64, status models.ProductStatus) error
}

// Roles is the participant-registry slice of the ledger.
type Roles interface {
	AddManufacturer(ctx context.Context, m *models.Manufacturer) error
	GetManufacturer(ctx context.Context, addr string) (*models.Manufacturer, error)
	ListManufacturers(ctx context.Context) ([]*models.Manufacturer, error)
	AddRetailer(ctx context.Context, r *models.Retailer) error
	GetRetailer(ctx context.Context, addr string) (*models.Retailer, error)
	AddDistributor(ctx context.Context, d *models.Distributor) error
	GetDistributor(ctx context.Context, addr string) (*models.Distributor, error)
	ListDistributors(ctx context.Context) ([]*models.Distributor, error)

	// RoleOf resolves which role an address is registered under. Returns
	// ErrParticipantNotFound for unknown addresses.
	RoleOf(ctx context.Context, addr string) (models.Role, error)
}

// Ledger is the full store surface the service layer depends on.
type Ledger interface {
	Orders
	Products
	Roles
}
