package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farmtofork/coldchain/internal/models"
)

// Memory is an in-process Ledger used by tests and local runs. Writes are
// serialized by a single mutex, which gives each call the same all-or-nothing
// behavior the real store provides.
type Memory struct {
	mu            sync.RWMutex
	orders        map[int64]*models.Order
	products      map[int64]*models.Product
	manufacturers map[string]*models.Manufacturer
	retailers     map[string]*models.Retailer
	distributors  map[string]*models.Distributor
	orderSeq      int64
	productSeq    int64
}

func NewMemory() *Memory {
	return &Memory{
		orders:        make(map[int64]*models.Order),
		products:      make(map[int64]*models.Product),
		manufacturers: make(map[string]*models.Manufacturer),
		retailers:     make(map[string]*models.Retailer),
		distributors:  make(map[string]*models.Distributor),
	}
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	if o.Temperature != nil {
		t := *o.Temperature
		c.Temperature = &t
	}
	c.History = append([]models.HistoryEntry(nil), o.History...)
	return &c
}

func (m *Memory) CreateOrder(_ context.Context, o *models.Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderSeq++
	c := cloneOrder(o)
	c.OrderID = m.orderSeq
	m.orders[c.OrderID] = c
	return c.OrderID, nil
}

func (m *Memory) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return cloneOrder(o), nil
}

func (m *Memory) listOrders(match func(*models.Order) bool) []*models.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if match(o) {
			res = append(res, cloneOrder(o))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OrderID < res[j].OrderID })
	return res
}

func (m *Memory) ListOrders(_ context.Context) ([]*models.Order, error) {
	return m.listOrders(func(*models.Order) bool { return true }), nil
}

func (m *Memory) ListOrdersByManufacturer(_ context.Context, addr string) ([]*models.Order, error) {
	return m.listOrders(func(o *models.Order) bool { return o.Manufacturer == addr }), nil
}

func (m *Memory) ListOrdersByRetailer(_ context.Context, addr string) ([]*models.Order, error) {
	return m.listOrders(func(o *models.Order) bool { return o.Retailer == addr }), nil
}

func (m *Memory) ListOrdersByDistributor(_ context.Context, addr string) ([]*models.Order, error) {
	return m.listOrders(func(o *models.Order) bool { return o.Distributor == addr }), nil
}

func (m *Memory) UpdateOrderStatus(_ context.Context, id int64, from, to models.OrderStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("order %d is %q, expected %q: %w", id, o.Status, from, ErrStaleStatus)
	}
	o.RecordStatus(to, time.Now().UTC())
	if reason != "" {
		o.RejectionReason = reason
	}
	return nil
}

func (m *Memory) AssignDistributor(_ context.Context, id int64, from models.OrderStatus, distributor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("order %d is %q, expected %q: %w", id, o.Status, from, ErrStaleStatus)
	}
	if o.Distributor != "" && o.Status != models.StatusRejectedDistributor {
		return fmt.Errorf("order %d: %w", id, ErrDistributorSet)
	}
	o.Distributor = distributor
	o.RecordStatus(models.StatusDispatched, time.Now().UTC())
	return nil
}

func (m *Memory) UpdateOrderTemperature(_ context.Context, id int64, temperature int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	t := temperature
	o.Temperature = &t
	o.LastUpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) CreateProduct(_ context.Context, p *models.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productSeq++
	c := *p
	c.ProductID = m.productSeq
	m.products[c.ProductID] = &c
	return c.ProductID, nil
}

func (m *Memory) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
	}
	c := *p
	return &c, nil
}

func (m *Memory) ListProductsByManufacturer(_ context.Context, addr string) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*models.Product, 0)
	for _, p := range m.products {
		if p.Manufacturer == addr {
			c := *p
			res = append(res, &c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ProductID < res[j].ProductID })
	return res, nil
}

func (m *Memory) SetProductStatus(_ context.Context, id int64, status models.ProductStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, ErrProductNotFound)
	}
	p.Status = status
	return nil
}

func (m *Memory) AddManufacturer(_ context.Context, r *models.Manufacturer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.manufacturers[r.Addr] = &c
	return nil
}

func (m *Memory) GetManufacturer(_ context.Context, addr string) (*models.Manufacturer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.manufacturers[addr]
	if !ok {
		return nil, fmt.Errorf("manufacturer %s: %w", addr, ErrParticipantNotFound)
	}
	c := *r
	return &c, nil
}

func (m *Memory) ListManufacturers(_ context.Context) ([]*models.Manufacturer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*models.Manufacturer, 0, len(m.manufacturers))
	for _, r := range m.manufacturers {
		c := *r
		res = append(res, &c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Addr < res[j].Addr })
	return res, nil
}

func (m *Memory) AddRetailer(_ context.Context, r *models.Retailer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.retailers[r.Addr] = &c
	return nil
}

func (m *Memory) GetRetailer(_ context.Context, addr string) (*models.Retailer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.retailers[addr]
	if !ok {
		return nil, fmt.Errorf("retailer %s: %w", addr, ErrParticipantNotFound)
	}
	c := *r
	return &c, nil
}

func (m *Memory) AddDistributor(_ context.Context, d *models.Distributor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	m.distributors[d.Addr] = &c
	return nil
}

func (m *Memory) GetDistributor(_ context.Context, addr string) (*models.Distributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.distributors[addr]
	if !ok {
		return nil, fmt.Errorf("distributor %s: %w", addr, ErrParticipantNotFound)
	}
	c := *d
	return &c, nil
}

func (m *Memory) ListDistributors(_ context.Context) ([]*models.Distributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*models.Distributor, 0, len(m.distributors))
	for _, d := range m.distributors {
		c := *d
		res = append(res, &c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Addr < res[j].Addr })
	return res, nil
}

func (m *Memory) RoleOf(_ context.Context, addr string) (models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.manufacturers[addr]; ok {
		return models.RoleManufacturer, nil
	}
	if _, ok := m.retailers[addr]; ok {
		return models.RoleRetailer, nil
	}
	if _, ok := m.distributors[addr]; ok {
		return models.RoleDistributor, nil
	}
	return "", fmt.Errorf("address %s: %w", addr, ErrParticipantNotFound)
}
