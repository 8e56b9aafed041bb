package models

import "time"

// OrderStatus defines the possible states of an order.
type OrderStatus string

const (
	StatusAwaitingAcceptance   OrderStatus = "Waiting for manufacturer acceptance" // Initial state after the retailer places the order
	StatusRejectedManufacturer OrderStatus = "Rejected by manufacturer"            // Terminal
	StatusAwaitingPayment      OrderStatus = "Waiting for payment"                 // Manufacturer accepted, retailer must pay
	StatusPaid                 OrderStatus = "Paid"
	StatusCanceled             OrderStatus = "Canceled" // Terminal
	StatusPreparingDispatch    OrderStatus = "Preparing for Dispatch"
	StatusDispatched           OrderStatus = "Dispatched" // Distributor assigned, awaiting its decision
	StatusAcceptedDistributor  OrderStatus = "Accepted by Distributor"
	StatusRejectedDistributor  OrderStatus = "Rejected by Distributor" // Re-enterable: the order may be reassigned
	StatusInTransit            OrderStatus = "In Transit"
	StatusDelivered            OrderStatus = "Delivered to Retailer"
	StatusCompleted            OrderStatus = "Completed"                          // Terminal
	StatusRejectedRetailer     OrderStatus = "Rejected by Retailer"               // Terminal
	StatusRejectedUnsafeTemp   OrderStatus = "Rejected due to Unsafe Temperature" // Terminal, written only by the sentinel
)

// Role identifies the kind of participant driving an order transition.
type Role string

const (
	RoleRetailer     Role = "retailer"
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
	RoleSentinel     Role = "sentinel"
)

// TransportMode is the cold-chain handling class of a product.
type TransportMode string

const (
	TransportRefrigerated TransportMode = "Refrigerated"
	TransportFrozen       TransportMode = "Frozen"
	TransportAmbient      TransportMode = "Ambient"
)

// DeliveryInfo carries the retailer-chosen delivery constraints of an order.
// DeliveryDate is an ISO date (YYYY-MM-DD); DeliveryTime is "AM" or "PM".
type DeliveryInfo struct {
	DeliveryDate    string `json:"deliveryDate"`
	DeliveryTime    string `json:"deliveryTime"`
	ShippingAddress string `json:"shippingAddress"`
}

// HistoryEntry is one append-only record of a status change.
type HistoryEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Status    OrderStatus `json:"status"`
}

// Order is the central record tracked on the ledger.
type Order struct {
	OrderID         int64          `json:"orderId"`
	Retailer        string         `json:"retailer"`
	Manufacturer    string         `json:"manufacturer"`
	Distributor     string         `json:"distributor,omitempty"` // empty until assigned
	ProductID       int64          `json:"productId"`
	Quantity        int            `json:"quantity"`
	Price           int64          `json:"price"`
	DeliveryInfo    DeliveryInfo   `json:"deliveryInfo"`
	Status          OrderStatus    `json:"status"`
	Temperature     *int           `json:"temperature,omitempty"` // latest feed reading, °C
	History         []HistoryEntry `json:"orderHistory"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastUpdatedAt   time.Time      `json:"lastUpdatedAt"`
}

// RecordStatus sets the new status and appends the matching history entry.
func (o *Order) RecordStatus(newStatus OrderStatus, at time.Time) {
	o.Status = newStatus
	o.LastUpdatedAt = at
	o.History = append(o.History, HistoryEntry{Timestamp: at, Status: newStatus})
}

// ProductDetails holds the commercial attributes of a product.
type ProductDetails struct {
	Weight           float64       `json:"weight"`
	Price            int64         `json:"price"`
	ItemsPerPack     int           `json:"itemsPerPack"`
	TransportMode    TransportMode `json:"transportMode"`
	MinOrderQuantity int           `json:"minOrderQuantity"`
	MaxOrderQuantity int           `json:"maxOrderQuantity"`
}

// ProductStatus is the stock availability of a product.
type ProductStatus string

const (
	ProductInStock    ProductStatus = "In Stock"
	ProductOutOfStock ProductStatus = "Out of Stock"
)

// Product is a manufacturer's catalog entry with its safe temperature band.
type Product struct {
	ProductID    int64          `json:"productId"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Manufacturer string         `json:"manufacturer"`
	Status       ProductStatus  `json:"status"`
	MinTemp      int            `json:"minTemp"` // °C, inclusive
	MaxTemp      int            `json:"maxTemp"` // °C, inclusive
	Details      ProductDetails `json:"details"`
}

// TempInBand reports whether t lies inside the product's safe band.
// Both bounds are inclusive.
func (p *Product) TempInBand(t int) bool {
	return t >= p.MinTemp && t <= p.MaxTemp
}

// Manufacturer is a registered producer participant.
type Manufacturer struct {
	Addr        string `json:"ethAddress"`
	Name        string `json:"name"`
	AddressLine string `json:"addressLine"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
}

// Retailer is a registered store participant.
type Retailer struct {
	Addr            string `json:"ethAddress"`
	Name            string `json:"name"`
	PhysicalAddress string `json:"physicalAddress"`
	PhoneNumber     string `json:"phoneNumber"`
	Email           string `json:"email"`
}

// Distributor is a registered carrier with its capability and availability
// flags. WorkingDays is Sunday-first.
type Distributor struct {
	Addr            string  `json:"ethAddress"`
	Name            string  `json:"name"`
	PhysicalAddress string  `json:"physicalAddress"`
	PhoneNumber     string  `json:"phoneNumber"`
	Email           string  `json:"email"`
	IsRefrigerated  bool    `json:"isRefrigerated"`
	IsFrozen        bool    `json:"isFrozen"`
	IsAmbient       bool    `json:"isAmbient"`
	IsAM            bool    `json:"isAM"`
	IsPM            bool    `json:"isPM"`
	WorkingDays     [7]bool `json:"workingDays"`
}

// SupportsTransport reports whether the distributor can carry goods that
// require the given mode.
func (d *Distributor) SupportsTransport(mode TransportMode) bool {
	switch mode {
	case TransportRefrigerated:
		return d.IsRefrigerated
	case TransportFrozen:
		return d.IsFrozen
	case TransportAmbient:
		return d.IsAmbient
	}
	return false
}
