// Package repository implements the ledger interfaces against Postgres.
// Status changes go through compare-and-set updates keyed on the current
// status, so a writer racing another writer loses cleanly instead of
// clobbering a transition that already happened.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/models"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, retailer, manufacturer, distributor, product_id, quantity, price,
	delivery_date, delivery_time, shipping_address,
	status, temperature, history, rejection_reason, created_at, last_updated_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, o *models.Order) (int64, error) {
	history, err := json.Marshal(o.History)
	if err != nil {
		return 0, fmt.Errorf("encode order history: %w", err)
	}
	query := `
		INSERT INTO orders (
			retailer, manufacturer, distributor, product_id, quantity, price,
			delivery_date, delivery_time, shipping_address,
			status, temperature, history, rejection_reason, created_at, last_updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`
	var id int64
	err = r.db.QueryRowContext(ctx, query,
		o.Retailer, o.Manufacturer, o.Distributor, o.ProductID, o.Quantity, o.Price,
		o.DeliveryInfo.DeliveryDate, o.DeliveryInfo.DeliveryTime, o.DeliveryInfo.ShippingAddress,
		o.Status, nullableInt(o.Temperature), history, o.RejectionReason, o.CreatedAt, o.LastUpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ledger.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return r.listWhere(ctx, "", nil)
}

func (r *OrderRepository) ListOrdersByManufacturer(ctx context.Context, manufacturer string) ([]*models.Order, error) {
	return r.listWhere(ctx, "WHERE manufacturer=$1", []interface{}{manufacturer})
}

func (r *OrderRepository) ListOrdersByRetailer(ctx context.Context, retailer string) ([]*models.Order, error) {
	return r.listWhere(ctx, "WHERE retailer=$1", []interface{}{retailer})
}

func (r *OrderRepository) ListOrdersByDistributor(ctx context.Context, distributor string) ([]*models.Order, error) {
	return r.listWhere(ctx, "WHERE distributor=$1", []interface{}{distributor})
}

func (r *OrderRepository) listWhere(ctx context.Context, where string, args []interface{}) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var res []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return res, nil
}

// UpdateOrderStatus moves the order from one status to another. The WHERE
// clause pins the expected current status; zero rows affected means another
// writer got there first. An empty reason leaves any recorded one intact.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus, reason string) error {
	entry, err := json.Marshal(models.HistoryEntry{Timestamp: nowUTC(), Status: to})
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	query := `
		UPDATE orders
		SET status=$1,
		    rejection_reason = CASE WHEN $2 <> '' THEN $2 ELSE rejection_reason END,
		    history = history || $3::jsonb,
		    last_updated_at=NOW()
		WHERE id=$4 AND status=$5`
	res, err := r.db.ExecContext(ctx, query, to, reason, entry, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return r.checkCAS(ctx, res, id)
}

// AssignDistributor sets the distributor and moves the order to the
// dispatched status in one write.
func (r *OrderRepository) AssignDistributor(ctx context.Context, id int64, from models.OrderStatus, distributor string) error {
	if from != models.StatusRejectedDistributor {
		var current string
		err := r.db.QueryRowContext(ctx, `SELECT distributor FROM orders WHERE id=$1`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %d: %w", id, ledger.ErrOrderNotFound)
		}
		if err != nil {
			return fmt.Errorf("assign distributor: %w", err)
		}
		if current != "" {
			return fmt.Errorf("order %d: %w", id, ledger.ErrDistributorSet)
		}
	}
	entry, err := json.Marshal(models.HistoryEntry{Timestamp: nowUTC(), Status: models.StatusDispatched})
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	query := `
		UPDATE orders
		SET distributor=$1, status=$2,
		    history = history || $3::jsonb,
		    last_updated_at=NOW()
		WHERE id=$4 AND status=$5`
	res, err := r.db.ExecContext(ctx, query, distributor, models.StatusDispatched, entry, id, from)
	if err != nil {
		return fmt.Errorf("assign distributor: %w", err)
	}
	return r.checkCAS(ctx, res, id)
}

// UpdateOrderTemperature records the latest reading without touching status.
func (r *OrderRepository) UpdateOrderTemperature(ctx context.Context, id int64, temperature int) error {
	query := `UPDATE orders SET temperature=$1, last_updated_at=NOW() WHERE id=$2`
	res, err := r.db.ExecContext(ctx, query, temperature, id)
	if err != nil {
		return fmt.Errorf("update order temperature: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("order %d: %w", id, ledger.ErrOrderNotFound)
	}
	return nil
}

func (r *OrderRepository) checkCAS(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("order %d: %w", id, ledger.ErrOrderNotFound)
	}
	return fmt.Errorf("order %d: %w", id, ledger.ErrStaleStatus)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	var temperature sql.NullInt64
	var history []byte
	err := row.Scan(
		&o.OrderID, &o.Retailer, &o.Manufacturer, &o.Distributor, &o.ProductID, &o.Quantity, &o.Price,
		&o.DeliveryInfo.DeliveryDate, &o.DeliveryInfo.DeliveryTime, &o.DeliveryInfo.ShippingAddress,
		&o.Status, &temperature, &history, &o.RejectionReason, &o.CreatedAt, &o.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if temperature.Valid {
		t := int(temperature.Int64)
		o.Temperature = &t
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &o.History); err != nil {
			return nil, fmt.Errorf("decode order history: %w", err)
		}
	}
	return o, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func nullableInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
