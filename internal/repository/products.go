package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `
	id, name, description, manufacturer, status, min_temp, max_temp,
	weight, price, items_per_pack, transport_mode, min_order_quantity, max_order_quantity`

func (r *ProductRepository) CreateProduct(ctx context.Context, p *models.Product) (int64, error) {
	query := `
		INSERT INTO products (
			name, description, manufacturer, status, min_temp, max_temp,
			weight, price, items_per_pack, transport_mode, min_order_quantity, max_order_quantity
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Manufacturer, p.Status, p.MinTemp, p.MaxTemp,
		p.Details.Weight, p.Details.Price, p.Details.ItemsPerPack, p.Details.TransportMode,
		p.Details.MinOrderQuantity, p.Details.MaxOrderQuantity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

func (r *ProductRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id=$1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ledger.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) ListProductsByManufacturer(ctx context.Context, addr string) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE manufacturer=$1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, addr)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var res []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return res, nil
}

func (r *ProductRepository) SetProductStatus(ctx context.Context, id int64, status models.ProductStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return fmt.Errorf("set product status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ledger.ErrProductNotFound)
	}
	return nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(
		&p.ProductID, &p.Name, &p.Description, &p.Manufacturer, &p.Status, &p.MinTemp, &p.MaxTemp,
		&p.Details.Weight, &p.Details.Price, &p.Details.ItemsPerPack, &p.Details.TransportMode,
		&p.Details.MinOrderQuantity, &p.Details.MaxOrderQuantity,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
