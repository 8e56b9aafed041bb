package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/models"
)

// RoleRepository is the participant registry. An address belongs to at most
// one role table; RoleOf probes them in a fixed order.
type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) AddManufacturer(ctx context.Context, m *models.Manufacturer) error {
	query := `
		INSERT INTO manufacturers (addr, name, address_line, phone_number, email)
		VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.ExecContext(ctx, query, m.Addr, m.Name, m.AddressLine, m.PhoneNumber, m.Email)
	if err != nil {
		return fmt.Errorf("add manufacturer: %w", err)
	}
	return nil
}

func (r *RoleRepository) GetManufacturer(ctx context.Context, addr string) (*models.Manufacturer, error) {
	m := &models.Manufacturer{}
	err := r.db.QueryRowContext(ctx,
		`SELECT addr, name, address_line, phone_number, email FROM manufacturers WHERE addr=$1`, addr,
	).Scan(&m.Addr, &m.Name, &m.AddressLine, &m.PhoneNumber, &m.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manufacturer %s: %w", addr, ledger.ErrParticipantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get manufacturer: %w", err)
	}
	return m, nil
}

func (r *RoleRepository) ListManufacturers(ctx context.Context) ([]*models.Manufacturer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT addr, name, address_line, phone_number, email FROM manufacturers ORDER BY addr`)
	if err != nil {
		return nil, fmt.Errorf("list manufacturers: %w", err)
	}
	defer rows.Close()

	var res []*models.Manufacturer
	for rows.Next() {
		m := &models.Manufacturer{}
		if err := rows.Scan(&m.Addr, &m.Name, &m.AddressLine, &m.PhoneNumber, &m.Email); err != nil {
			return nil, fmt.Errorf("scan manufacturer: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list manufacturers: %w", err)
	}
	return res, nil
}

func (r *RoleRepository) AddRetailer(ctx context.Context, ret *models.Retailer) error {
	query := `
		INSERT INTO retailers (addr, name, physical_address, phone_number, email)
		VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.ExecContext(ctx, query, ret.Addr, ret.Name, ret.PhysicalAddress, ret.PhoneNumber, ret.Email)
	if err != nil {
		return fmt.Errorf("add retailer: %w", err)
	}
	return nil
}

func (r *RoleRepository) GetRetailer(ctx context.Context, addr string) (*models.Retailer, error) {
	ret := &models.Retailer{}
	err := r.db.QueryRowContext(ctx,
		`SELECT addr, name, physical_address, phone_number, email FROM retailers WHERE addr=$1`, addr,
	).Scan(&ret.Addr, &ret.Name, &ret.PhysicalAddress, &ret.PhoneNumber, &ret.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("retailer %s: %w", addr, ledger.ErrParticipantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get retailer: %w", err)
	}
	return ret, nil
}

func (r *RoleRepository) AddDistributor(ctx context.Context, d *models.Distributor) error {
	query := `
		INSERT INTO distributors (
			addr, name, physical_address, phone_number, email,
			is_refrigerated, is_frozen, is_ambient, is_am, is_pm, working_days
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.ExecContext(ctx, query,
		d.Addr, d.Name, d.PhysicalAddress, d.PhoneNumber, d.Email,
		d.IsRefrigerated, d.IsFrozen, d.IsAmbient, d.IsAM, d.IsPM, pq.Array(d.WorkingDays[:]),
	)
	if err != nil {
		return fmt.Errorf("add distributor: %w", err)
	}
	return nil
}

func (r *RoleRepository) GetDistributor(ctx context.Context, addr string) (*models.Distributor, error) {
	d, err := scanDistributor(r.db.QueryRowContext(ctx, distributorSelect+` WHERE addr=$1`, addr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("distributor %s: %w", addr, ledger.ErrParticipantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get distributor: %w", err)
	}
	return d, nil
}

func (r *RoleRepository) ListDistributors(ctx context.Context) ([]*models.Distributor, error) {
	rows, err := r.db.QueryContext(ctx, distributorSelect+` ORDER BY addr`)
	if err != nil {
		return nil, fmt.Errorf("list distributors: %w", err)
	}
	defer rows.Close()

	var res []*models.Distributor
	for rows.Next() {
		d, err := scanDistributor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan distributor: %w", err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list distributors: %w", err)
	}
	return res, nil
}

// RoleOf probes the three registries for the address.
func (r *RoleRepository) RoleOf(ctx context.Context, addr string) (models.Role, error) {
	queries := []struct {
		role  models.Role
		query string
	}{
		{models.RoleManufacturer, `SELECT EXISTS(SELECT 1 FROM manufacturers WHERE addr=$1)`},
		{models.RoleRetailer, `SELECT EXISTS(SELECT 1 FROM retailers WHERE addr=$1)`},
		{models.RoleDistributor, `SELECT EXISTS(SELECT 1 FROM distributors WHERE addr=$1)`},
	}
	for _, q := range queries {
		var exists bool
		if err := r.db.QueryRowContext(ctx, q.query, addr).Scan(&exists); err != nil {
			return "", fmt.Errorf("resolve role: %w", err)
		}
		if exists {
			return q.role, nil
		}
	}
	return "", fmt.Errorf("address %s: %w", addr, ledger.ErrParticipantNotFound)
}

const distributorSelect = `
	SELECT addr, name, physical_address, phone_number, email,
	       is_refrigerated, is_frozen, is_ambient, is_am, is_pm, working_days
	FROM distributors`

func scanDistributor(row rowScanner) (*models.Distributor, error) {
	d := &models.Distributor{}
	var days pq.BoolArray
	err := row.Scan(
		&d.Addr, &d.Name, &d.PhysicalAddress, &d.PhoneNumber, &d.Email,
		&d.IsRefrigerated, &d.IsFrozen, &d.IsAmbient, &d.IsAM, &d.IsPM, &days,
	)
	if err != nil {
		return nil, err
	}
	copy(d.WorkingDays[:], days)
	return d, nil
}
