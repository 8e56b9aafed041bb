package repository

import "database/sql"

// Store bundles the three slices into the full ledger surface.
type Store struct {
	*OrderRepository
	*ProductRepository
	*RoleRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		OrderRepository:   NewOrderRepository(db),
		ProductRepository: NewProductRepository(db),
		RoleRepository:    NewRoleRepository(db),
	}
}
