package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, machine *Machine) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Machine, error)
	// FindByIDForUpdate takes a row lock so concurrent approvals against the
	// same machine serialize inside their transactions.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*Machine, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Machine, error)
	Update(ctx context.Context, db *gorm.DB, machine *Machine) error

	UpsertPricingTable(ctx context.Context, db *gorm.DB, table *PricingTable) error
	FindPricingTableByMachineID(ctx context.Context, db *gorm.DB, machineID int64) (*PricingTable, error)
}
