package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, request *ChangeRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*ChangeRequest, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*ChangeRequest, error)
	FindByRequestKey(ctx context.Context, db *gorm.DB, requestKey string) (*ChangeRequest, error)
	ListByMachine(ctx context.Context, db *gorm.DB, machineID int64, filter ListRequest) ([]ChangeRequest, error)
	Update(ctx context.Context, db *gorm.DB, request *ChangeRequest) error
}
