package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, template *Template) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Template, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Template, error)
	Update(ctx context.Context, db *gorm.DB, template *Template) error
}
