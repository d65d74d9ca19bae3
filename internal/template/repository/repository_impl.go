package repository

import (
	"context"

	"github.com/smallbiznis/vendora/internal/template/domain"
	"github.com/smallbiznis/vendora/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, template *domain.Template) error {
	return db.WithContext(ctx).Create(template).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Template, error) {
	var t domain.Template
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Template, error) {
	var items []domain.Template
	stmt := db.WithContext(ctx).Model(&domain.Template{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, template *domain.Template) error {
	if template == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Model(&domain.Template{}).
		Where("id = ?", template.ID).
		Updates(map[string]any{
			"name":       template.Name,
			"status":     template.Status,
			"slots":      template.Slots,
			"updated_at": template.UpdatedAt,
		}).Error
}
