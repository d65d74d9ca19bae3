package repository

import (
	"context"

	"github.com/smallbiznis/vendora/internal/changerequest/domain"
	"github.com/smallbiznis/vendora/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, request *domain.ChangeRequest) error {
	return db.WithContext(ctx).Create(request).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.ChangeRequest, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.ChangeRequest, error) {
	return r.findOne(ctx, db, "reference = ?", reference)
}

func (r *repo) FindByRequestKey(ctx context.Context, db *gorm.DB, requestKey string) (*domain.ChangeRequest, error) {
	return r.findOne(ctx, db, "request_key = ?", requestKey)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.ChangeRequest, error) {
	var request domain.ChangeRequest
	err := db.WithContext(ctx).
		Where(query, arg).
		First(&request).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repo) ListByMachine(ctx context.Context, db *gorm.DB, machineID int64, filter domain.ListRequest) ([]domain.ChangeRequest, error) {
	var items []domain.ChangeRequest
	stmt := db.WithContext(ctx).
		Model(&domain.ChangeRequest{}).
		Where("machine_id = ?", machineID)

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at": true,
		"updated_at": true,
		"status":     true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, request *domain.ChangeRequest) error {
	if request == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Model(&domain.ChangeRequest{}).
		Where("id = ?", request.ID).
		Updates(map[string]any{
			"status":      request.Status,
			"reviewed_by": request.ReviewedBy,
			"notes":       request.Notes,
			"decided_at":  request.DecidedAt,
			"updated_at":  request.UpdatedAt,
		}).Error
}
