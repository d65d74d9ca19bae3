package repository

import (
	"context"
	"strconv"

	"github.com/smallbiznis/vendora/internal/machine/domain"
	"github.com/smallbiznis/vendora/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, machine *domain.Machine) error {
	return db.WithContext(ctx).Create(machine).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Machine, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*domain.Machine, error) {
	return r.findByID(ctx, db, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id int64, forUpdate bool) (*domain.Machine, error) {
	stmt := db.WithContext(ctx).Where("id = ?", id)
	if forUpdate && stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m domain.Machine
	if err := stmt.First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Machine, error) {
	var items []domain.Machine
	stmt := db.WithContext(ctx).Model(&domain.Machine{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.TemplateID != "" {
		templateID, err := strconv.ParseInt(filter.TemplateID, 10, 64)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		stmt = stmt.Where("template_id = ?", templateID)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
		"code":       true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, machine *domain.Machine) error {
	if machine == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Model(&domain.Machine{}).
		Where("id = ?", machine.ID).
		Updates(map[string]any{
			"name":             machine.Name,
			"location":         machine.Location,
			"status":           machine.Status,
			"slots":            machine.Slots,
			"commission_rates": machine.CommissionRates,
			"updated_at":       machine.UpdatedAt,
		}).Error
}

func (r *repo) UpsertPricingTable(ctx context.Context, db *gorm.DB, table *domain.PricingTable) error {
	if table == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "machine_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"entries", "updated_at"}),
		}).
		Create(table).Error
}

func (r *repo) FindPricingTableByMachineID(ctx context.Context, db *gorm.DB, machineID int64) (*domain.PricingTable, error) {
	var t domain.PricingTable
	err := db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
