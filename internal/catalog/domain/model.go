package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Product struct {
	ID          int64             `json:"id" gorm:"primaryKey"`
	Code        string            `json:"code" gorm:"type:text;not null;uniqueIndex:ux_products_code"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	ProductType string            `json:"product_type" gorm:"type:text;not null"`
	BasePrice   float64           `json:"base_price" gorm:"type:numeric;not null"`
	Active      bool              `json:"active" gorm:"not null;default:true"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
