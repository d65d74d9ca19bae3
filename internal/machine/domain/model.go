package domain

import (
	"encoding/json"
	"time"

	"github.com/smallbiznis/vendora/internal/slotstorage"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft          Status = "draft"
	StatusActive         Status = "active"
	StatusDecommissioned Status = "decommissioned"
)

// Machine is a deployed vending machine built from a template. Slots holds
// the unit grid as JSON. Fleets migrated from older systems may still carry
// one of the legacy grid encodings, so reads always go through
// slotstorage.Decode and writes store the canonical nested form.
type Machine struct {
	ID              int64          `json:"id" gorm:"primaryKey"`
	Code            string         `json:"code" gorm:"type:text;not null;uniqueIndex:ux_machines_code"`
	Name            string         `json:"name" gorm:"type:text;not null"`
	Location        string         `json:"location" gorm:"type:text"`
	TemplateID      int64          `json:"template_id" gorm:"not null;index"`
	Status          Status         `json:"status" gorm:"type:text;not null;default:'draft'"`
	Slots           datatypes.JSON `json:"slots" gorm:"type:jsonb;not null"`
	CommissionRates datatypes.JSON `json:"commission_rates" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Machine) TableName() string { return "machines" }

func (m *Machine) Storage() (*slotstorage.Storage, error) {
	return slotstorage.Decode([]byte(m.Slots))
}

func (m *Machine) SlotCommissionRates() ([]float64, error) {
	var rates []float64
	if len(m.CommissionRates) == 0 {
		return rates, nil
	}
	if err := json.Unmarshal(m.CommissionRates, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// PricingTable mirrors the slot grid of its machine. Entries is a nested
// array with one breakdown per unit, null where the unit is unassigned.
type PricingTable struct {
	ID        int64          `json:"id" gorm:"primaryKey"`
	MachineID int64          `json:"machine_id" gorm:"not null;uniqueIndex:ux_pricing_tables_machine"`
	Entries   datatypes.JSON `json:"entries" gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PricingTable) TableName() string { return "pricing_tables" }
