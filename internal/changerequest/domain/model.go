package domain

import (
	"time"

	"github.com/smallbiznis/vendora/internal/slotstorage"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether a request can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ChangeRequest proposes swapping one product unit on an active machine.
// SlotIndex and ProductIndex are an optional placement hint. When absent the
// approval scans the grid for the first unit holding CurrentProductID.
type ChangeRequest struct {
	ID               int64      `json:"id" gorm:"primaryKey"`
	Reference        string     `json:"reference" gorm:"type:text;not null;uniqueIndex:ux_change_requests_reference"`
	RequestKey       string     `json:"request_key" gorm:"type:text;not null;uniqueIndex:ux_change_requests_request_key"`
	MachineID        int64      `json:"machine_id" gorm:"not null;index"`
	SlotIndex        *int       `json:"slot_index,omitempty"`
	ProductIndex     *int       `json:"product_index,omitempty"`
	CurrentProductID string     `json:"current_product_id" gorm:"type:text;not null"`
	NewProductID     string     `json:"new_product_id" gorm:"type:text;not null"`
	Status           Status     `json:"status" gorm:"type:text;not null;default:'pending';index"`
	Reason           string     `json:"reason,omitempty" gorm:"type:text"`
	RequestedBy      string     `json:"requested_by,omitempty" gorm:"type:text"`
	ReviewedBy       string     `json:"reviewed_by,omitempty" gorm:"type:text"`
	Notes            string     `json:"notes,omitempty" gorm:"type:text"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ChangeRequest) TableName() string { return "change_requests" }

// Hint returns the placement hint, or nil when the request carries none.
func (r *ChangeRequest) Hint() *slotstorage.Address {
	if r.SlotIndex == nil || r.ProductIndex == nil {
		return nil
	}
	return &slotstorage.Address{
		SlotIndex:    *r.SlotIndex,
		ProductIndex: *r.ProductIndex,
	}
}
