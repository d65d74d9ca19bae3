package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusRetired   Status = "retired"
)

// SlotDefinition describes one physical slot on a machine built from the
// template. Capacity is the number of product units the slot holds.
type SlotDefinition struct {
	Index       int    `json:"index"`
	Label       string `json:"label"`
	Capacity    int    `json:"capacity"`
	AllowedType string `json:"allowed_type,omitempty"`
}

type Template struct {
	ID        int64          `json:"id" gorm:"primaryKey"`
	Code      string         `json:"code" gorm:"type:text;not null;uniqueIndex:ux_machine_templates_code"`
	Name      string         `json:"name" gorm:"type:text;not null"`
	Status    Status         `json:"status" gorm:"type:text;not null;default:'draft'"`
	Slots     datatypes.JSON `json:"slots" gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Template) TableName() string { return "machine_templates" }

func (t *Template) SlotDefinitions() ([]SlotDefinition, error) {
	var defs []SlotDefinition
	if len(t.Slots) == 0 {
		return defs, nil
	}
	if err := json.Unmarshal(t.Slots, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}
