package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/vendora/internal/pricing"
)

type Service interface {
	Onboard(ctx context.Context, req OnboardRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	ReplaceAssignments(ctx context.Context, req ReplaceAssignmentsRequest) (*Response, error)
	Activate(ctx context.Context, id string) (*Response, error)
	Decommission(ctx context.Context, id string) (*Response, error)
	PricingProjection(ctx context.Context, id string) (*PricingProjection, error)
}

type ListRequest struct {
	Status     string
	TemplateID string
	SortBy     string
	OrderBy    string
}

type OnboardRequest struct {
	TemplateID string `json:"template_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Location   string `json:"location"`
}

// SlotAssignment replaces the full unit list of one slot. Shorter unit
// lists than the slot capacity leave trailing units unassigned.
type SlotAssignment struct {
	SlotIndex      int      `json:"slot_index"`
	ProductIDs     []string `json:"product_ids"`
	CommissionRate float64  `json:"commission_rate"`
}

type ReplaceAssignmentsRequest struct {
	ID          string           `json:"-"`
	Assignments []SlotAssignment `json:"assignments"`
}

type Response struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	Location        string     `json:"location,omitempty"`
	TemplateID      string     `json:"template_id"`
	Status          Status     `json:"status"`
	Slots           [][]string `json:"slots"`
	CommissionRates []float64  `json:"commission_rates"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type PricingProjection struct {
	MachineID string                 `json:"machine_id"`
	Code      string                 `json:"code"`
	Status    Status                 `json:"status"`
	Entries   [][]*pricing.Breakdown `json:"entries"`
	UpdatedAt time.Time              `json:"updated_at"`
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrInvalidName          = errors.New("invalid_name")
	ErrNotFound             = errors.New("not_found")
	ErrTemplateNotPublished = errors.New("template_not_published")
	ErrInvalidAssignments   = errors.New("invalid_assignments")
	ErrUnknownProduct       = errors.New("unknown_product")
	ErrProductTypeMismatch  = errors.New("product_type_mismatch")
	ErrNotDraft             = errors.New("machine_not_draft")
	ErrNotActive            = errors.New("machine_not_active")
	ErrIncompleteFill       = errors.New("machine_incomplete_fill")
	ErrDecommissioned       = errors.New("machine_decommissioned")
)
