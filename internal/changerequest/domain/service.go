package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/vendora/internal/slotstorage"
)

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*Response, error)
	Approve(ctx context.Context, req DecisionRequest) (*Response, error)
	Reject(ctx context.Context, req DecisionRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	ListByMachine(ctx context.Context, machineID string, filter ListRequest) ([]Response, error)
}

type ListRequest struct {
	Status  string
	SortBy  string
	OrderBy string
}

type SubmitRequest struct {
	MachineID        string               `json:"machine_id"`
	RequestKey       string               `json:"request_key"`
	CurrentProductID string               `json:"current_product_id"`
	NewProductID     string               `json:"new_product_id"`
	Hint             *slotstorage.Address `json:"hint,omitempty"`
	Reason           string               `json:"reason"`
	RequestedBy      string               `json:"requested_by"`
}

type DecisionRequest struct {
	ID         string `json:"-"`
	ReviewedBy string `json:"reviewed_by"`
	Notes      string `json:"notes"`
}

type Response struct {
	ID               string               `json:"id"`
	Reference        string               `json:"reference"`
	MachineID        string               `json:"machine_id"`
	CurrentProductID string               `json:"current_product_id"`
	NewProductID     string               `json:"new_product_id"`
	Hint             *slotstorage.Address `json:"hint,omitempty"`
	Status           Status               `json:"status"`
	Reason           string               `json:"reason,omitempty"`
	Notes            string               `json:"notes,omitempty"`
	RequestedBy      string               `json:"requested_by,omitempty"`
	ReviewedBy       string               `json:"reviewed_by,omitempty"`
	DecidedAt        *time.Time           `json:"decided_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrNotFound            = errors.New("not_found")
	ErrMachineNotActive    = errors.New("machine_not_active")
	ErrUnknownProduct      = errors.New("unknown_product")
	ErrProductTypeMismatch = errors.New("product_type_mismatch")
	ErrProductNotPresent   = errors.New("product_not_present")
	ErrStaleRequest        = errors.New("stale_request")
	ErrAlreadyTerminal     = errors.New("request_already_terminal")
)
