package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/vendora/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Archive(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Name        string `form:"name"`
	ProductType string `form:"product_type"`
	Active      *bool  `form:"active"`
	SortBy      string `form:"sort_by"`
	OrderBy     string `form:"order_by"`
	pagination.Pagination
}

type ListResponse struct {
	Products []Response `json:"products"`
	pagination.PageInfo
}

type CreateRequest struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	ProductType string         `json:"product_type"`
	BasePrice   *float64       `json:"base_price"`
	Active      *bool          `json:"active"`
	Metadata    map[string]any `json:"metadata"`
}

type UpdateRequest struct {
	ID        string         `json:"-"`
	Name      *string        `json:"name"`
	BasePrice *float64       `json:"base_price"`
	Active    *bool          `json:"active"`
	Metadata  map[string]any `json:"metadata"`
}

type Response struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	ProductType string         `json:"product_type"`
	BasePrice   float64        `json:"base_price"`
	Active      bool           `json:"active"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

var (
	ErrInvalidCode        = errors.New("invalid_code")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidProductType = errors.New("invalid_product_type")
	ErrInvalidBasePrice   = errors.New("invalid_base_price")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
