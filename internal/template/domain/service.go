package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Publish(ctx context.Context, id string) (*Response, error)
	Retire(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Status  string
	SortBy  string
	OrderBy string
}

type CreateRequest struct {
	Code  string           `json:"code"`
	Name  string           `json:"name"`
	Slots []SlotDefinition `json:"slots"`
}

type UpdateRequest struct {
	ID    string           `json:"-"`
	Name  *string          `json:"name"`
	Slots []SlotDefinition `json:"slots"`
}

type Response struct {
	ID        string           `json:"id"`
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	Status    Status           `json:"status"`
	Slots     []SlotDefinition `json:"slots"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

var (
	ErrInvalidCode    = errors.New("invalid_code")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidSlots   = errors.New("invalid_slots")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
	ErrNotDraft       = errors.New("template_not_draft")
	ErrNotPublished   = errors.New("template_not_published")
	ErrAlreadyRetired = errors.New("template_already_retired")
)
