package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/vendora/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("template.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

// normalizeSlots validates slot definitions and rewrites indexes to the
// contiguous 0..n-1 range machines are addressed by.
func normalizeSlots(defs []domain.SlotDefinition) ([]domain.SlotDefinition, error) {
	if len(defs) == 0 {
		return nil, domain.ErrInvalidSlots
	}

	out := make([]domain.SlotDefinition, 0, len(defs))
	for i, def := range defs {
		if def.Capacity < 1 {
			return nil, domain.ErrInvalidSlots
		}
		label := strings.TrimSpace(def.Label)
		if label == "" {
			return nil, domain.ErrInvalidSlots
		}
		out = append(out, domain.SlotDefinition{
			Index:       i,
			Label:       label,
			Capacity:    def.Capacity,
			AllowedType: strings.ToLower(strings.TrimSpace(def.AllowedType)),
		})
	}
	return out, nil
}

func encodeSlots(defs []domain.SlotDefinition) (datatypes.JSON, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	defs, err := normalizeSlots(req.Slots)
	if err != nil {
		return nil, err
	}
	slots, err := encodeSlots(defs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &domain.Template{
		ID:        s.genID.Generate().Int64(),
		Code:      code,
		Name:      name,
		Status:    domain.StatusDraft,
		Slots:     slots,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, s.db, t); err != nil {
		return nil, err
	}
	return s.toResponse(t)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		Status:  strings.ToLower(strings.TrimSpace(req.Status)),
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		r, err := s.toResponse(&items[i])
		if err != nil {
			return nil, err
		}
		resp = append(resp, *r)
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(item)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	item, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Slots != nil {
		defs, err := normalizeSlots(req.Slots)
		if err != nil {
			return nil, err
		}
		slots, err := encodeSlots(defs)
		if err != nil {
			return nil, err
		}
		item.Slots = slots
	}

	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return s.toResponse(item)
}

func (s *Service) Publish(ctx context.Context, id string) (*domain.Response, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	item.Status = domain.StatusPublished
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return s.toResponse(item)
}

func (s *Service) Retire(ctx context.Context, id string) (*domain.Response, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == domain.StatusRetired {
		return nil, domain.ErrAlreadyRetired
	}

	item.Status = domain.StatusRetired
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return s.toResponse(item)
}

func (s *Service) find(ctx context.Context, id string) (*domain.Template, error) {
	templateID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, templateID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) toResponse(t *domain.Template) (*domain.Response, error) {
	defs, err := t.SlotDefinitions()
	if err != nil {
		return nil, err
	}
	return &domain.Response{
		ID:        snowflake.ID(t.ID).String(),
		Code:      t.Code,
		Name:      t.Name,
		Status:    t.Status,
		Slots:     defs,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, nil
}
