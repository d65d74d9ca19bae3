package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	"github.com/smallbiznis/vendora/internal/config"
	"github.com/smallbiznis/vendora/internal/machine/domain"
	"github.com/smallbiznis/vendora/internal/slotstorage"
	templatedomain "github.com/smallbiznis/vendora/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Policy       *config.PricingPolicyHolder
	Repo         domain.Repository
	TemplateRepo templatedomain.Repository
	CatalogRepo  catalogdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	policy       *config.PricingPolicyHolder
	repo         domain.Repository
	templateRepo templatedomain.Repository
	catalogRepo  catalogdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("machine.service"),
		genID:        p.GenID,
		policy:       p.Policy,
		repo:         p.Repo,
		templateRepo: p.TemplateRepo,
		catalogRepo:  p.CatalogRepo,
	}
}

func (s *Service) Onboard(ctx context.Context, req domain.OnboardRequest) (*domain.Response, error) {
	templateID, err := snowflake.ParseString(strings.TrimSpace(req.TemplateID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	tpl, err := s.templateRepo.FindByID(ctx, s.db, templateID.Int64())
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, templatedomain.ErrNotFound
	}
	if tpl.Status != templatedomain.StatusPublished {
		return nil, domain.ErrTemplateNotPublished
	}

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

	defs, err := tpl.SlotDefinitions()
	if err != nil {
		return nil, err
	}

	grid := make([][]string, len(defs))
	rates := make([]float64, len(defs))
	for i, def := range defs {
		grid[i] = make([]string, def.Capacity)
	}

	store := slotstorage.NewNested(grid)
	slots, err := store.EncodeCanonical()
	if err != nil {
		return nil, err
	}
	encodedRates, err := encodeRates(rates)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &domain.Machine{
		ID:              s.genID.Generate().Int64(),
		Code:            code,
		Name:            name,
		Location:        strings.TrimSpace(req.Location),
		TemplateID:      tpl.ID,
		Status:          domain.StatusDraft,
		Slots:           slots,
		CommissionRates: encodedRates,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	entries, err := domain.BuildPricingEntries(store, rates, func(string) (float64, bool) {
		return 0, false
	}, s.policy.Get())
	if err != nil {
		return nil, err
	}
	encodedEntries, err := domain.EncodePricingEntries(entries)
	if err != nil {
		return nil, err
	}
	table := &domain.PricingTable{
		ID:        s.genID.Generate().Int64(),
		MachineID: m.ID,
		Entries:   encodedEntries,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, m); err != nil {
			return err
		}
		return s.repo.UpsertPricingTable(ctx, tx, table)
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(m)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		Status:  strings.ToLower(strings.TrimSpace(req.Status)),
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	}
	if raw := strings.TrimSpace(req.TemplateID); raw != "" {
		templateID, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		filter.TemplateID = templateID.String()
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
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(m)
}

func (s *Service) ReplaceAssignments(ctx context.Context, req domain.ReplaceAssignmentsRequest) (*domain.Response, error) {
	m, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if m.Status == domain.StatusDecommissioned {
		return nil, domain.ErrDecommissioned
	}
	if m.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	tpl, err := s.templateRepo.FindByID(ctx, s.db, m.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, templatedomain.ErrNotFound
	}
	defs, err := tpl.SlotDefinitions()
	if err != nil {
		return nil, err
	}

	store, err := m.Storage()
	if err != nil {
		return nil, err
	}
	if err := store.ValidateAgainst(len(defs)); err != nil {
		return nil, err
	}
	rates, err := m.SlotCommissionRates()
	if err != nil {
		return nil, err
	}

	grid := store.Slots()
	if len(grid) != len(defs) {
		return nil, domain.ErrInvalidAssignments
	}
	for len(rates) < len(defs) {
		rates = append(rates, 0)
	}

	policy := s.policy.Get()
	for _, assignment := range req.Assignments {
		if assignment.SlotIndex < 0 || assignment.SlotIndex >= len(defs) {
			return nil, domain.ErrInvalidAssignments
		}
		def := defs[assignment.SlotIndex]
		if len(assignment.ProductIDs) > def.Capacity {
			return nil, domain.ErrInvalidAssignments
		}
		if assignment.CommissionRate < 0 || assignment.CommissionRate > policy.MaxCommissionRate {
			return nil, domain.ErrInvalidAssignments
		}

		row := make([]string, def.Capacity)
		for i, productID := range assignment.ProductIDs {
			row[i] = slotstorage.NormalizeID(productID)
		}
		grid[assignment.SlotIndex] = row
		rates[assignment.SlotIndex] = assignment.CommissionRate
	}

	products, err := s.loadProducts(ctx, s.db, grid)
	if err != nil {
		return nil, err
	}
	for i, row := range grid {
		for _, productID := range row {
			if productID == "" {
				continue
			}
			p, ok := products[productID]
			if !ok || !p.Active {
				return nil, domain.ErrUnknownProduct
			}
			if defs[i].AllowedType != "" && p.ProductType != defs[i].AllowedType {
				return nil, domain.ErrProductTypeMismatch
			}
		}
	}

	next := slotstorage.NewNested(grid)
	if err := s.persist(ctx, m, next, rates, products); err != nil {
		return nil, err
	}
	return s.toResponse(m)
}

func (s *Service) Activate(ctx context.Context, id string) (*domain.Response, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == domain.StatusDecommissioned {
		return nil, domain.ErrDecommissioned
	}
	if m.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	tpl, err := s.templateRepo.FindByID(ctx, s.db, m.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, templatedomain.ErrNotFound
	}
	defs, err := tpl.SlotDefinitions()
	if err != nil {
		return nil, err
	}

	store, err := m.Storage()
	if err != nil {
		return nil, err
	}
	if err := store.ValidateAgainst(len(defs)); err != nil {
		return nil, err
	}
	grid := store.Slots()
	if len(grid) != len(defs) {
		return nil, domain.ErrIncompleteFill
	}
	for i, row := range grid {
		if len(row) != defs[i].Capacity {
			return nil, domain.ErrIncompleteFill
		}
		for _, productID := range row {
			if productID == "" {
				return nil, domain.ErrIncompleteFill
			}
		}
	}

	rates, err := m.SlotCommissionRates()
	if err != nil {
		return nil, err
	}
	products, err := s.loadProducts(ctx, s.db, grid)
	if err != nil {
		return nil, err
	}

	m.Status = domain.StatusActive
	if err := s.persist(ctx, m, store, rates, products); err != nil {
		return nil, err
	}

	s.log.Info("machine activated",
		zap.String("machine_id", snowflake.ID(m.ID).String()),
		zap.String("code", m.Code),
	)
	return s.toResponse(m)
}

func (s *Service) Decommission(ctx context.Context, id string) (*domain.Response, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == domain.StatusDecommissioned {
		return nil, domain.ErrDecommissioned
	}
	if m.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}

	m.Status = domain.StatusDecommissioned
	m.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, m); err != nil {
		return nil, err
	}

	s.log.Info("machine decommissioned",
		zap.String("machine_id", snowflake.ID(m.ID).String()),
	)
	return s.toResponse(m)
}

func (s *Service) PricingProjection(ctx context.Context, id string) (*domain.PricingProjection, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	table, err := s.repo.FindPricingTableByMachineID(ctx, s.db, m.ID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, domain.ErrNotFound
	}

	entries, err := domain.DecodePricingEntries(table.Entries)
	if err != nil {
		return nil, err
	}
	return &domain.PricingProjection{
		MachineID: snowflake.ID(m.ID).String(),
		Code:      m.Code,
		Status:    m.Status,
		Entries:   entries,
		UpdatedAt: table.UpdatedAt,
	}, nil
}

// persist writes the machine grid in canonical form together with a freshly
// computed pricing table, in a single transaction.
func (s *Service) persist(ctx context.Context, m *domain.Machine, store *slotstorage.Storage, rates []float64, products map[string]catalogdomain.Product) error {
	slots, err := store.EncodeCanonical()
	if err != nil {
		return err
	}
	encodedRates, err := encodeRates(rates)
	if err != nil {
		return err
	}

	entries, err := domain.BuildPricingEntries(store, rates, func(productID string) (float64, bool) {
		p, ok := products[productID]
		if !ok {
			return 0, false
		}
		return p.BasePrice, true
	}, s.policy.Get())
	if err != nil {
		return err
	}
	encodedEntries, err := domain.EncodePricingEntries(entries)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	m.Slots = slots
	m.CommissionRates = encodedRates
	m.UpdatedAt = now

	table := &domain.PricingTable{
		ID:        s.genID.Generate().Int64(),
		MachineID: m.ID,
		Entries:   encodedEntries,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, m); err != nil {
			return err
		}
		return s.repo.UpsertPricingTable(ctx, tx, table)
	})
}

func (s *Service) loadProducts(ctx context.Context, db *gorm.DB, grid [][]string) (map[string]catalogdomain.Product, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, row := range grid {
		for _, productID := range row {
			if productID == "" {
				continue
			}
			parsed, err := snowflake.ParseString(productID)
			if err != nil {
				return nil, domain.ErrUnknownProduct
			}
			if !seen[parsed.Int64()] {
				seen[parsed.Int64()] = true
				ids = append(ids, parsed.Int64())
			}
		}
	}

	items, err := s.catalogRepo.FindByIDs(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	products := make(map[string]catalogdomain.Product, len(items))
	for _, item := range items {
		products[snowflake.ID(item.ID).String()] = item
	}
	return products, nil
}

func (s *Service) find(ctx context.Context, id string) (*domain.Machine, error) {
	machineID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	m, err := s.repo.FindByID(ctx, s.db, machineID.Int64())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *Service) toResponse(m *domain.Machine) (*domain.Response, error) {
	store, err := m.Storage()
	if err != nil {
		return nil, err
	}
	rates, err := m.SlotCommissionRates()
	if err != nil {
		return nil, err
	}

	return &domain.Response{
		ID:              snowflake.ID(m.ID).String(),
		Code:            m.Code,
		Name:            m.Name,
		Location:        m.Location,
		TemplateID:      snowflake.ID(m.TemplateID).String(),
		Status:          m.Status,
		Slots:           store.Slots(),
		CommissionRates: rates,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}
