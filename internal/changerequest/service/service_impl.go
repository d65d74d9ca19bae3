package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	"github.com/smallbiznis/vendora/internal/changerequest/domain"
	"github.com/smallbiznis/vendora/internal/config"
	"github.com/smallbiznis/vendora/internal/locker"
	machinedomain "github.com/smallbiznis/vendora/internal/machine/domain"
	"github.com/smallbiznis/vendora/internal/pricing"
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
	Locker       locker.MachineLocker
	Policy       *config.PricingPolicyHolder
	Repo         domain.Repository
	MachineRepo  machinedomain.Repository
	TemplateRepo templatedomain.Repository
	CatalogRepo  catalogdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	locks        locker.MachineLocker
	policy       *config.PricingPolicyHolder
	repo         domain.Repository
	machineRepo  machinedomain.Repository
	templateRepo templatedomain.Repository
	catalogRepo  catalogdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("changerequest.service"),
		genID:        p.GenID,
		locks:        p.Locker,
		policy:       p.Policy,
		repo:         p.Repo,
		machineRepo:  p.MachineRepo,
		templateRepo: p.TemplateRepo,
		catalogRepo:  p.CatalogRepo,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Response, error) {
	machineID, err := snowflake.ParseString(strings.TrimSpace(req.MachineID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	current := slotstorage.NormalizeID(req.CurrentProductID)
	next := slotstorage.NormalizeID(req.NewProductID)
	if current == "" || next == "" {
		return nil, domain.ErrInvalidRequest
	}

	// Replaying the same request key returns the original request instead
	// of opening a second one.
	requestKey := strings.TrimSpace(req.RequestKey)
	if requestKey != "" {
		existing, err := s.repo.FindByRequestKey(ctx, s.db, requestKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.toResponse(existing), nil
		}
	} else {
		requestKey = uuid.NewString()
	}

	m, err := s.machineRepo.FindByID(ctx, s.db, machineID.Int64())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, machinedomain.ErrNotFound
	}
	if m.Status != machinedomain.StatusActive {
		return nil, domain.ErrMachineNotActive
	}

	if _, err := s.lookupProduct(ctx, next); err != nil {
		return nil, err
	}

	store, err := m.Storage()
	if err != nil {
		return nil, err
	}
	defs, err := s.templateDefs(ctx, s.db, m.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := store.ValidateAgainst(len(defs)); err != nil {
		return nil, err
	}
	if _, err := s.resolve(store, current, req.Hint, m.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	request := &domain.ChangeRequest{
		ID:               s.genID.Generate().Int64(),
		Reference:        ulid.Make().String(),
		RequestKey:       requestKey,
		MachineID:        m.ID,
		CurrentProductID: current,
		NewProductID:     next,
		Status:           domain.StatusPending,
		Reason:           strings.TrimSpace(req.Reason),
		RequestedBy:      strings.TrimSpace(req.RequestedBy),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Hint != nil {
		slotIndex := req.Hint.SlotIndex
		productIndex := req.Hint.ProductIndex
		request.SlotIndex = &slotIndex
		request.ProductIndex = &productIndex
	}

	if err := s.repo.Create(ctx, s.db, request); err != nil {
		return nil, err
	}

	s.log.Info("change request submitted",
		zap.String("reference", request.Reference),
		zap.String("machine_id", snowflake.ID(m.ID).String()),
	)
	return s.toResponse(request), nil
}

func (s *Service) Approve(ctx context.Context, req domain.DecisionRequest) (*domain.Response, error) {
	request, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, snowflake.ID(request.MachineID).String())
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Reload under the lock. Another approval may have landed between
		// the initial read and lock acquisition.
		request, err = s.repo.FindByID(ctx, tx, request.ID)
		if err != nil {
			return err
		}
		if request == nil {
			return domain.ErrNotFound
		}
		if request.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}

		m, err := s.machineRepo.FindByIDForUpdate(ctx, tx, request.MachineID)
		if err != nil {
			return err
		}
		if m == nil {
			return machinedomain.ErrNotFound
		}
		if m.Status != machinedomain.StatusActive {
			return domain.ErrMachineNotActive
		}

		store, err := m.Storage()
		if err != nil {
			return err
		}
		defs, err := s.templateDefs(ctx, tx, m.TemplateID)
		if err != nil {
			return err
		}
		if err := store.ValidateAgainst(len(defs)); err != nil {
			return err
		}

		addr, err := s.resolve(store, request.CurrentProductID, request.Hint(), m.ID)
		if err != nil {
			if err == domain.ErrProductNotPresent {
				return domain.ErrStaleRequest
			}
			return err
		}

		product, err := s.lookupProduct(ctx, request.NewProductID)
		if err != nil {
			return err
		}
		if err := checkAllowedType(defs, addr.SlotIndex, product); err != nil {
			return err
		}

		if err := store.Substitute(*addr, request.NewProductID); err != nil {
			return err
		}

		if err := s.persistMachine(ctx, tx, m, store, *addr, product); err != nil {
			return err
		}

		now := time.Now().UTC()
		request.Status = domain.StatusApproved
		request.ReviewedBy = strings.TrimSpace(req.ReviewedBy)
		request.Notes = strings.TrimSpace(req.Notes)
		request.DecidedAt = &now
		request.UpdatedAt = now
		return s.repo.Update(ctx, tx, request)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("change request approved",
		zap.String("reference", request.Reference),
		zap.String("machine_id", snowflake.ID(request.MachineID).String()),
	)
	return s.toResponse(request), nil
}

func (s *Service) Reject(ctx context.Context, req domain.DecisionRequest) (*domain.Response, error) {
	request, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		request, err = s.repo.FindByID(ctx, tx, request.ID)
		if err != nil {
			return err
		}
		if request == nil {
			return domain.ErrNotFound
		}
		if request.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}

		now := time.Now().UTC()
		request.Status = domain.StatusRejected
		request.ReviewedBy = strings.TrimSpace(req.ReviewedBy)
		request.Notes = strings.TrimSpace(req.Notes)
		request.DecidedAt = &now
		request.UpdatedAt = now
		return s.repo.Update(ctx, tx, request)
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(request), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(request), nil
}

func (s *Service) ListByMachine(ctx context.Context, machineID string, filter domain.ListRequest) ([]domain.Response, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(machineID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	items, err := s.repo.ListByMachine(ctx, s.db, parsed.Int64(), domain.ListRequest{
		Status:  strings.ToLower(strings.TrimSpace(filter.Status)),
		SortBy:  strings.TrimSpace(filter.SortBy),
		OrderBy: strings.TrimSpace(filter.OrderBy),
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *s.toResponse(&items[i]))
	}
	return resp, nil
}

// resolve locates the unit holding productID, flagging legacy grids where a
// hint-less scan is ambiguous.
func (s *Service) resolve(store *slotstorage.Storage, productID string, hint *slotstorage.Address, machineID int64) (*slotstorage.Address, error) {
	if hint == nil && slotstorage.Occurrences(store, productID) > 1 {
		s.log.Warn("legacy_scan_ambiguous",
			zap.String("machine_id", snowflake.ID(machineID).String()),
			zap.String("product_id", productID),
		)
	}

	addr, err := slotstorage.Resolve(store, productID, hint)
	if err != nil {
		if errors.Is(err, slotstorage.ErrProductNotFound) {
			return nil, domain.ErrProductNotPresent
		}
		return nil, err
	}
	return &addr, nil
}

func (s *Service) lookupProduct(ctx context.Context, productID string) (*catalogdomain.Product, error) {
	parsed, err := snowflake.ParseString(productID)
	if err != nil {
		return nil, domain.ErrUnknownProduct
	}
	product, err := s.catalogRepo.FindByID(ctx, s.db, parsed.Int64())
	if err != nil {
		return nil, err
	}
	if product == nil || !product.Active {
		return nil, domain.ErrUnknownProduct
	}
	return product, nil
}

// templateDefs loads the machine's slot definitions. A deleted template
// yields an empty set rather than an error so legacy machines stay readable.
func (s *Service) templateDefs(ctx context.Context, db *gorm.DB, templateID int64) ([]templatedomain.SlotDefinition, error) {
	tpl, err := s.templateRepo.FindByID(ctx, db, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, nil
	}
	return tpl.SlotDefinitions()
}

func checkAllowedType(defs []templatedomain.SlotDefinition, slotIndex int, product *catalogdomain.Product) error {
	if slotIndex >= len(defs) {
		return nil
	}
	if defs[slotIndex].AllowedType != "" && defs[slotIndex].AllowedType != product.ProductType {
		return domain.ErrProductTypeMismatch
	}
	return nil
}

// persistMachine writes the substituted grid canonically and replaces only
// the swapped unit's breakdown, computed from the new product's base price
// and the commission rate already stored at that unit. Every other entry in
// the table is carried over untouched.
func (s *Service) persistMachine(ctx context.Context, tx *gorm.DB, m *machinedomain.Machine, store *slotstorage.Storage, addr slotstorage.Address, product *catalogdomain.Product) error {
	slots, err := store.EncodeCanonical()
	if err != nil {
		return err
	}

	table, err := s.machineRepo.FindPricingTableByMachineID(ctx, tx, m.ID)
	if err != nil {
		return err
	}
	var entries [][]*pricing.Breakdown
	if table != nil {
		entries, err = machinedomain.DecodePricingEntries(table.Entries)
		if err != nil {
			return err
		}
	}

	rate, err := s.unitCommissionRate(m, entries, addr)
	if err != nil {
		return err
	}
	breakdown, err := pricing.Compute(s.policy.Get(), snowflake.ID(product.ID).String(), product.BasePrice, rate)
	if err != nil {
		return err
	}
	entries = machinedomain.SetPricingEntry(entries, addr, &breakdown)

	encodedEntries, err := machinedomain.EncodePricingEntries(entries)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	m.Slots = slots
	m.UpdatedAt = now
	if err := s.machineRepo.Update(ctx, tx, m); err != nil {
		return err
	}

	return s.machineRepo.UpsertPricingTable(ctx, tx, &machinedomain.PricingTable{
		ID:        s.genID.Generate().Int64(),
		MachineID: m.ID,
		Entries:   encodedEntries,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// unitCommissionRate reads the rate from the unit's existing breakdown, the
// source of truth for commission across swaps, falling back to the slot
// rate when an older table has no entry there.
func (s *Service) unitCommissionRate(m *machinedomain.Machine, entries [][]*pricing.Breakdown, addr slotstorage.Address) (float64, error) {
	if addr.SlotIndex < len(entries) && addr.ProductIndex < len(entries[addr.SlotIndex]) {
		if existing := entries[addr.SlotIndex][addr.ProductIndex]; existing != nil {
			return existing.CommissionRate, nil
		}
	}

	rates, err := m.SlotCommissionRates()
	if err != nil {
		return 0, err
	}
	if addr.SlotIndex < len(rates) {
		return rates[addr.SlotIndex], nil
	}
	return 0, nil
}

func (s *Service) find(ctx context.Context, id string) (*domain.ChangeRequest, error) {
	raw := strings.TrimSpace(id)
	if raw == "" {
		return nil, domain.ErrInvalidID
	}

	if parsed, err := snowflake.ParseString(raw); err == nil {
		request, err := s.repo.FindByID(ctx, s.db, parsed.Int64())
		if err != nil {
			return nil, err
		}
		if request != nil {
			return request, nil
		}
	}

	request, err := s.repo.FindByReference(ctx, s.db, raw)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrNotFound
	}
	return request, nil
}

func (s *Service) toResponse(r *domain.ChangeRequest) *domain.Response {
	return &domain.Response{
		ID:               snowflake.ID(r.ID).String(),
		Reference:        r.Reference,
		MachineID:        snowflake.ID(r.MachineID).String(),
		CurrentProductID: r.CurrentProductID,
		NewProductID:     r.NewProductID,
		Hint:             r.Hint(),
		Status:           r.Status,
		Reason:           r.Reason,
		Notes:            r.Notes,
		RequestedBy:      r.RequestedBy,
		ReviewedBy:       r.ReviewedBy,
		DecidedAt:        r.DecidedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
