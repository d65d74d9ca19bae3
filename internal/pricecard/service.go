package pricecard

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	machinedomain "github.com/smallbiznis/vendora/internal/machine/domain"
	"github.com/smallbiznis/vendora/internal/slotstorage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Renderer    Renderer
	Machines    machinedomain.Service
	CatalogRepo catalogdomain.Repository
}

// Service assembles the printable price card for a machine from its current
// grid and pricing table.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	renderer    Renderer
	machines    machinedomain.Service
	catalogRepo catalogdomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("pricecard.service"),
		renderer:    p.Renderer,
		machines:    p.Machines,
		catalogRepo: p.CatalogRepo,
	}
}

func (s *Service) Generate(ctx context.Context, machineID string) (io.Reader, error) {
	m, err := s.machines.Get(ctx, machineID)
	if err != nil {
		return nil, err
	}
	projection, err := s.machines.PricingProjection(ctx, machineID)
	if err != nil {
		return nil, err
	}

	names, err := s.productNames(ctx, m.Slots)
	if err != nil {
		return nil, err
	}

	data := CardData{
		MachineCode: m.Code,
		MachineName: m.Name,
		Location:    m.Location,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	for i, units := range m.Slots {
		for j, productID := range units {
			if productID == "" {
				continue
			}
			addr := slotstorage.Address{SlotIndex: i, ProductIndex: j}
			row := CardRow{
				Unit:        addr.String(),
				ProductName: names[productID],
			}
			if i < len(projection.Entries) && j < len(projection.Entries[i]) && projection.Entries[i][j] != nil {
				row.VendingPrice = fmt.Sprintf("$%.2f", projection.Entries[i][j].VendingPrice)
			}
			data.Rows = append(data.Rows, row)
		}
	}

	return s.renderer.Render(ctx, data)
}

func (s *Service) productNames(ctx context.Context, grid [][]string) (map[string]string, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, row := range grid {
		for _, productID := range row {
			if productID == "" {
				continue
			}
			parsed, err := snowflake.ParseString(productID)
			if err != nil {
				continue
			}
			if !seen[parsed.Int64()] {
				seen[parsed.Int64()] = true
				ids = append(ids, parsed.Int64())
			}
		}
	}

	items, err := s.catalogRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(items))
	for _, item := range items {
		names[snowflake.ID(item.ID).String()] = item.Name
	}
	return names, nil
}

var Module = fx.Module("pricecard",
	fx.Provide(NewRenderer),
	fx.Provide(New),
)
