package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/vendora/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/vendora/internal/catalog/service"
	"github.com/smallbiznis/vendora/internal/config"
	"github.com/smallbiznis/vendora/internal/machine/domain"
	"github.com/smallbiznis/vendora/internal/machine/repository"
	"github.com/smallbiznis/vendora/internal/pricing"
	templatedomain "github.com/smallbiznis/vendora/internal/template/domain"
	templaterepository "github.com/smallbiznis/vendora/internal/template/repository"
	templateservice "github.com/smallbiznis/vendora/internal/template/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	machines  domain.Service
	templates templatedomain.Service
	catalog   catalogdomain.Service
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&templatedomain.Template{},
		&domain.Machine{},
		&domain.PricingTable{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	return &fixture{
		machines: New(Params{
			DB:           db,
			Log:          log,
			GenID:        node,
			Policy:       config.StaticPricingPolicy(pricing.DefaultPolicy()),
			Repo:         repository.Provide(),
			TemplateRepo: templaterepository.Provide(),
			CatalogRepo:  catalogrepository.Provide(),
		}),
		templates: templateservice.New(templateservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Repo:  templaterepository.Provide(),
		}),
		catalog: catalogservice.New(catalogservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Repo:  catalogrepository.Provide(),
		}),
	}
}

func (f *fixture) publishedTemplate(t *testing.T, ctx context.Context) string {
	t.Helper()
	tpl, err := f.templates.Create(ctx, templatedomain.CreateRequest{
		Name: "Two Slot",
		Slots: []templatedomain.SlotDefinition{
			{Label: "A1", Capacity: 2, AllowedType: "beverage"},
			{Label: "A2", Capacity: 1},
		},
	})
	require.NoError(t, err)
	_, err = f.templates.Publish(ctx, tpl.ID)
	require.NoError(t, err)
	return tpl.ID
}

func (f *fixture) product(t *testing.T, ctx context.Context, name, productType string, basePrice float64) string {
	t.Helper()
	p, err := f.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name:        name,
		ProductType: productType,
		BasePrice:   &basePrice,
	})
	require.NoError(t, err)
	return p.ID
}

func TestMachine_OnboardFromPublishedTemplate(t *testing.T) {
	f := newFixture(t, "machine_onboard")
	ctx := context.Background()
	tplID := f.publishedTemplate(t, ctx)

	m, err := f.machines.Onboard(ctx, domain.OnboardRequest{
		TemplateID: tplID,
		Name:       "Lobby Machine",
		Location:   "HQ lobby",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDraft, m.Status)
	assert.Equal(t, "lobby-machine", m.Code)
	require.Len(t, m.Slots, 2)
	assert.Equal(t, []string{"", ""}, m.Slots[0])
	assert.Equal(t, []string{""}, m.Slots[1])
	assert.Equal(t, []float64{0, 0}, m.CommissionRates)

	projection, err := f.machines.PricingProjection(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, projection.Entries, 2)
	assert.Nil(t, projection.Entries[0][0])
}

func TestMachine_OnboardRequiresPublishedTemplate(t *testing.T) {
	f := newFixture(t, "machine_onboard_draft")
	ctx := context.Background()

	tpl, err := f.templates.Create(ctx, templatedomain.CreateRequest{
		Name:  "Unpublished",
		Slots: []templatedomain.SlotDefinition{{Label: "A1", Capacity: 1}},
	})
	require.NoError(t, err)

	_, err = f.machines.Onboard(ctx, domain.OnboardRequest{TemplateID: tpl.ID, Name: "M"})
	assert.ErrorIs(t, err, domain.ErrTemplateNotPublished)
}

func TestMachine_ReplaceAssignmentsAndPricing(t *testing.T) {
	f := newFixture(t, "machine_assign")
	ctx := context.Background()
	tplID := f.publishedTemplate(t, ctx)

	cola := f.product(t, ctx, "Cola", "beverage", 10.00)
	chips := f.product(t, ctx, "Chips", "snack", 2.01)

	m, err := f.machines.Onboard(ctx, domain.OnboardRequest{TemplateID: tplID, Name: "Assign Test"})
	require.NoError(t, err)

	updated, err := f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID: m.ID,
		Assignments: []domain.SlotAssignment{
			{SlotIndex: 0, ProductIDs: []string{cola, cola}, CommissionRate: 0.20},
			{SlotIndex: 1, ProductIDs: []string{chips}, CommissionRate: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{cola, cola}, updated.Slots[0])
	assert.Equal(t, []float64{0.20, 0}, updated.CommissionRates)

	projection, err := f.machines.PricingProjection(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, projection.Entries[0][0])
	assert.InDelta(t, 12.25, projection.Entries[0][0].VendingPrice, 1e-9)
	assert.InDelta(t, 2.00, projection.Entries[0][0].Commission, 1e-9)
	require.NotNil(t, projection.Entries[1][0])
	assert.InDelta(t, 2.25, projection.Entries[1][0].VendingPrice, 1e-9)
}

func TestMachine_ReplaceAssignmentsValidation(t *testing.T) {
	f := newFixture(t, "machine_assign_invalid")
	ctx := context.Background()
	tplID := f.publishedTemplate(t, ctx)

	cola := f.product(t, ctx, "Cola", "beverage", 1.50)
	chips := f.product(t, ctx, "Chips", "snack", 1.00)

	m, err := f.machines.Onboard(ctx, domain.OnboardRequest{TemplateID: tplID, Name: "Invalid Assign"})
	require.NoError(t, err)

	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID:          m.ID,
		Assignments: []domain.SlotAssignment{{SlotIndex: 5, ProductIDs: []string{cola}}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignments)

	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID:          m.ID,
		Assignments: []domain.SlotAssignment{{SlotIndex: 0, ProductIDs: []string{cola, cola, cola}}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignments)

	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID:          m.ID,
		Assignments: []domain.SlotAssignment{{SlotIndex: 0, ProductIDs: []string{cola}, CommissionRate: 0.51}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignments)

	// Slot 0 only allows beverages.
	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID:          m.ID,
		Assignments: []domain.SlotAssignment{{SlotIndex: 0, ProductIDs: []string{chips}}},
	})
	assert.ErrorIs(t, err, domain.ErrProductTypeMismatch)

	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID:          m.ID,
		Assignments: []domain.SlotAssignment{{SlotIndex: 0, ProductIDs: []string{"999999"}}},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestMachine_ActivateRequiresFullFill(t *testing.T) {
	f := newFixture(t, "machine_activate")
	ctx := context.Background()
	tplID := f.publishedTemplate(t, ctx)

	cola := f.product(t, ctx, "Cola", "beverage", 2.00)
	chips := f.product(t, ctx, "Chips", "snack", 1.00)

	m, err := f.machines.Onboard(ctx, domain.OnboardRequest{TemplateID: tplID, Name: "Activate Test"})
	require.NoError(t, err)

	_, err = f.machines.Activate(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrIncompleteFill)

	// Partial fill still fails.
	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID: m.ID,
		Assignments: []domain.SlotAssignment{
			{SlotIndex: 0, ProductIDs: []string{cola}, CommissionRate: 0.10},
		},
	})
	require.NoError(t, err)
	_, err = f.machines.Activate(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrIncompleteFill)

	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID: m.ID,
		Assignments: []domain.SlotAssignment{
			{SlotIndex: 0, ProductIDs: []string{cola, cola}, CommissionRate: 0.10},
			{SlotIndex: 1, ProductIDs: []string{chips}, CommissionRate: 0.05},
		},
	})
	require.NoError(t, err)

	activated, err := f.machines.Activate(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, activated.Status)

	// Draft-only operations reject the active machine.
	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID:          m.ID,
		Assignments: []domain.SlotAssignment{{SlotIndex: 0, ProductIDs: []string{cola, cola}}},
	})
	assert.ErrorIs(t, err, domain.ErrNotDraft)
	_, err = f.machines.Activate(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotDraft)
}

func TestMachine_DecommissionIsTerminal(t *testing.T) {
	f := newFixture(t, "machine_decommission")
	ctx := context.Background()
	tplID := f.publishedTemplate(t, ctx)

	cola := f.product(t, ctx, "Cola", "beverage", 2.00)
	chips := f.product(t, ctx, "Chips", "snack", 1.00)

	m, err := f.machines.Onboard(ctx, domain.OnboardRequest{TemplateID: tplID, Name: "Retire Test"})
	require.NoError(t, err)

	// Draft machines cannot be decommissioned.
	_, err = f.machines.Decommission(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotActive)

	_, err = f.machines.ReplaceAssignments(ctx, domain.ReplaceAssignmentsRequest{
		ID: m.ID,
		Assignments: []domain.SlotAssignment{
			{SlotIndex: 0, ProductIDs: []string{cola, cola}},
			{SlotIndex: 1, ProductIDs: []string{chips}},
		},
	})
	require.NoError(t, err)
	_, err = f.machines.Activate(ctx, m.ID)
	require.NoError(t, err)

	retired, err := f.machines.Decommission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDecommissioned, retired.Status)

	_, err = f.machines.Decommission(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrDecommissioned)
	_, err = f.machines.Activate(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrDecommissioned)
}
