package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/vendora/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/vendora/internal/catalog/service"
	"github.com/smallbiznis/vendora/internal/changerequest/domain"
	"github.com/smallbiznis/vendora/internal/changerequest/repository"
	"github.com/smallbiznis/vendora/internal/config"
	"github.com/smallbiznis/vendora/internal/locker"
	machinedomain "github.com/smallbiznis/vendora/internal/machine/domain"
	machinerepository "github.com/smallbiznis/vendora/internal/machine/repository"
	machineservice "github.com/smallbiznis/vendora/internal/machine/service"
	"github.com/smallbiznis/vendora/internal/pricing"
	"github.com/smallbiznis/vendora/internal/slotstorage"
	templatedomain "github.com/smallbiznis/vendora/internal/template/domain"
	templaterepository "github.com/smallbiznis/vendora/internal/template/repository"
	templateservice "github.com/smallbiznis/vendora/internal/template/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	requests  domain.Service
	machines  machinedomain.Service
	templates templatedomain.Service
	catalog   catalogdomain.Service

	cola  string
	water string
	chips string
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&templatedomain.Template{},
		&machinedomain.Machine{},
		&machinedomain.PricingTable{},
		&domain.ChangeRequest{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	policy := config.StaticPricingPolicy(pricing.DefaultPolicy())

	f := &fixture{
		requests: New(Params{
			DB:           db,
			Log:          log,
			GenID:        node,
			Locker:       locker.NewKeyedLocker(),
			Policy:       policy,
			Repo:         repository.Provide(),
			MachineRepo:  machinerepository.Provide(),
			TemplateRepo: templaterepository.Provide(),
			CatalogRepo:  catalogrepository.Provide(),
		}),
		machines: machineservice.New(machineservice.Params{
			DB:           db,
			Log:          log,
			GenID:        node,
			Policy:       policy,
			Repo:         machinerepository.Provide(),
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

	ctx := context.Background()
	f.cola = f.product(t, ctx, "Cola", "beverage", 10.00)
	f.water = f.product(t, ctx, "Water", "beverage", 1.50)
	f.chips = f.product(t, ctx, "Chips", "snack", 2.00)
	return f
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

// activeMachine builds a two slot machine, slot 0 beverage-only with
// capacity 2, slot 1 unconstrained with capacity 1, fully filled and active.
func (f *fixture) activeMachine(t *testing.T, ctx context.Context, name string) string {
	t.Helper()

	tpl, err := f.templates.Create(ctx, templatedomain.CreateRequest{
		Name: name + " template",
		Slots: []templatedomain.SlotDefinition{
			{Label: "A1", Capacity: 2, AllowedType: "beverage"},
			{Label: "A2", Capacity: 1},
		},
	})
	require.NoError(t, err)
	_, err = f.templates.Publish(ctx, tpl.ID)
	require.NoError(t, err)

	m, err := f.machines.Onboard(ctx, machinedomain.OnboardRequest{
		TemplateID: tpl.ID,
		Name:       name,
	})
	require.NoError(t, err)

	_, err = f.machines.ReplaceAssignments(ctx, machinedomain.ReplaceAssignmentsRequest{
		ID: m.ID,
		Assignments: []machinedomain.SlotAssignment{
			{SlotIndex: 0, ProductIDs: []string{f.cola, f.water}, CommissionRate: 0.20},
			{SlotIndex: 1, ProductIDs: []string{f.chips}, CommissionRate: 0.10},
		},
	})
	require.NoError(t, err)

	_, err = f.machines.Activate(ctx, m.ID)
	require.NoError(t, err)
	return m.ID
}

func TestChangeRequest_SubmitValidation(t *testing.T) {
	f := newFixture(t, "cr_submit_validation")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Submit Validation")

	// Current product must be on the machine.
	otherBase := 1.00
	other, err := f.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name: "Gum", ProductType: "sundry", BasePrice: &otherBase,
	})
	require.NoError(t, err)

	_, err = f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: other.ID,
		NewProductID:     f.water,
	})
	assert.ErrorIs(t, err, domain.ErrProductNotPresent)

	_, err = f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     "999999",
	})
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)

	_, err = f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: "",
		NewProductID:     f.water,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestChangeRequest_SubmitRequiresActiveMachine(t *testing.T) {
	f := newFixture(t, "cr_submit_draft")
	ctx := context.Background()

	tpl, err := f.templates.Create(ctx, templatedomain.CreateRequest{
		Name:  "Draft Only",
		Slots: []templatedomain.SlotDefinition{{Label: "A1", Capacity: 1}},
	})
	require.NoError(t, err)
	_, err = f.templates.Publish(ctx, tpl.ID)
	require.NoError(t, err)

	m, err := f.machines.Onboard(ctx, machinedomain.OnboardRequest{TemplateID: tpl.ID, Name: "Draft Machine"})
	require.NoError(t, err)

	_, err = f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        m.ID,
		CurrentProductID: f.cola,
		NewProductID:     f.water,
	})
	assert.ErrorIs(t, err, domain.ErrMachineNotActive)
}

func TestChangeRequest_SubmitIdempotency(t *testing.T) {
	f := newFixture(t, "cr_submit_idempotent")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Idempotent Submit")

	first, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		RequestKey:       "retry-key-1",
		CurrentProductID: f.cola,
		NewProductID:     f.water,
	})
	require.NoError(t, err)

	second, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		RequestKey:       "retry-key-1",
		CurrentProductID: f.cola,
		NewProductID:     f.water,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Reference, second.Reference)
}

func TestChangeRequest_ApproveSwapsUnitAndReprices(t *testing.T) {
	f := newFixture(t, "cr_approve")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Approve Swap")

	submitted, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     f.water,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, submitted.Status)

	approved, err := f.requests.Approve(ctx, domain.DecisionRequest{ID: submitted.ID, ReviewedBy: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "ops@example.com", approved.ReviewedBy)
	require.NotNil(t, approved.DecidedAt)

	m, err := f.machines.Get(ctx, machineID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.water, f.water}, m.Slots[0])
	assert.Equal(t, []string{f.chips}, m.Slots[1])

	// Commission rate of the slot is preserved across the swap.
	projection, err := f.machines.PricingProjection(ctx, machineID)
	require.NoError(t, err)
	entry := projection.Entries[0][0]
	require.NotNil(t, entry)
	assert.Equal(t, f.water, entry.ProductID)
	assert.InDelta(t, 1.50, entry.BasePrice, 1e-9)
	assert.InDelta(t, 0.30, entry.Commission, 1e-9)
	assert.InDelta(t, 2.00, entry.VendingPrice, 1e-9)
}

func TestChangeRequest_ApproveLeavesOtherEntriesUntouched(t *testing.T) {
	f := newFixture(t, "cr_approve_isolated")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Isolated Reprice")

	// The catalog price of chips moves after activation. An approval in
	// slot 0 must not pick up that drift for the untouched slot 1 entry.
	newChipsPrice := 5.00
	_, err := f.catalog.Update(ctx, catalogdomain.UpdateRequest{ID: f.chips, BasePrice: &newChipsPrice})
	require.NoError(t, err)

	submitted, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     f.water,
	})
	require.NoError(t, err)
	_, err = f.requests.Approve(ctx, domain.DecisionRequest{ID: submitted.ID})
	require.NoError(t, err)

	projection, err := f.machines.PricingProjection(ctx, machineID)
	require.NoError(t, err)

	swapped := projection.Entries[0][0]
	require.NotNil(t, swapped)
	assert.Equal(t, f.water, swapped.ProductID)
	assert.InDelta(t, 1.50, swapped.BasePrice, 1e-9)
	assert.InDelta(t, 0.20, swapped.CommissionRate, 1e-9)
	assert.InDelta(t, 2.00, swapped.VendingPrice, 1e-9)

	// Slot 1 still carries the price the machine was activated with.
	untouched := projection.Entries[1][0]
	require.NotNil(t, untouched)
	assert.Equal(t, f.chips, untouched.ProductID)
	assert.InDelta(t, 2.00, untouched.BasePrice, 1e-9)
	assert.InDelta(t, 2.25, untouched.VendingPrice, 1e-9)

	// The unswapped second unit in slot 0 is untouched as well.
	sibling := projection.Entries[0][1]
	require.NotNil(t, sibling)
	assert.Equal(t, f.water, sibling.ProductID)
	assert.InDelta(t, 1.50, sibling.BasePrice, 1e-9)
}

func TestChangeRequest_ReasonAndNotesAreSeparate(t *testing.T) {
	f := newFixture(t, "cr_reason_notes")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Reason And Notes")

	submitted, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     f.water,
		Reason:           "cola sells poorly here",
	})
	require.NoError(t, err)
	assert.Equal(t, "cola sells poorly here", submitted.Reason)

	approved, err := f.requests.Approve(ctx, domain.DecisionRequest{
		ID:         submitted.ID,
		ReviewedBy: "ops@example.com",
		Notes:      "confirmed with route driver",
	})
	require.NoError(t, err)
	assert.Equal(t, "cola sells poorly here", approved.Reason)
	assert.Equal(t, "confirmed with route driver", approved.Notes)
}

func TestChangeRequest_StaleApprovalKeepsPending(t *testing.T) {
	f := newFixture(t, "cr_stale")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Stale Approval")

	// Both requests target the single chips unit in slot 1.
	first, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.chips,
		NewProductID:     f.water,
	})
	require.NoError(t, err)

	second, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.chips,
		NewProductID:     f.cola,
	})
	require.NoError(t, err)

	_, err = f.requests.Approve(ctx, domain.DecisionRequest{ID: first.ID})
	require.NoError(t, err)

	_, err = f.requests.Approve(ctx, domain.DecisionRequest{ID: second.ID})
	assert.ErrorIs(t, err, domain.ErrStaleRequest)

	// The stale request is untouched and can still be rejected.
	got, err := f.requests.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	rejected, err := f.requests.Reject(ctx, domain.DecisionRequest{ID: second.ID, Notes: "superseded"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "superseded", rejected.Notes)
}

func TestChangeRequest_TerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t, "cr_terminal")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Terminal States")

	submitted, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     f.water,
	})
	require.NoError(t, err)

	_, err = f.requests.Reject(ctx, domain.DecisionRequest{ID: submitted.ID, Notes: "no"})
	require.NoError(t, err)

	_, err = f.requests.Reject(ctx, domain.DecisionRequest{ID: submitted.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	_, err = f.requests.Approve(ctx, domain.DecisionRequest{ID: submitted.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
}

func TestChangeRequest_HintDisambiguatesDuplicates(t *testing.T) {
	f := newFixture(t, "cr_hint")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Hint Disambiguation")

	// Slot 0 holds cola then water. Target the second unit explicitly; a
	// hint-less scan would have matched unit 0 first for cola but we want
	// the water unit swapped.
	submitted, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.water,
		NewProductID:     f.cola,
		Hint:             &slotstorage.Address{SlotIndex: 0, ProductIndex: 1},
	})
	require.NoError(t, err)

	_, err = f.requests.Approve(ctx, domain.DecisionRequest{ID: submitted.ID})
	require.NoError(t, err)

	m, err := f.machines.Get(ctx, machineID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.cola, f.cola}, m.Slots[0])
}

func TestChangeRequest_HintMismatchRejectedAtSubmit(t *testing.T) {
	f := newFixture(t, "cr_hint_mismatch")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Hint Mismatch")

	_, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     f.water,
		Hint:             &slotstorage.Address{SlotIndex: 1, ProductIndex: 0},
	})
	assert.ErrorIs(t, err, domain.ErrProductNotPresent)
}

func TestChangeRequest_ApproveChecksAllowedType(t *testing.T) {
	f := newFixture(t, "cr_allowed_type")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Allowed Type")

	// Slot 0 only accepts beverages; chips may not replace cola there.
	submitted, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     f.chips,
	})
	require.NoError(t, err)

	_, err = f.requests.Approve(ctx, domain.DecisionRequest{ID: submitted.ID})
	assert.ErrorIs(t, err, domain.ErrProductTypeMismatch)

	got, err := f.requests.Get(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestChangeRequest_GetByReferenceAndList(t *testing.T) {
	f := newFixture(t, "cr_get_list")
	ctx := context.Background()
	machineID := f.activeMachine(t, ctx, "Get and List")

	submitted, err := f.requests.Submit(ctx, domain.SubmitRequest{
		MachineID:        machineID,
		CurrentProductID: f.cola,
		NewProductID:     f.water,
		RequestedBy:      "ops@example.com",
	})
	require.NoError(t, err)

	byReference, err := f.requests.Get(ctx, submitted.Reference)
	require.NoError(t, err)
	assert.Equal(t, submitted.ID, byReference.ID)
	assert.Equal(t, "ops@example.com", byReference.RequestedBy)

	items, err := f.requests.ListByMachine(ctx, machineID, domain.ListRequest{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, submitted.ID, items[0].ID)
}
