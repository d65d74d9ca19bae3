package pricing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_StandardBreakdown(t *testing.T) {
	b, err := Compute(DefaultPolicy(), "prod_1", 10.00, 0.20)
	require.NoError(t, err)

	assert.Equal(t, "prod_1", b.ProductID)
	assert.InDelta(t, 2.00, b.Commission, 1e-9)
	assert.InDelta(t, 0.05, b.ProcessingFee, 1e-9)
	assert.InDelta(t, 0.14, b.Tax, 1e-9)
	assert.InDelta(t, 12.25, b.VendingPrice, 1e-9)
	assert.InDelta(t, 0.06, b.RoundingAdjustment, 1e-9)
	assert.InDelta(t, 0.20, b.CommissionRate, 1e-9)
}

func TestCompute_ZeroCommission(t *testing.T) {
	b, err := Compute(DefaultPolicy(), "prod_1", 1.50, 0)
	require.NoError(t, err)

	assert.InDelta(t, 0, b.Commission, 1e-9)
	assert.InDelta(t, 0, b.ProcessingFee, 1e-9)
	assert.InDelta(t, 0, b.Tax, 1e-9)
	// Already on a quarter boundary, no rounding step added.
	assert.InDelta(t, 1.50, b.VendingPrice, 1e-9)
	assert.InDelta(t, 0, b.RoundingAdjustment, 1e-9)
}

func TestCompute_ZeroBasePrice(t *testing.T) {
	b, err := Compute(DefaultPolicy(), "prod_free", 0, 0.30)
	require.NoError(t, err)
	assert.InDelta(t, 0, b.VendingPrice, 1e-9)
}

func TestCompute_RoundsUpNotNearest(t *testing.T) {
	// 2.01 raw must round up to 2.25 even though 2.00 is closer.
	b, err := Compute(DefaultPolicy(), "prod_1", 2.01, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.25, b.VendingPrice, 1e-9)
	assert.InDelta(t, 0.24, b.RoundingAdjustment, 1e-9)
}

func TestCompute_ValidationErrors(t *testing.T) {
	_, err := Compute(DefaultPolicy(), "p", -0.01, 0.20)
	assert.ErrorIs(t, err, ErrInvalidBasePrice)

	_, err = Compute(DefaultPolicy(), "p", 10, -0.01)
	assert.ErrorIs(t, err, ErrInvalidCommissionRate)

	_, err = Compute(DefaultPolicy(), "p", 10, 0.51)
	assert.ErrorIs(t, err, ErrInvalidCommissionRate)

	_, err = Compute(DefaultPolicy(), "p", 10, 0.50)
	assert.NoError(t, err)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.RoundingIncrement = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)

	bad = DefaultPolicy()
	bad.MaxCommissionRate = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)
}

func TestCompute_ConcurrentUse(t *testing.T) {
	policy := DefaultPolicy()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := Compute(policy, "prod_1", 10.00, 0.20)
			assert.NoError(t, err)
			assert.InDelta(t, 12.25, b.VendingPrice, 1e-9)
		}()
	}
	wg.Wait()
}
