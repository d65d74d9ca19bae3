package pricing

import (
	"errors"
	"math"
)

var (
	ErrInvalidBasePrice      = errors.New("invalid_base_price")
	ErrInvalidCommissionRate = errors.New("invalid_commission_rate")
	ErrInvalidPolicy         = errors.New("invalid_pricing_policy")
)

// Policy holds the operator-wide pricing inputs applied on top of a
// product's base price. Rates are fractions, the increment is in dollars.
type Policy struct {
	ProcessingFeeRate float64 `mapstructure:"processing_fee_rate"`
	TaxRate           float64 `mapstructure:"tax_rate"`
	RoundingIncrement float64 `mapstructure:"rounding_increment"`
	MaxCommissionRate float64 `mapstructure:"max_commission_rate"`
}

// DefaultPolicy returns the standard policy: 2.5% processing fee and 7% tax
// on commission, prices rounded up to the nearest $0.25, commission capped
// at 50%.
func DefaultPolicy() Policy {
	return Policy{
		ProcessingFeeRate: 0.025,
		TaxRate:           0.07,
		RoundingIncrement: 0.25,
		MaxCommissionRate: 0.5,
	}
}

// Validate reports whether the policy values are usable.
func (p Policy) Validate() error {
	if p.ProcessingFeeRate < 0 || p.TaxRate < 0 {
		return ErrInvalidPolicy
	}
	if p.RoundingIncrement <= 0 {
		return ErrInvalidPolicy
	}
	if p.MaxCommissionRate <= 0 || p.MaxCommissionRate > 1 {
		return ErrInvalidPolicy
	}
	return nil
}

// Breakdown is the customer-facing price decomposition for one assigned unit.
type Breakdown struct {
	ProductID          string  `json:"product_id"`
	BasePrice          float64 `json:"base_price"`
	CommissionRate     float64 `json:"commission_rate"`
	Commission         float64 `json:"commission"`
	ProcessingFee      float64 `json:"processing_fee"`
	Tax                float64 `json:"tax"`
	VendingPrice       float64 `json:"vending_price"`
	RoundingAdjustment float64 `json:"rounding_adjustment"`
}

// Compute derives the vending price for a base price and commission rate.
// The raw price is base + commission + processing fee + tax, rounded up to
// the policy increment; the adjustment is the amount added by that rounding.
// Pure and safe for concurrent use.
func Compute(policy Policy, productID string, basePrice, commissionRate float64) (Breakdown, error) {
	if err := policy.Validate(); err != nil {
		return Breakdown{}, err
	}
	if basePrice < 0 || math.IsNaN(basePrice) || math.IsInf(basePrice, 0) {
		return Breakdown{}, ErrInvalidBasePrice
	}
	if commissionRate < 0 || commissionRate > policy.MaxCommissionRate || math.IsNaN(commissionRate) {
		return Breakdown{}, ErrInvalidCommissionRate
	}

	commission := basePrice * commissionRate
	processingFee := commission * policy.ProcessingFeeRate
	tax := commission * policy.TaxRate
	rawPrice := basePrice + commission + processingFee + tax

	vendingPrice := ceilToIncrement(rawPrice, policy.RoundingIncrement)

	return Breakdown{
		ProductID:          productID,
		BasePrice:          roundCents(basePrice),
		CommissionRate:     commissionRate,
		Commission:         roundCents(commission),
		ProcessingFee:      roundCents(processingFee),
		Tax:                roundCents(tax),
		VendingPrice:       vendingPrice,
		RoundingAdjustment: roundCents(vendingPrice - rawPrice),
	}, nil
}

// ceilToIncrement rounds up to the next multiple of increment. The epsilon
// keeps amounts already on a boundary from being pushed a full step up by
// float error.
func ceilToIncrement(amount, increment float64) float64 {
	steps := amount / increment
	return math.Ceil(steps-1e-9) * increment
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
