package domain

import (
	"encoding/json"

	"github.com/smallbiznis/vendora/internal/pricing"
	"github.com/smallbiznis/vendora/internal/slotstorage"
	"gorm.io/datatypes"
)

// BasePriceLookup resolves a product id to its current base price.
type BasePriceLookup func(productID string) (float64, bool)

// BuildPricingEntries computes one breakdown per assigned unit, preserving
// the slot grid shape. Unassigned units produce a nil entry so the pricing
// table stays positionally aligned with the machine.
func BuildPricingEntries(store *slotstorage.Storage, rates []float64, lookup BasePriceLookup, policy pricing.Policy) ([][]*pricing.Breakdown, error) {
	slots := store.Slots()
	entries := make([][]*pricing.Breakdown, len(slots))

	for i, units := range slots {
		row := make([]*pricing.Breakdown, len(units))
		rate := 0.0
		if i < len(rates) {
			rate = rates[i]
		}
		for j, productID := range units {
			if productID == "" {
				continue
			}
			base, ok := lookup(productID)
			if !ok {
				return nil, ErrUnknownProduct
			}
			breakdown, err := pricing.Compute(policy, productID, base, rate)
			if err != nil {
				return nil, err
			}
			row[j] = &breakdown
		}
		entries[i] = row
	}
	return entries, nil
}

// SetPricingEntry writes one unit's breakdown at its address, growing the
// grid with empty placeholders when an older table is shorter than the
// machine. Every other entry is left untouched.
func SetPricingEntry(entries [][]*pricing.Breakdown, addr slotstorage.Address, entry *pricing.Breakdown) [][]*pricing.Breakdown {
	for len(entries) <= addr.SlotIndex {
		entries = append(entries, nil)
	}
	row := entries[addr.SlotIndex]
	for len(row) <= addr.ProductIndex {
		row = append(row, nil)
	}
	row[addr.ProductIndex] = entry
	entries[addr.SlotIndex] = row
	return entries
}

func EncodePricingEntries(entries [][]*pricing.Breakdown) (datatypes.JSON, error) {
	if entries == nil {
		entries = [][]*pricing.Breakdown{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodePricingEntries(raw datatypes.JSON) ([][]*pricing.Breakdown, error) {
	var entries [][]*pricing.Breakdown
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
