package slotstorage

import (
	"errors"
	"fmt"
)

var ErrProductNotFound = errors.New("product_not_found_in_storage")

// Resolve locates a product occurrence and returns its canonical address.
//
// With a hint the product is read directly at that address and compared
// after normalization; a mismatch or out-of-range hint is NotFound, never a
// fallback scan. Without a hint the storage is scanned slot-major,
// unit-minor and the first occurrence wins; duplicate product IDs across
// slots are not disambiguated (see Occurrences).
func Resolve(s *Storage, productID string, hint *Address) (Address, error) {
	want := NormalizeID(productID)

	if hint != nil {
		found, err := s.At(*hint)
		if err != nil {
			return Address{}, fmt.Errorf("%w: hint %s", ErrProductNotFound, hint)
		}
		if NormalizeID(found) != want {
			return Address{}, fmt.Errorf("%w: %q not at hint %s", ErrProductNotFound, productID, hint)
		}
		return *hint, nil
	}

	for slot, units := range s.slots {
		for unit, id := range units {
			if id == "" {
				continue
			}
			if NormalizeID(id) == want {
				return Address{SlotIndex: slot, ProductIndex: unit}, nil
			}
		}
	}
	return Address{}, fmt.Errorf("%w: %q", ErrProductNotFound, productID)
}

// Occurrences counts how many units hold the product. Callers use it to
// flag ambiguous no-hint resolutions on legacy data.
func Occurrences(s *Storage, productID string) int {
	want := NormalizeID(productID)
	count := 0
	for _, units := range s.slots {
		for _, id := range units {
			if id != "" && NormalizeID(id) == want {
				count++
			}
		}
	}
	return count
}
