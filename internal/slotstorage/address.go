package slotstorage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidAddress = errors.New("invalid_slot_address")

// Address identifies one assigned unit: slot-major position in the machine.
type Address struct {
	SlotIndex    int `json:"slot_index"`
	ProductIndex int `json:"product_index"`
}

// String renders the canonical "<slotIndex>-<productIndex>" form used as
// the keyed-encoding key and in API payloads.
func (a Address) String() string {
	return fmt.Sprintf("%d-%d", a.SlotIndex, a.ProductIndex)
}

// ParseAddress parses the canonical "<slotIndex>-<productIndex>" form.
func ParseAddress(value string) (Address, error) {
	parts := strings.SplitN(strings.TrimSpace(value), "-", 2)
	if len(parts) != 2 {
		return Address{}, ErrInvalidAddress
	}
	slot, err := strconv.Atoi(parts[0])
	if err != nil || slot < 0 {
		return Address{}, ErrInvalidAddress
	}
	unit, err := strconv.Atoi(parts[1])
	if err != nil || unit < 0 {
		return Address{}, ErrInvalidAddress
	}
	return Address{SlotIndex: slot, ProductIndex: unit}, nil
}
