package slotstorage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnrecognizedShape = errors.New("unrecognized_storage_shape")
	ErrAddressOutOfRange = errors.New("address_out_of_range")
	ErrFlatMultiSlot     = errors.New("flat_storage_multi_slot")
)

// Encoding tags the persisted shape a slot payload was decoded from.
type Encoding string

const (
	// EncodingNested is the canonical shape: one array of product IDs per slot.
	EncodingNested Encoding = "nested"
	// EncodingFlat is a single array of product IDs, legal only for
	// single-slot machines.
	EncodingFlat Encoding = "flat"
	// EncodingKeyed maps "<slotIndex>-<productIndex>" keys to product IDs.
	EncodingKeyed Encoding = "keyed"
)

// Storage is the decoded view of a machine's slot assignments. Reads accept
// all legacy encodings; writes always emit the canonical nested form.
// An empty string marks a gap left by sparse keyed data.
type Storage struct {
	encoding Encoding
	slots    [][]string
}

// Decode detects the payload shape and decodes it into the canonical view.
// Unknown shapes fail loudly rather than matching an arbitrary slot.
func Decode(raw []byte) (*Storage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
	}

	switch typed := value.(type) {
	case []any:
		return decodeArray(typed)
	case map[string]any:
		return decodeKeyed(typed)
	default:
		return nil, fmt.Errorf("%w: top-level %T", ErrUnrecognizedShape, value)
	}
}

// NewNested builds storage from already-canonical per-slot product lists.
func NewNested(slots [][]string) *Storage {
	copied := make([][]string, len(slots))
	for i, units := range slots {
		copied[i] = append([]string(nil), units...)
	}
	return &Storage{encoding: EncodingNested, slots: copied}
}

// Encoding reports which legacy shape the payload was decoded from.
func (s *Storage) Encoding() Encoding { return s.encoding }

// SlotCount returns the number of slots.
func (s *Storage) SlotCount() int { return len(s.slots) }

// UnitCount returns the number of units assigned to a slot, gaps included.
func (s *Storage) UnitCount(slot int) int {
	if slot < 0 || slot >= len(s.slots) {
		return 0
	}
	return len(s.slots[slot])
}

// Slots returns a deep copy of the decoded per-slot product lists.
func (s *Storage) Slots() [][]string {
	copied := make([][]string, len(s.slots))
	for i, units := range s.slots {
		copied[i] = append([]string(nil), units...)
	}
	return copied
}

// At reads the product ID at an address.
func (s *Storage) At(addr Address) (string, error) {
	if addr.SlotIndex < 0 || addr.SlotIndex >= len(s.slots) {
		return "", fmt.Errorf("%w: %s", ErrAddressOutOfRange, addr)
	}
	units := s.slots[addr.SlotIndex]
	if addr.ProductIndex < 0 || addr.ProductIndex >= len(units) {
		return "", fmt.Errorf("%w: %s", ErrAddressOutOfRange, addr)
	}
	return units[addr.ProductIndex], nil
}

// Substitute replaces the product at an address in place.
func (s *Storage) Substitute(addr Address, productID string) error {
	if _, err := s.At(addr); err != nil {
		return err
	}
	s.slots[addr.SlotIndex][addr.ProductIndex] = NormalizeID(productID)
	return nil
}

// ValidateAgainst checks the decoded shape against the owning template's
// slot count. A flat payload is only legal on single slot machines; on a
// multi slot template it would silently collapse the grid into one slot.
func (s *Storage) ValidateAgainst(slotCount int) error {
	if s.encoding == EncodingFlat && slotCount > 1 {
		return fmt.Errorf("%w: template has %d slots", ErrFlatMultiSlot, slotCount)
	}
	return nil
}

// EncodeCanonical serializes the assignments in the canonical nested form,
// whatever shape they were read in.
func (s *Storage) EncodeCanonical() ([]byte, error) {
	slots := s.slots
	if slots == nil {
		slots = [][]string{}
	}
	for i, units := range slots {
		if units == nil {
			slots[i] = []string{}
		}
	}
	return json.Marshal(slots)
}

// NormalizeID canonicalizes a product identifier for comparison. Legacy
// payloads stored the same ID sometimes as a JSON number and sometimes as a
// string; both normalize to the same trimmed string.
func NormalizeID(value string) string {
	return strings.TrimSpace(value)
}

func decodeArray(items []any) (*Storage, error) {
	if len(items) == 0 {
		return &Storage{encoding: EncodingNested, slots: [][]string{}}, nil
	}

	if _, nested := items[0].([]any); nested {
		slots := make([][]string, 0, len(items))
		for i, item := range items {
			inner, ok := item.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: slot %d is not an array", ErrUnrecognizedShape, i)
			}
			units := make([]string, 0, len(inner))
			for j, unit := range inner {
				id, err := scalarID(unit)
				if err != nil {
					return nil, fmt.Errorf("%w: slot %d unit %d", ErrUnrecognizedShape, i, j)
				}
				units = append(units, id)
			}
			slots = append(slots, units)
		}
		return &Storage{encoding: EncodingNested, slots: slots}, nil
	}

	// Flat array of scalars: one implicit slot.
	units := make([]string, 0, len(items))
	for i, item := range items {
		id, err := scalarID(item)
		if err != nil {
			return nil, fmt.Errorf("%w: mixed flat array at index %d", ErrUnrecognizedShape, i)
		}
		units = append(units, id)
	}
	return &Storage{encoding: EncodingFlat, slots: [][]string{units}}, nil
}

func decodeKeyed(entries map[string]any) (*Storage, error) {
	maxSlot := -1
	unitCounts := map[int]int{}
	decoded := map[Address]string{}

	for key, value := range entries {
		addr, err := ParseAddress(key)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q", ErrUnrecognizedShape, key)
		}
		id, err := scalarID(value)
		if err != nil {
			return nil, fmt.Errorf("%w: value for key %q", ErrUnrecognizedShape, key)
		}
		decoded[addr] = id
		if addr.SlotIndex > maxSlot {
			maxSlot = addr.SlotIndex
		}
		if addr.ProductIndex+1 > unitCounts[addr.SlotIndex] {
			unitCounts[addr.SlotIndex] = addr.ProductIndex + 1
		}
	}

	slots := make([][]string, maxSlot+1)
	for i := range slots {
		slots[i] = make([]string, unitCounts[i])
	}
	for addr, id := range decoded {
		slots[addr.SlotIndex][addr.ProductIndex] = id
	}
	return &Storage{encoding: EncodingKeyed, slots: slots}, nil
}

func scalarID(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		return NormalizeID(typed), nil
	case json.Number:
		return typed.String(), nil
	default:
		return "", ErrUnrecognizedShape
	}
}
