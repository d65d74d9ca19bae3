package slotstorage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Nested(t *testing.T) {
	s, err := Decode([]byte(`[["A","B","C"],["D"]]`))
	require.NoError(t, err)

	assert.Equal(t, EncodingNested, s.Encoding())
	assert.Equal(t, 2, s.SlotCount())
	assert.Equal(t, 3, s.UnitCount(0))
	assert.Equal(t, [][]string{{"A", "B", "C"}, {"D"}}, s.Slots())
}

func TestDecode_Flat(t *testing.T) {
	s, err := Decode([]byte(`["A","B"]`))
	require.NoError(t, err)

	assert.Equal(t, EncodingFlat, s.Encoding())
	assert.Equal(t, 1, s.SlotCount())
	assert.Equal(t, [][]string{{"A", "B"}}, s.Slots())
}

func TestDecode_Keyed(t *testing.T) {
	s, err := Decode([]byte(`{"0-0":"A","0-1":"B","1-0":"C"}`))
	require.NoError(t, err)

	assert.Equal(t, EncodingKeyed, s.Encoding())
	assert.Equal(t, [][]string{{"A", "B"}, {"C"}}, s.Slots())
}

func TestDecode_KeyedWithGaps(t *testing.T) {
	s, err := Decode([]byte(`{"0-1":"B","2-0":"C"}`))
	require.NoError(t, err)

	// Missing addresses decode to empty placeholders, never to a match.
	assert.Equal(t, [][]string{{"", "B"}, {}, {"C"}}, s.Slots())
}

func TestDecode_NumericIDs(t *testing.T) {
	s, err := Decode([]byte(`[[101,"102"]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"101", "102"}}, s.Slots())
}

func TestDecode_UnrecognizedShapes(t *testing.T) {
	cases := [][]byte{
		[]byte(`"A"`),
		[]byte(`42`),
		[]byte(`null`),
		[]byte(`[["A"],"B"]`),
		[]byte(`["A",["B"]]`),
		[]byte(`{"zero-one":"A"}`),
		[]byte(`{"0-0":{"id":"A"}}`),
		[]byte(`not json`),
	}
	for _, raw := range cases {
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrUnrecognizedShape, "payload %s", raw)
	}
}

func TestValidateAgainst_FlatSingleSlotOnly(t *testing.T) {
	flat, err := Decode([]byte(`["A","B"]`))
	require.NoError(t, err)

	assert.NoError(t, flat.ValidateAgainst(1))
	assert.ErrorIs(t, flat.ValidateAgainst(2), ErrFlatMultiSlot)

	// Explicit grids carry their own slot structure and always pass.
	nested, err := Decode([]byte(`[["A"],["B"]]`))
	require.NoError(t, err)
	assert.NoError(t, nested.ValidateAgainst(2))

	keyed, err := Decode([]byte(`{"0-0":"A","1-0":"B"}`))
	require.NoError(t, err)
	assert.NoError(t, keyed.ValidateAgainst(2))
}

func TestResolve_FirstMatch(t *testing.T) {
	s, err := Decode([]byte(`[["A","B","C"]]`))
	require.NoError(t, err)

	addr, err := Resolve(s, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, Address{SlotIndex: 0, ProductIndex: 1}, addr)
}

func TestResolve_DuplicateFirstMatchWins(t *testing.T) {
	s, err := Decode([]byte(`[["A","A"]]`))
	require.NoError(t, err)

	addr, err := Resolve(s, "A", nil)
	require.NoError(t, err)
	assert.Equal(t, Address{SlotIndex: 0, ProductIndex: 0}, addr)
	assert.Equal(t, 2, Occurrences(s, "A"))
}

func TestResolve_HintSelectsExactUnit(t *testing.T) {
	s, err := Decode([]byte(`[["A","A"]]`))
	require.NoError(t, err)

	hint := Address{SlotIndex: 0, ProductIndex: 1}
	addr, err := Resolve(s, "A", &hint)
	require.NoError(t, err)
	assert.Equal(t, hint, addr)
}

func TestResolve_HintMismatchIsNotFound(t *testing.T) {
	s, err := Decode([]byte(`[["A","B"]]`))
	require.NoError(t, err)

	hint := Address{SlotIndex: 0, ProductIndex: 0}
	_, err = Resolve(s, "B", &hint)
	assert.ErrorIs(t, err, ErrProductNotFound)

	outOfRange := Address{SlotIndex: 5, ProductIndex: 0}
	_, err = Resolve(s, "A", &outOfRange)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestResolve_NumericStringEquivalence(t *testing.T) {
	s, err := Decode([]byte(`[[101,102]]`))
	require.NoError(t, err)

	addr, err := Resolve(s, "102", nil)
	require.NoError(t, err)
	assert.Equal(t, Address{SlotIndex: 0, ProductIndex: 1}, addr)

	hint := Address{SlotIndex: 0, ProductIndex: 0}
	addr, err = Resolve(s, " 101 ", &hint)
	require.NoError(t, err)
	assert.Equal(t, hint, addr)
}

func TestResolve_SkipsKeyedGaps(t *testing.T) {
	s, err := Decode([]byte(`{"0-1":"B"}`))
	require.NoError(t, err)

	_, err = Resolve(s, "", nil)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestSubstitute_RoundTripAllShapes(t *testing.T) {
	payloads := map[string][]byte{
		"nested": []byte(`[["A","B"],["C"]]`),
		"flat":   []byte(`["A","B","C"]`),
		"keyed":  []byte(`{"0-0":"A","0-1":"B","0-2":"C"}`),
	}

	for name, raw := range payloads {
		t.Run(name, func(t *testing.T) {
			s, err := Decode(raw)
			require.NoError(t, err)
			before := s.Slots()

			addr, err := Resolve(s, "B", nil)
			require.NoError(t, err)
			require.NoError(t, s.Substitute(addr, "Z"))

			got, err := s.At(addr)
			require.NoError(t, err)
			assert.Equal(t, "Z", got)

			// Every other unit is untouched.
			after := s.Slots()
			for slot := range before {
				for unit := range before[slot] {
					if slot == addr.SlotIndex && unit == addr.ProductIndex {
						continue
					}
					assert.Equal(t, before[slot][unit], after[slot][unit])
				}
			}
		})
	}
}

func TestSubstitute_OutOfRange(t *testing.T) {
	s, err := Decode([]byte(`[["A"]]`))
	require.NoError(t, err)

	err = s.Substitute(Address{SlotIndex: 1, ProductIndex: 0}, "Z")
	assert.ErrorIs(t, err, ErrAddressOutOfRange)

	err = s.Substitute(Address{SlotIndex: 0, ProductIndex: 3}, "Z")
	assert.ErrorIs(t, err, ErrAddressOutOfRange)
}

func TestEncodeCanonical_AlwaysNested(t *testing.T) {
	for _, raw := range [][]byte{
		[]byte(`["A","B"]`),
		[]byte(`{"0-0":"A","0-1":"B"}`),
		[]byte(`[["A","B"]]`),
	} {
		s, err := Decode(raw)
		require.NoError(t, err)

		encoded, err := s.EncodeCanonical()
		require.NoError(t, err)

		var nested [][]string
		require.NoError(t, json.Unmarshal(encoded, &nested))
		assert.Equal(t, [][]string{{"A", "B"}}, nested)
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("2-7")
	require.NoError(t, err)
	assert.Equal(t, Address{SlotIndex: 2, ProductIndex: 7}, addr)
	assert.Equal(t, "2-7", addr.String())

	for _, bad := range []string{"", "2", "a-b", "-1-0", "1-", "1-x"} {
		_, err := ParseAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, "input %q", bad)
	}
}
