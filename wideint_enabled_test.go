//go:build plist_wideint

package plist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// sixteenByteInt builds a 0x14 integer object from the two halves.
func sixteenByteInt(hi, lo uint64) []byte {
	obj := make([]byte, 17)
	obj[0] = 0x14
	for i := 7; i >= 0; i-- {
		obj[1+i] = byte(hi)
		obj[9+i] = byte(lo)
		hi >>= 8
		lo >>= 8
	}
	return obj
}

func TestSixteenByteInteger(t *testing.T) {
	subtest(t, "Unsigned", func(t *testing.T) {
		got, err := parseBplist(buildBplist([][]byte{sixteenByteInt(0, 1<<64-1)}, 1, 1, 0))
		require.NoError(t, err)
		require.Equal(t, Value(Integer{Value: 1<<64 - 1}), got)
	})

	subtest(t, "SignExtendedNegative", func(t *testing.T) {
		got, err := parseBplist(buildBplist([][]byte{sixteenByteInt(1<<64-1, 1<<64-1)}, 1, 1, 0))
		require.NoError(t, err)
		require.Equal(t, Value(integerFromInt(-1)), got)
	})

	subtest(t, "OutOfRange", func(t *testing.T) {
		_, err := parseBplist(buildBplist([][]byte{sixteenByteInt(1, 0)}, 1, 1, 0))
		require.True(t, errors.Is(err, ErrIntegerOverflow), "got %v", err)
	})

	// A positive value whose high half is all ones but whose low half is
	// not negative does not fit either range.
	subtest(t, "MalformedSignExtension", func(t *testing.T) {
		_, err := parseBplist(buildBplist([][]byte{sixteenByteInt(1<<64-1, 1)}, 1, 1, 0))
		require.True(t, errors.Is(err, ErrIntegerOverflow), "got %v", err)
	})
}
