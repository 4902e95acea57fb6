//go:build !plist_wideint

package plist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSixteenByteIntegerRejected(t *testing.T) {
	obj := append([]byte{0x14}, make([]byte, 16)...)
	obj[16] = 1
	_, err := parseBplist(buildBplist([][]byte{obj}, 1, 1, 0))
	require.True(t, errors.Is(err, ErrUnsupportedWidth), "got %v", err)
}

func TestHugeUnsignedIntegerRejectedOnEncode(t *testing.T) {
	g := NewBinaryGenerator(nilWriter{})
	err := g.WriteEvent(Scalar(Integer{Value: 1<<63 + 1}))
	require.True(t, errors.Is(err, ErrIntegerOverflow), "got %v", err)
}
