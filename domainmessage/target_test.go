package domainmessage

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactTargetRoundTrip(t *testing.T) {
	orig := NewCompactTarget(0x00FFFF, 0x20)
	require.Equal(t, MinTarget, orig)

	buf := &bytes.Buffer{}
	require.NoError(t, writeCompactTarget(buf, orig))

	got, err := readCompactTarget(buf)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestCompactFromBigInverseOfExpand(t *testing.T) {
	expanded := MinTarget.Expand()
	back := CompactFromBig(expanded)
	require.Equal(t, MinTarget.Expand(), back.Expand())
}

func TestCompactFromBigNonPositiveIsZero(t *testing.T) {
	require.Equal(t, CompactTarget{}, CompactFromBig(big.NewInt(0)))
	require.Equal(t, CompactTarget{}, CompactFromBig(big.NewInt(-5)))
}

func TestHashBelowTargetRespectsCeiling(t *testing.T) {
	low := make([]byte, 32)
	low[31] = 1
	require.True(t, HashBelowTarget(low, MinTarget))

	high := make([]byte, 32)
	for i := range high {
		high[i] = 0xFF
	}
	require.False(t, HashBelowTarget(high, MinTarget))
}

func TestExpandExponentBelowThreeShiftsRight(t *testing.T) {
	target := NewCompactTarget(0xFF0000, 2)
	expanded := target.Expand()
	require.Equal(t, big.NewInt(0xFF00), expanded)
}
