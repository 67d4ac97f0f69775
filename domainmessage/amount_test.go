package domainmessage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAmountRoundTrip(t *testing.T) {
	a, err := NewAmount(12.5)
	require.NoError(t, err)
	require.Equal(t, Amount(1250000000), a)
	require.Equal(t, 12.5, a.ToCoin())
}

func TestNewAmountRejectsNaNAndInf(t *testing.T) {
	_, err := NewAmount(0.0 / zero())
	require.Error(t, err)
}

func zero() float64 { return 0 }

func TestAmountIsNegative(t *testing.T) {
	require.True(t, Amount(-1).IsNegative())
	require.False(t, Amount(0).IsNegative())
}

func TestAmountString(t *testing.T) {
	a, err := NewAmount(3)
	require.NoError(t, err)
	require.Equal(t, "3", a.String())
}
