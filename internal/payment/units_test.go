package payment

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	cases := []struct {
		price float64
		want  int64
	}{
		{1.00, 1_000_000},
		{0.50, 500_000},
		{0.1, 100_000},
		{2.675, 2_675_000},
		{3, 3_000_000},
		{0.0000019, 1},
		{0, 0},
	}
	for _, tc := range cases {
		got, err := ToSmallestUnit(tc.price, 6)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(tc.want), got, "price %v", tc.price)
	}
}

func TestToSmallestUnit_RejectsNegative(t *testing.T) {
	_, err := ToSmallestUnit(-1, 6)
	assert.Error(t, err)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0.50", FormatUnits(big.NewInt(500_000), 6))
	assert.Equal(t, "1.00", FormatUnits(big.NewInt(1_000_000), 6))
	assert.Equal(t, "0.999999", FormatUnits(big.NewInt(999_999), 6))
	assert.Equal(t, "1.234567", FormatUnits(big.NewInt(1_234_567), 6))
	assert.Equal(t, "0.00", FormatUnits(nil, 6))
	assert.Equal(t, "12.00", FormatUnits(big.NewInt(12), 0))
	assert.Equal(t, "-0.50", FormatUnits(big.NewInt(-500_000), 6))
}
