package units

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStacks(t *testing.T) {
	assert.Equal(t, "8649.000000", Stacks(8_649_000_000))
	assert.Equal(t, "0.000001", Stacks(1))
	assert.Equal(t, "0.000000", Stacks(0))
	assert.Equal(t, "-1.500000", Stacks(-1_500_000))
}

func TestStacksFormatted(t *testing.T) {
	assert.Equal(t, "1,234,567.890123", StacksFormatted(1_234_567_890_123))
	assert.Equal(t, "999.000000", StacksFormatted(999_000_000))
}

func TestStacksFromString(t *testing.T) {
	got, err := StacksFromString("100000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000.000000", got)

	_, err = StacksFromString("12abc")
	assert.Error(t, err)
}

func TestBTC(t *testing.T) {
	assert.Equal(t, "0.00001000", BTC(1000))
	assert.Equal(t, "12.50000000", BTC(1_250_000_000))
	assert.Equal(t, "21,000,000.00000000", BTCFormatted(2_100_000_000_000_000))
}

func TestTotalStacks(t *testing.T) {
	assert.Equal(t, "1352464600", TotalStacks.String())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "25.00", Percent(decimal.NewFromInt(1), decimal.NewFromInt(4)))
	assert.Equal(t, "0.00", Percent(decimal.NewFromInt(1), decimal.Zero))
}

func TestThousands(t *testing.T) {
	tests := map[string]string{
		"0":          "0",
		"100":        "100",
		"1000":       "1,000",
		"-1234567.5": "-1,234,567.5",
		"123456":     "123,456",
	}
	for in, want := range tests {
		assert.Equal(t, want, Thousands(in), in)
	}
}
