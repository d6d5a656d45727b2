package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"10", "10.00"},
		{"0.125", "0.13"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, String(Round(d)))
		})
	}
}

func TestMul(t *testing.T) {
	assert.Equal(t, "2000.00", String(Mul(MustParse("1000.00"), 2)))
	assert.Equal(t, "0.30", String(Mul(MustParse("0.10"), 3)))
	assert.Equal(t, "33.33", String(Mul(decimal.RequireFromString("11.111"), 3)))
}

func TestSumHasNoFloatDrift(t *testing.T) {
	ds := make([]decimal.Decimal, 0, 10)
	for i := 0; i < 10; i++ {
		ds = append(ds, MustParse("0.10"))
	}
	assert.True(t, Sum(ds...).Equal(MustParse("1.00")))
}

func TestParse(t *testing.T) {
	d, err := Parse("12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.50", String(d))

	_, err = Parse("twelve")
	assert.Error(t, err)
}

func TestNonNegative(t *testing.T) {
	assert.True(t, NonNegative(MustParse("-0.01")).IsZero())
	assert.Equal(t, "3.00", String(NonNegative(MustParse("3"))))
}
