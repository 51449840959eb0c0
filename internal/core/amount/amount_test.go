package amount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaxAt(t *testing.T) {
	tests := []struct {
		name    string
		amount  Amount
		rateBps uint32
		want    Amount
	}{
		{"ten percent", 1000, 1000, 100},
		{"floors remainder", 999, 1000, 99},
		{"zero rate", 1000, 0, 0},
		{"zero amount", 0, 1000, 0},
		{"one unit below rate granularity", 9, 1000, 0},
		{"max cap rate", 1000, 2000, 200},
		{"full denominator", 12345, 10000, 12345},
		{"large amount no overflow", Amount(math.MaxUint64), 1, 1844674407370955},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.TaxAt(tt.rateBps); got != tt.want {
				t.Errorf("TaxAt(%d, %d) = %d, want %d", tt.amount, tt.rateBps, got, tt.want)
			}
		})
	}
}

func TestTaxPlusNetEqualsAmount(t *testing.T) {
	// The settle invariant: the tax and the net always recompose the input.
	amounts := []Amount{1, 7, 999, 1000, 123456789, Amount(math.MaxUint64)}
	rates := []uint32{0, 1, 25, 300, 1000, 1999, 2000}

	for _, a := range amounts {
		for _, r := range rates {
			tax := a.TaxAt(r)
			net, err := a.Sub(tax)
			require.NoError(t, err)
			sum, err := tax.Add(net)
			require.NoError(t, err)
			require.Equal(t, a, sum, "amount=%d rate=%d", a, r)
		}
	}
}

func TestPercentShare(t *testing.T) {
	tests := []struct {
		amount Amount
		pct    uint32
		want   Amount
	}{
		{200, 50, 100},
		{100, 100, 100},
		{101, 50, 50},
		{3, 33, 0},
		{1000, 0, 0},
	}

	for _, tt := range tests {
		if got := tt.amount.PercentShare(tt.pct); got != tt.want {
			t.Errorf("PercentShare(%d, %d) = %d, want %d", tt.amount, tt.pct, got, tt.want)
		}
	}
}

func TestAddOverflow(t *testing.T) {
	_, err := MaxAmount.Add(1)
	require.ErrorIs(t, err, ErrOverflow)

	sum, err := Amount(1).Add(2)
	require.NoError(t, err)
	require.Equal(t, Amount(3), sum)
}

func TestSubUnderflow(t *testing.T) {
	_, err := Amount(1).Sub(2)
	require.Error(t, err)

	diff, err := Amount(5).Sub(2)
	require.NoError(t, err)
	require.Equal(t, Amount(3), diff)
}

func TestMulDiv(t *testing.T) {
	// 128-bit intermediate: MaxUint64 × 9999 / 10000 would overflow a
	// uint64 product but must still floor correctly.
	got := MulDiv(Amount(math.MaxUint64), 9999, 10000)
	want := Amount(18444899399302180659)
	if got != want {
		t.Errorf("MulDiv = %d, want %d", got, want)
	}
}
