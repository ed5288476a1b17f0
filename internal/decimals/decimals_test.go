package decimals

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		digits string
		places int
		want   float64
	}{
		{name: "zero", digits: "0", places: 18, want: 0},
		{name: "one token", digits: "1000000000000000000", places: 18, want: 1},
		{name: "short input is padded", digits: "5", places: 6, want: 0.000005},
		{name: "exact length", digits: "123456", places: 6, want: 0.123456},
		{name: "lp precision", digits: "2500000", places: 6, want: 2.5},
		{name: "factor precision", digits: "1500000000000", places: 12, want: 1.5},
		{name: "large ptp per sec", digits: "3170979198376458650", places: 18, want: 3.17097919837645865},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.digits, tt.places)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-15)
		})
	}
}

func TestConvert_NoConversion(t *testing.T) {
	for _, places := range []int{1, 6, 12, 18} {
		_, err := Convert("", places)
		assert.ErrorIs(t, err, ErrNoConversion)
	}

	_, err := Convert("1000", 0)
	assert.ErrorIs(t, err, ErrNoConversion)
}

func TestConvert_Malformed(t *testing.T) {
	for _, digits := range []string{"-1", "1.5", "0x10", "12a"} {
		_, err := Convert(digits, 6)
		assert.ErrorIs(t, err, ErrMalformedDigits, digits)
	}
}

func TestConvert_Uint256(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	got, err := Convert(max.String(), 18)
	require.NoError(t, err)
	assert.InEpsilon(t, 1.157920892373162e59, got, 1e-12)
}

func TestFromBig(t *testing.T) {
	raw, ok := new(big.Int).SetString("31536000000000000000000000", 10)
	require.True(t, ok)

	got, err := FromBig(raw, 18)
	require.NoError(t, err)
	assert.Equal(t, 31536000.0, got)

	_, err = FromBig(nil, 18)
	assert.Error(t, err)

	_, err = FromBig(big.NewInt(-1), 18)
	assert.Error(t, err)
}
