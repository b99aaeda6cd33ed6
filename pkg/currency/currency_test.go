package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		amount int64
		code   string
		want   string
	}{
		{1250000, "IDR", "IDR 1.250.000"},
		{-999, "IDR", "-IDR 999"},
		{123450, "USD", "USD 1,234.50"},
		{5, "usd", "USD 0.05"},
		{0, "EUR", "EUR 0.00"},
		{1500, "JPY", "JPY 1,500"},
		{12345, "KWD", "KWD 12.345"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.amount, tt.code))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		code    string
		want    int64
		wantErr bool
	}{
		{"1234.50", "USD", 123450, false},
		{"1234.5", "USD", 123450, false},
		{"99", "EUR", 9900, false},
		{".75", "EUR", 75, false},
		{"1250000.00", "IDR", 1250000, false},
		{"1250000.50", "IDR", 0, true},
		{"12.3456", "USD", 0, true},
		{"-10.00", "USD", -1000, false},
		{"abc", "USD", 0, true},
		{"", "USD", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in+"/"+tt.code, func(t *testing.T) {
			got, err := ParseAmount(tt.in, tt.code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticConverter(t *testing.T) {
	conv := NewStaticConverter("usd", map[string]float64{"EUR": 0.5, "IDR": 15000})

	got, err := conv.Convert(1000, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)

	got, err = conv.Convert(500, "EUR", "IDR")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), got)

	got, err = conv.Convert(42, "GBP", "GBP")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = conv.Convert(100, "USD", "GBP")
	assert.ErrorIs(t, err, ErrRateUnavailable)
}
