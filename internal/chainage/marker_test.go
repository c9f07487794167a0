package chainage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		meters   float64
		expected string
	}{
		{10100.0, "K10+100"},
		{0, "K0+000"},
		{999, "K0+999"},
		{1000, "K1+000"},
		{1007, "K1+007"},
		{11500, "K11+500"},
		{2345.5, "K2+345.5"},
		{2345.25, "K2+345.25"},
		// Float noise within 0.1mm snaps to the integer meter.
		{5000.00005, "K5+000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Format(tt.meters), "Format(%v)", tt.meters)
	}
}

func TestParseMarker(t *testing.T) {
	tests := []struct {
		text     string
		expected float64
	}{
		{"K10+100", 10100},
		{"k10+100", 10100},
		{"10+100", 10100},
		{"Ｋ３＋２５０", 3250},
		{"K7", 7000},
		{"3公里", 3000},
		{"3公里500", 3500},
		{"1500", 1500},
		{"里程 K2+050", 2050},
	}

	for _, tt := range tests {
		value, ok := ParseMarker(tt.text)
		require.True(t, ok, "ParseMarker(%q) should succeed", tt.text)
		assert.InDelta(t, tt.expected, value, 1e-9, "ParseMarker(%q)", tt.text)
	}

	_, ok := ParseMarker("abc")
	assert.False(t, ok)
	_, ok = ParseMarker("")
	assert.False(t, ok)
}

func TestParseNumber(t *testing.T) {
	value, ok := ParseNumber("經度 121.7298 左右")
	require.True(t, ok)
	assert.InDelta(t, 121.7298, value, 1e-9)

	value, ok = ParseNumber("-25.5")
	require.True(t, ok)
	assert.InDelta(t, -25.5, value, 1e-9)

	_, ok = ParseNumber("沒有數字")
	assert.False(t, ok)
}

func TestParseNumbers(t *testing.T) {
	values := ParseNumbers("121.73, 25.01", 2)
	require.Len(t, values, 2)
	assert.InDelta(t, 121.73, values[0], 1e-9)
	assert.InDelta(t, 25.01, values[1], 1e-9)

	assert.Empty(t, ParseNumbers("none", 2))
	assert.Len(t, ParseNumbers("1 2 3", 2), 2)
}
