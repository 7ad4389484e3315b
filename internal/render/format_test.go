package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLargeNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{999999, "1000.0K"},
		{1000000, "1.0M"},
		{2500000, "2.5M"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLargeNumber(tt.in))
	}
}

func TestOrdinal(t *testing.T) {
	assert.Equal(t, "1st", Ordinal(1))
	assert.Equal(t, "2nd", Ordinal(2))
	assert.Equal(t, "3rd", Ordinal(3))
	assert.Equal(t, "4th", Ordinal(4))
	assert.Equal(t, "11th", Ordinal(11))
	assert.Equal(t, "12th", Ordinal(12))
	assert.Equal(t, "13th", Ordinal(13))
	assert.Equal(t, "21st", Ordinal(21))
	assert.Equal(t, "22nd", Ordinal(22))
	assert.Equal(t, "23rd", Ordinal(23))
	assert.Equal(t, "51st", Ordinal(51))
	assert.Equal(t, "111th", Ordinal(111))
	assert.Equal(t, "112th", Ordinal(112))
	assert.Equal(t, "121st", Ordinal(121))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "very lo...", TruncateText("very long text here", 10))
}

func TestProgressBar(t *testing.T) {
	full := ProgressBar(10, 10, 4)
	assert.Contains(t, full, "████")
	assert.Contains(t, full, "100%")

	half := ProgressBar(5, 10, 4)
	assert.Contains(t, half, "██░░")
	assert.Contains(t, half, "50%")

	over := ProgressBar(20, 10, 4)
	assert.Contains(t, over, "100%")

	zeroTarget := ProgressBar(5, 0, 4)
	assert.Contains(t, zeroTarget, "100%")
}

func TestFormatPointsChange(t *testing.T) {
	assert.Equal(t, "+50", FormatPointsChange(50))
	assert.Equal(t, "-50", FormatPointsChange(-50))
	assert.Equal(t, "0", FormatPointsChange(0))
}

func TestFormatThousands(t *testing.T) {
	assert.Equal(t, "999", formatThousands(999))
	assert.Equal(t, "1,000", formatThousands(1000))
	assert.Equal(t, "1,234,567", formatThousands(1234567))
	assert.Equal(t, "-1,000", formatThousands(-1000))
}

func TestParseHexColor(t *testing.T) {
	c, ok := parseHexColor("#2C3E50")
	assert.True(t, ok)
	assert.Equal(t, 0x2C3E50, c)

	c, ok = parseHexColor("ff0000")
	assert.True(t, ok)
	assert.Equal(t, 0xFF0000, c)

	_, ok = parseHexColor("#fff")
	assert.False(t, ok)

	_, ok = parseHexColor("not-a-color")
	assert.False(t, ok)
}
