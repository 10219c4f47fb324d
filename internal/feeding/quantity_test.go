package feeding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	loc := time.UTC
	msg := time.Date(2024, 5, 10, 12, 0, 0, 0, loc)
	tests := []struct {
		in      string
		grams   float64
		at      time.Time
		changed bool
	}{
		{"120", 120, msg, false},
		{"120g", 120, msg, false},
		{"120 g", 120, msg, false},
		{"1,5kg", 1500, msg, false},
		{"0.5 KG 08:15", 500, time.Date(2024, 5, 10, 8, 15, 0, 0, loc), true},
		{"80 23:00", 80, time.Date(2024, 5, 9, 23, 0, 0, 0, loc), true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := ParseEntry(tt.in, msg, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.grams, e.Grams)
			assert.True(t, tt.at.Equal(e.Time), e.Time)
			assert.Equal(t, tt.changed, e.TimeChanged)
		})
	}
}

func TestParseEntryRejects(t *testing.T) {
	msg := time.Now()
	for _, in := range []string{"", "abc", "-5", "0", "12lb", "10 10:00 extra"} {
		_, err := ParseEntry(in, msg, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidQuantity, in)
	}
	_, err := ParseEntry("10 99:00", msg, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestFormatGrams(t *testing.T) {
	assert.Equal(t, "120 g", FormatGrams(120))
	assert.Equal(t, "1,250.5 g", FormatGrams(1250.5))
	assert.Equal(t, "0 g", FormatGrams(0))
}
