package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDangerLevel(t *testing.T) {
	cases := []struct {
		in    string
		level DangerLevel
		ok    bool
	}{
		{"Low", DangerLow, true},
		{"moderate", DangerModerate, true},
		{"CONSIDERABLE", DangerConsiderable, true},
		{"High", DangerHigh, true},
		{"Extreme", DangerExtreme, true},
		{"Unknown", DangerUnknown, false},
		{"Severe", DangerUnknown, false},
		{"", DangerUnknown, false},
	}

	for _, tc := range cases {
		level, ok := ParseDangerLevel(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.level, level, "input %q", tc.in)
	}
}

func TestDangerLevelOrdering(t *testing.T) {
	assert.True(t, DangerLow < DangerModerate)
	assert.True(t, DangerModerate < DangerConsiderable)
	assert.True(t, DangerConsiderable < DangerHigh)
	assert.True(t, DangerHigh < DangerExtreme)
}

func TestZoneDisplayName(t *testing.T) {
	assert.Equal(t, "Stevens Pass", ZoneID("stevens-pass").DisplayName())
	assert.Equal(t, "East Slopes Central", ZoneID("east-slopes-central").DisplayName())
	assert.Equal(t, "Olympics", ZoneID("olympics").DisplayName())
}
