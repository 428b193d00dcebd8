package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGTFSTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"00:00:00", 0},
		{"08:30:00", 8*time.Hour + 30*time.Minute},
		{"14:45:30", 14*time.Hour + 45*time.Minute + 30*time.Second},
		{"24:00:00", 24 * time.Hour},
		{"25:30:00", 25*time.Hour + 30*time.Minute},
		{"27:15:45", 27*time.Hour + 15*time.Minute + 45*time.Second},
		{" 09:00:00 ", 9 * time.Hour},
	}
	for _, tc := range tests {
		got, err := ParseGTFSTime(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, GTFSTime(tc.want), got, "input %q", tc.input)
	}
}

func TestParseGTFSTimeRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{
		"",
		"08:30",
		"08:30:00:00",
		"8h30m",
		"-1:00:00",
		"08:60:00",
		"08:30:60",
		"ab:cd:ef",
	} {
		_, err := ParseGTFSTime(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestMaterializeSameDay(t *testing.T) {
	ref := time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)

	gt, err := ParseGTFSTime("14:30:00")
	require.NoError(t, err)

	got := gt.Materialize(ref)
	assert.Equal(t, time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC), got)
}

func TestMaterializeRollsPastMidnight(t *testing.T) {
	ref := time.Date(2025, time.March, 10, 23, 45, 0, 0, time.UTC)

	gt, err := ParseGTFSTime("25:30:00")
	require.NoError(t, err)

	got := gt.Materialize(ref)
	assert.Equal(t, time.Date(2025, time.March, 11, 1, 30, 0, 0, time.UTC), got)
}

func TestMaterializeKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ref := time.Date(2025, time.June, 1, 12, 0, 0, 0, loc)

	gt, err := ParseGTFSTime("06:15:00")
	require.NoError(t, err)

	got := gt.Materialize(ref)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 6, got.Hour())
	assert.Equal(t, 15, got.Minute())
}
