package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"unix seconds", "1704067200", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"unix milliseconds", "1704067200000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"fractional seconds", "1704067200.75", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"compact date", "20240115", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"iso date", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDate(tt.input)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseDate_Rejects(t *testing.T) {
	for _, input := range []string{"", "  ", "0", "not a date"} {
		assert.Nil(t, parseDate(input), input)
	}
}

func TestLooksLikeEpoch(t *testing.T) {
	assert.True(t, looksLikeEpoch("170406720"))
	assert.True(t, looksLikeEpoch("1704067200.5"))
	assert.False(t, looksLikeEpoch("20240115"))
	assert.False(t, looksLikeEpoch("2024-01-15"))
	assert.False(t, looksLikeEpoch("-1704067200"))
}
