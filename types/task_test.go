package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want TaskStatus
		ok   bool
	}{
		{"pending", StatusPending, true},
		{" In-Progress ", StatusInProgress, true},
		{"COMPLETED", StatusCompleted, true},
		{"done", "done", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTaskStatus(tt.raw)
		require.Equal(t, tt.ok, ok, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}
}

func TestParseTaskPriority(t *testing.T) {
	tests := []struct {
		raw  string
		want TaskPriority
		ok   bool
	}{
		{"low", PriorityLow, true},
		{"Medium", PriorityMedium, true},
		{" HIGH", PriorityHigh, true},
		{"urgent", "urgent", false},
	}
	for _, tt := range tests {
		got, ok := ParseTaskPriority(tt.raw)
		require.Equal(t, tt.ok, ok, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}
}
