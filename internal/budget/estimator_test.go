package budget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 50), 13},
		{strings.Repeat("x", 200), 50},
		{"héllo", 2},
		{"日本語テキスト", 2},
		{"🩺🩺🩺🩺", 1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, EstimateTokens(tc.text), "text=%q", tc.text)
	}
}

func TestEstimateTokens_IsCeilOfQuarterLength(t *testing.T) {
	for n := 0; n <= 64; n++ {
		want := (n + 3) / 4
		require.Equal(t, want, EstimateTokens(strings.Repeat("a", n)), "n=%d", n)
	}
}

func TestBudget_Validate(t *testing.T) {
	require.NoError(t, DefaultBudget().Validate())

	cases := []struct {
		name string
		b    Budget
	}{
		{"zero max", Budget{MaxTotalTokens: 0, ReservedForResponse: 0, HistoryFraction: 0.7}},
		{"negative reserve", Budget{MaxTotalTokens: 100, ReservedForResponse: -1, HistoryFraction: 0.7}},
		{"reserve equals max", Budget{MaxTotalTokens: 100, ReservedForResponse: 100, HistoryFraction: 0.7}},
		{"reserve above max", Budget{MaxTotalTokens: 100, ReservedForResponse: 200, HistoryFraction: 0.7}},
		{"zero fraction", Budget{MaxTotalTokens: 100, ReservedForResponse: 10, HistoryFraction: 0}},
		{"fraction above one", Budget{MaxTotalTokens: 100, ReservedForResponse: 10, HistoryFraction: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.b.Validate())
		})
	}
}

func TestBudget_AvailableAndThreshold(t *testing.T) {
	b := DefaultBudget()
	require.Equal(t, 10900, b.AvailableForHistory(100))
	require.InDelta(t, 7630, b.HistoryThreshold(100), 0.001)
	require.Equal(t, -100, b.AvailableForHistory(11100))
}

func TestBudget_DocumentOverBudget(t *testing.T) {
	b := DefaultBudget()
	require.False(t, b.DocumentOverBudget("Be precise and concise.", strings.Repeat("x", 50)))
	require.True(t, b.DocumentOverBudget("Be precise and concise.", strings.Repeat("x", 4*11000)))
}
