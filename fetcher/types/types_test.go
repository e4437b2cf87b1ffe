package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsFresh(t *testing.T) {
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	lookback := 24 * time.Hour
	require.True(t, IsFresh(now.Add(-lookback), now, lookback))
	require.False(t, IsFresh(now.Add(-lookback-time.Nanosecond), now, lookback))
	require.True(t, IsFresh(now.Add(time.Hour), now, lookback))
	require.True(t, IsFresh(now.Add(-1000*time.Hour), now, 0))
}

func TestNewsItemKey(t *testing.T) {
	require.Equal(t, "https://e.com/a", NewsItem{Title: "t", URL: "https://e.com/a"}.Key())
	require.Equal(t, "t", NewsItem{Title: "t"}.Key())
}
