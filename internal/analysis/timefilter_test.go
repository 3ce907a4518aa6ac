package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

func TestResolveQuickRanges(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	start, end, err := ResolveTimeRange(RangeLast1h, 0, 0, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(-time.Hour).Unix(), start)
	require.Equal(t, now.Unix(), end)

	start, end, err = ResolveTimeRange(RangeLast7d, 0, 0, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(-7*24*time.Hour).Unix(), start)
	require.Equal(t, now.Unix(), end)

	start, end, err = ResolveTimeRange(RangeToday, 0, 0, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Unix(), start)
	require.Equal(t, now.Unix(), end)

	start, end, err = ResolveTimeRange(RangeYesterday, 0, 0, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC).Unix(), start)
	require.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Unix(), end)
}

func TestResolveQuickRangeWinsOverCustom(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	start, end, err := ResolveTimeRange(RangeLast24h, 1, 2, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(-24*time.Hour).Unix(), start)
	require.Equal(t, now.Unix(), end)
}

func TestResolveCustomRange(t *testing.T) {
	now := time.Now()

	start, end, err := ResolveTimeRange("", 100, 200, now)
	require.NoError(t, err)
	require.Equal(t, int64(100), start)
	require.Equal(t, int64(200), end)

	// zero bounds mean unbounded
	start, end, err = ResolveTimeRange("", 0, 0, now)
	require.NoError(t, err)
	require.Zero(t, start)
	require.Zero(t, end)

	_, _, err = ResolveTimeRange("", 200, 100, now)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, _, err = ResolveTimeRange("", -1, 0, now)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestResolveUnknownQuickRange(t *testing.T) {
	_, _, err := ResolveTimeRange("last_year", 0, 0, time.Now())
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
