package analysis

import (
	"time"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

const (
	RangeLast1h    = "last_1h"
	RangeLast24h   = "last_24h"
	RangeLast7d    = "last_7d"
	RangeLast30d   = "last_30d"
	RangeToday     = "today"
	RangeYesterday = "yesterday"
)

// ResolveTimeRange turns either a quick-range name or an explicit custom
// window into epoch bounds. A zero bound means unbounded on that side.
// Quick range and custom bounds are mutually exclusive; the quick range wins
// when both are set.
func ResolveTimeRange(quick string, start, end int64, now time.Time) (int64, int64, error) {
	if quick != "" {
		switch quick {
		case RangeLast1h:
			return now.Add(-time.Hour).Unix(), now.Unix(), nil
		case RangeLast24h:
			return now.Add(-24 * time.Hour).Unix(), now.Unix(), nil
		case RangeLast7d:
			return now.Add(-7 * 24 * time.Hour).Unix(), now.Unix(), nil
		case RangeLast30d:
			return now.Add(-30 * 24 * time.Hour).Unix(), now.Unix(), nil
		case RangeToday:
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			return midnight.Unix(), now.Unix(), nil
		case RangeYesterday:
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			return midnight.Add(-24 * time.Hour).Unix(), midnight.Unix(), nil
		default:
			return 0, 0, appErr.ErrInvalid
		}
	}
	if start < 0 || end < 0 {
		return 0, 0, appErr.ErrInvalid
	}
	if start > 0 && end > 0 && start > end {
		return 0, 0, appErr.ErrInvalid
	}
	return start, end, nil
}
