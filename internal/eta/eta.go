// Package eta projects delivery dates from production estimates and shipping policy.
package eta

import (
	"strings"
	"time"
)

const Day = 24 * time.Hour

// Policy maps a destination region to transit days. FastRegion ships in
// FastDays, every other region in DefaultDays.
type Policy struct {
	FastRegion  string
	FastDays    int
	DefaultDays int
}

func DefaultPolicy() Policy {
	return Policy{FastRegion: "CA", FastDays: 5, DefaultDays: 8}
}

// ShippingDays is a constant lookup; region codes compare case-insensitively.
func (p Policy) ShippingDays(region string) int {
	if p.FastRegion != "" && strings.EqualFold(strings.TrimSpace(region), p.FastRegion) {
		return p.FastDays
	}
	return p.DefaultDays
}

// Project adds queue time, print time and shipping transit days to now.
func Project(queueTimeMs, printTimeMs int64, shippingDays int, now time.Time) time.Time {
	return now.
		Add(time.Duration(queueTimeMs) * time.Millisecond).
		Add(time.Duration(printTimeMs) * time.Millisecond).
		Add(time.Duration(shippingDays) * Day)
}
