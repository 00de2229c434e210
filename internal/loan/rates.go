package loan

import (
	"sort"
	"time"
)

// ResolveAnnualRate returns the annual rate effective on date: the schedule
// entry with the latest effective date on or before it, or defaultRate when
// the schedule is empty or every entry is later. Duplicate effective dates
// keep sort order, so the last duplicate wins.
func ResolveAnnualRate(date time.Time, schedule []RateChange, defaultRate float64) float64 {
	if len(schedule) == 0 {
		return defaultRate
	}
	entries := append([]RateChange(nil), schedule...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EffectiveOn.Before(entries[j].EffectiveOn)
	})
	rate := defaultRate
	for _, entry := range entries {
		if entry.EffectiveOn.After(date) {
			break
		}
		rate = entry.AnnualRate
	}
	return rate
}
