package loan

import (
	"sort"
	"time"
)

// Cleaning drops rows a collaborator left blank or non-positive and orders
// the rest by date. All three cleaners are idempotent: feeding an already
// cleaned sequence through again yields an identical sequence.

// CleanDisbursements filters invalid drawdown rows and sorts by date.
func CleanDisbursements(rows []Disbursement) []Disbursement {
	out := make([]Disbursement, 0, len(rows))
	for _, row := range rows {
		if row.Date.IsZero() || !isFinite(row.Amount) || row.Amount <= 0 {
			continue
		}
		row.Date = dateOnly(row.Date)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CleanLumpsums filters invalid extra-payment rows and sorts by date.
func CleanLumpsums(rows []Lumpsum) []Lumpsum {
	out := make([]Lumpsum, 0, len(rows))
	for _, row := range rows {
		if row.Date.IsZero() || !isFinite(row.Amount) || row.Amount <= 0 {
			continue
		}
		row.Date = dateOnly(row.Date)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CleanRateSchedule filters invalid rate rows and sorts by effective date.
// Non-positive rates are dropped, matching the drawdown/payment cleaners.
func CleanRateSchedule(rows []RateChange) []RateChange {
	out := make([]RateChange, 0, len(rows))
	for _, row := range rows {
		if row.EffectiveOn.IsZero() || !isFinite(row.AnnualRate) || row.AnnualRate <= 0 {
			continue
		}
		row.EffectiveOn = dateOnly(row.EffectiveOn)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveOn.Before(out[j].EffectiveOn) })
	return out
}

// TranchesFromDisbursements builds the initial tranche collection from
// cleaned drawdowns. IDs are stable ordinals in date order.
func TranchesFromDisbursements(rows []Disbursement) []Tranche {
	cleaned := CleanDisbursements(rows)
	tranches := make([]Tranche, 0, len(cleaned))
	for i, row := range cleaned {
		tranches = append(tranches, Tranche{
			ID:          i,
			DisbursedOn: row.Date,
			Principal:   row.Amount,
		})
	}
	return tranches
}

// dateOnly truncates a timestamp to a UTC calendar date so that period and
// payment dates compare by equality.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
