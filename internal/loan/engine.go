package loan

import (
	"math"
	"time"
)

// Run executes one amortization pass at monthly granularity, from the first
// month boundary on or after StartDate, for up to MaxPeriods periods or
// until both aggregate balances fall below BalanceTolerance. The input
// tranche collection is copied; the caller's slice is never mutated.
func Run(in RunInput) (RunResult, error) {
	if err := in.Validate(); err != nil {
		return RunResult{}, err
	}

	tranches := CloneTranches(in.Tranches)
	first := firstPeriodDate(in.StartDate)
	schedule := make([]PeriodRecord, 0, in.MaxPeriods)

	for period := 1; period <= in.MaxPeriods; period++ {
		current := first.AddDate(0, period-1, 0)
		lumpsum := lumpsumOn(in.Lumpsums, current)

		monthlyRate := ResolveAnnualRate(current, in.RateSchedule, in.DefaultAnnualRate) / 12.0

		// Accrual. The per-period formula is the same in both phases; the
		// simple/compound split only decides where unpaid interest lands.
		interestDue := make([]float64, len(tranches))
		totalInterest := 0.0
		for i, t := range tranches {
			if t.Closed() {
				continue
			}
			interestDue[i] = t.Principal * monthlyRate
			totalInterest += interestDue[i]
		}

		payment := in.BasePayment + lumpsum

		// Interest waterfall: pro-rata on interest due, capped per tranche.
		interestPaid := make([]float64, len(tranches))
		if totalInterest > 0 && payment > 0 {
			paid := 0.0
			for i := range tranches {
				if interestDue[i] <= 0 {
					continue
				}
				allocated := payment * (interestDue[i] / totalInterest)
				interestPaid[i] = math.Min(allocated, interestDue[i])
				paid += interestPaid[i]
			}
			payment -= paid
		}

		// Principal waterfall: pro-rata on outstanding principal, capped.
		// Leftover payment beyond both totals is not banked forward.
		principalPaid := make([]float64, len(tranches))
		totalOutstanding := 0.0
		for _, t := range tranches {
			if t.Principal > BalanceTolerance {
				totalOutstanding += t.Principal
			}
		}
		if payment > 0 && totalOutstanding > 0 {
			paid := 0.0
			for i, t := range tranches {
				if t.Principal <= BalanceTolerance {
					continue
				}
				allocated := payment * (t.Principal / totalOutstanding)
				principalPaid[i] = math.Min(allocated, t.Principal)
				paid += principalPaid[i]
			}
			payment -= paid
		}

		// State update. During the simple window unpaid interest accrues
		// separately; past it, unpaid interest capitalizes, and any pending
		// simple-interest balance is folded into principal in one step. The
		// pending-balance check repeats every compound period, so a missed
		// transition self-corrects.
		for i := range tranches {
			t := &tranches[i]
			unpaid := interestDue[i] - interestPaid[i]
			if current.Before(t.simplePhaseEnd(in.SimplePhaseYears)) {
				t.AccruedSimpleInterest += unpaid
			} else {
				t.Principal += unpaid
				if t.AccruedSimpleInterest > 0 {
					t.Principal += t.AccruedSimpleInterest
					t.AccruedSimpleInterest = 0
				}
			}
			t.Principal -= principalPaid[i]
		}

		record := PeriodRecord{
			Period:               period,
			Date:                 current,
			InterestAccrued:      totalInterest,
			InterestPaid:         sum(interestPaid),
			PrincipalPaid:        sum(principalPaid),
			Lumpsum:              lumpsum,
			EndingPrincipal:      positiveSum(tranches, func(t Tranche) float64 { return t.Principal }),
			EndingSimpleInterest: positiveSum(tranches, func(t Tranche) float64 { return t.AccruedSimpleInterest }),
		}
		schedule = append(schedule, record)

		if record.EndingPrincipal < BalanceTolerance && record.EndingSimpleInterest < BalanceTolerance {
			break
		}
	}

	return RunResult{
		Schedule: schedule,
		Tranches: tranches,
		Summary:  summarise(schedule),
	}, nil
}

// CloneTranches deep-copies a tranche collection so concurrent or repeated
// runs never share mutable state.
func CloneTranches(tranches []Tranche) []Tranche {
	return append([]Tranche(nil), tranches...)
}

// firstPeriodDate snaps the repayment start to the first month boundary on
// or after it. Period dates then advance by exact calendar months.
func firstPeriodDate(start time.Time) time.Time {
	d := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if d.Before(dateOnly(start)) {
		d = d.AddDate(0, 1, 0)
	}
	return d
}

// lumpsumOn sums every payment dated exactly on the period date.
func lumpsumOn(lumpsums []Lumpsum, date time.Time) float64 {
	total := 0.0
	for _, l := range lumpsums {
		if dateOnly(l.Date).Equal(date) {
			total += l.Amount
		}
	}
	return total
}

func summarise(schedule []PeriodRecord) ScheduleSummary {
	var s ScheduleSummary
	for _, record := range schedule {
		s.TotalInterestPaid += record.InterestPaid
		s.TotalPrincipalPaid += record.PrincipalPaid
	}
	if len(schedule) > 0 {
		last := schedule[len(schedule)-1]
		s.MonthsTaken = last.Period
		s.Retired = last.EndingPrincipal < BalanceTolerance && last.EndingSimpleInterest < BalanceTolerance
	}
	return s
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func positiveSum(tranches []Tranche, field func(Tranche) float64) float64 {
	total := 0.0
	for _, t := range tranches {
		if v := field(t); v > 0 {
			total += v
		}
	}
	return total
}
