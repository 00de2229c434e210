package loan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func singleTrancheInput(basePayment float64) RunInput {
	return RunInput{
		Tranches: []Tranche{
			{ID: 0, DisbursedOn: day(2025, 1, 1), Principal: 1_000_000},
		},
		DefaultAnnualRate: 0.084,
		BasePayment:       basePayment,
		StartDate:         day(2025, 1, 1),
		MaxPeriods:        216,
		SimplePhaseYears:  3,
	}
}

func TestRunSingleTrancheFirstPeriod(t *testing.T) {
	result, err := Run(singleTrancheInput(25_000))
	require.NoError(t, err)
	require.NotEmpty(t, result.Schedule)

	first := result.Schedule[0]
	require.Equal(t, 1, first.Period)
	require.Equal(t, day(2025, 1, 1), first.Date)
	require.InDelta(t, 7_000, first.InterestAccrued, 1e-6)
	require.InDelta(t, 7_000, first.InterestPaid, 1e-6)
	require.InDelta(t, 18_000, first.PrincipalPaid, 1e-6)
	require.InDelta(t, 982_000, first.EndingPrincipal, 1e-6)
	require.Zero(t, first.EndingSimpleInterest)

	// Payment exceeds interest throughout, so the loan retires well before
	// the maximum tenure.
	require.True(t, result.Summary.Retired)
	require.Less(t, result.Summary.MonthsTaken, 60)
}

func TestRunZeroPaymentAccruesThenCapitalizes(t *testing.T) {
	in := singleTrancheInput(0)
	in.MaxPeriods = 40
	result, err := Run(in)
	require.NoError(t, err)
	require.Len(t, result.Schedule, 40)
	require.False(t, result.Summary.Retired)

	// Simple window: principal untouched, accrued interest grows monthly.
	for i := 0; i < 36; i++ {
		record := result.Schedule[i]
		require.InDelta(t, 1_000_000, record.EndingPrincipal, 1e-6, "period %d", record.Period)
		require.InDelta(t, 7_000*float64(i+1), record.EndingSimpleInterest, 1e-3, "period %d", record.Period)
		require.Zero(t, record.InterestPaid)
	}

	// Period 37 crosses disbursement+3y: the 36 months of accrued simple
	// interest capitalize in one step, on top of that month's unpaid
	// interest.
	transition := result.Schedule[36]
	require.Equal(t, day(2028, 1, 1), transition.Date)
	require.Zero(t, transition.EndingSimpleInterest)
	require.InDelta(t, 1_000_000+7_000+252_000, transition.EndingPrincipal, 1e-3)

	// Every later period keeps the simple-interest balance at exactly zero.
	for _, record := range result.Schedule[37:] {
		require.Zero(t, record.EndingSimpleInterest, "period %d", record.Period)
	}

	require.False(t, result.Tranches[0].Closed())
}

func TestRunLumpsumAppliesOnExactPeriodDate(t *testing.T) {
	in := singleTrancheInput(25_000)
	in.Lumpsums = []Lumpsum{
		{Date: day(2025, 3, 1), Amount: 30_000},
		{Date: day(2025, 3, 1), Amount: 20_000},
		{Date: day(2025, 3, 15), Amount: 99_999}, // mid-month, never a period date
	}
	result, err := Run(in)
	require.NoError(t, err)

	third := result.Schedule[2]
	require.Equal(t, day(2025, 3, 1), third.Date)
	require.InDelta(t, 50_000, third.Lumpsum, 1e-9)

	applied := 0.0
	for _, record := range result.Schedule {
		applied += record.Lumpsum
	}
	require.InDelta(t, 50_000, applied, 1e-9)
}

func TestRunConservationPerPeriod(t *testing.T) {
	in := singleTrancheInput(25_000)
	in.Lumpsums = []Lumpsum{{Date: day(2025, 6, 1), Amount: 40_000}}
	result, err := Run(in)
	require.NoError(t, err)
	for _, record := range result.Schedule {
		require.LessOrEqual(t, record.InterestPaid+record.PrincipalPaid, in.BasePayment+record.Lumpsum+1e-9, "period %d", record.Period)
	}
}

func TestRunProportionalWaterfallAcrossTranches(t *testing.T) {
	in := RunInput{
		Tranches: []Tranche{
			{ID: 0, DisbursedOn: day(2025, 1, 1), Principal: 600_000},
			{ID: 1, DisbursedOn: day(2025, 1, 1), Principal: 400_000},
		},
		DefaultAnnualRate: 0.12,
		BasePayment:       5_000,
		StartDate:         day(2025, 1, 1),
		MaxPeriods:        1,
		SimplePhaseYears:  3,
	}
	result, err := Run(in)
	require.NoError(t, err)
	require.Len(t, result.Schedule, 1)

	record := result.Schedule[0]
	// Interest due is 6,000 + 4,000; a 5,000 payment splits 60/40 and no
	// principal is touched.
	require.InDelta(t, 10_000, record.InterestAccrued, 1e-9)
	require.InDelta(t, 5_000, record.InterestPaid, 1e-9)
	require.Zero(t, record.PrincipalPaid)
	require.InDelta(t, 1_000_000, record.EndingPrincipal, 1e-9)
	require.InDelta(t, 5_000, record.EndingSimpleInterest, 1e-9)

	require.InDelta(t, 3_000, result.Tranches[0].AccruedSimpleInterest, 1e-9)
	require.InDelta(t, 2_000, result.Tranches[1].AccruedSimpleInterest, 1e-9)
}

func TestRunRateScheduleSwitchesMidRun(t *testing.T) {
	in := singleTrancheInput(0)
	in.MaxPeriods = 3
	in.DefaultAnnualRate = 0.12
	in.RateSchedule = []RateChange{{EffectiveOn: day(2025, 3, 1), AnnualRate: 0.06}}
	result, err := Run(in)
	require.NoError(t, err)
	require.Len(t, result.Schedule, 3)
	require.InDelta(t, 10_000, result.Schedule[0].InterestAccrued, 1e-6)
	require.InDelta(t, 10_000, result.Schedule[1].InterestAccrued, 1e-6)
	require.InDelta(t, 5_000, result.Schedule[2].InterestAccrued, 1e-6)
}

func TestRunTerminatesEarlyWithoutBankingExcess(t *testing.T) {
	in := RunInput{
		Tranches:          []Tranche{{ID: 0, DisbursedOn: day(2025, 1, 1), Principal: 10_000}},
		DefaultAnnualRate: 0.084,
		BasePayment:       50_000,
		StartDate:         day(2025, 1, 1),
		MaxPeriods:        216,
		SimplePhaseYears:  3,
	}
	result, err := Run(in)
	require.NoError(t, err)
	require.Len(t, result.Schedule, 1)

	record := result.Schedule[0]
	require.InDelta(t, 70, record.InterestPaid, 1e-6)
	require.InDelta(t, 10_000, record.PrincipalPaid, 1e-6)
	require.Less(t, record.EndingPrincipal, BalanceTolerance)
	require.True(t, result.Summary.Retired)
	require.True(t, result.Tranches[0].Closed())
}

func TestRunSnapsStartToNextMonthBoundary(t *testing.T) {
	in := singleTrancheInput(25_000)
	in.StartDate = day(2025, 1, 15)
	in.MaxPeriods = 2
	result, err := Run(in)
	require.NoError(t, err)
	require.Equal(t, day(2025, 2, 1), result.Schedule[0].Date)
	require.Equal(t, day(2025, 3, 1), result.Schedule[1].Date)
}

func TestRunDoesNotMutateCallerTranches(t *testing.T) {
	in := singleTrancheInput(25_000)
	_, err := Run(in)
	require.NoError(t, err)
	require.Equal(t, 1_000_000.0, in.Tranches[0].Principal)
}

func TestRunValidatesInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RunInput)
	}{
		{"zero start date", func(in *RunInput) { in.StartDate = day(0, 1, 1) }},
		{"non-positive max periods", func(in *RunInput) { in.MaxPeriods = 0 }},
		{"non-positive simple phase", func(in *RunInput) { in.SimplePhaseYears = 0 }},
		{"negative base payment", func(in *RunInput) { in.BasePayment = -1 }},
		{"negative default rate", func(in *RunInput) { in.DefaultAnnualRate = -0.01 }},
		{"non-positive tranche principal", func(in *RunInput) { in.Tranches[0].Principal = 0 }},
		{"negative lumpsum", func(in *RunInput) { in.Lumpsums = []Lumpsum{{Date: day(2025, 2, 1), Amount: -5}} }},
		{"negative schedule rate", func(in *RunInput) { in.RateSchedule = []RateChange{{EffectiveOn: day(2025, 2, 1), AnnualRate: -0.1}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := singleTrancheInput(25_000)
			tc.mutate(&in)
			result, err := Run(in)
			require.Error(t, err)
			require.Empty(t, result.Schedule)
		})
	}
}

func TestRunStaggeredTranchesTransitionIndependently(t *testing.T) {
	// The second tranche's simple window is measured from its own
	// disbursement date, a year after the first.
	in := RunInput{
		Tranches: []Tranche{
			{ID: 0, DisbursedOn: day(2025, 1, 1), Principal: 500_000},
			{ID: 1, DisbursedOn: day(2026, 1, 1), Principal: 500_000},
		},
		DefaultAnnualRate: 0.12,
		BasePayment:       0,
		StartDate:         day(2027, 6, 1),
		MaxPeriods:        24,
		SimplePhaseYears:  3,
	}
	// First tranche compounds from 2028-01-01, second from 2029-01-01.
	// Stop at 2028-12-01: only the first has capitalized.
	in.MaxPeriods = 19
	mid, err := Run(in)
	require.NoError(t, err)
	require.Equal(t, day(2028, 12, 1), mid.Schedule[len(mid.Schedule)-1].Date)
	require.Zero(t, mid.Tranches[0].AccruedSimpleInterest)
	require.Greater(t, mid.Tranches[0].Principal, 500_000.0)
	require.Greater(t, mid.Tranches[1].AccruedSimpleInterest, 0.0)
	require.Equal(t, 500_000.0, mid.Tranches[1].Principal)

	// Past both windows every simple-interest balance is exactly zero.
	in.MaxPeriods = 24
	late, err := Run(in)
	require.NoError(t, err)
	require.Zero(t, late.Tranches[0].AccruedSimpleInterest)
	require.Zero(t, late.Tranches[1].AccruedSimpleInterest)
	require.Greater(t, late.Tranches[1].Principal, 500_000.0)
}
