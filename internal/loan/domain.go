// Package loan implements multi-tranche amortization: per-period interest
// accrual under a simple-then-compound regime, a pooled payment waterfall,
// and a search for the minimum payment retiring the loan within a horizon.
package loan

import (
	"errors"
	"math"
	"time"
)

// BalanceTolerance is the residual below which a balance counts as retired.
const BalanceTolerance = 1e-8

// DefaultSearchUpperBound caps the target-payment binary search range.
const DefaultSearchUpperBound = 300_000

// Tranche tracks one disbursement and its mutable repayment state.
type Tranche struct {
	ID                    int       `json:"id"`
	DisbursedOn           time.Time `json:"disbursed_on"`
	Principal             float64   `json:"principal"`
	AccruedSimpleInterest float64   `json:"accrued_simple_interest"`
}

// Closed reports whether the tranche has no further interest or principal
// activity. Closed tranches stay in the collection but contribute zero.
func (t Tranche) Closed() bool {
	return t.Principal <= BalanceTolerance && t.AccruedSimpleInterest <= BalanceTolerance
}

// simplePhaseEnd is the first date on which unpaid interest compounds.
func (t Tranche) simplePhaseEnd(years int) time.Time {
	return t.DisbursedOn.AddDate(years, 0, 0)
}

// Disbursement is one raw loan drawdown row.
type Disbursement struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// Lumpsum is an irregular extra payment applied on an exact period date.
type Lumpsum struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// RateChange sets the annual rate from its effective date onward.
type RateChange struct {
	EffectiveOn time.Time `json:"effective_on"`
	AnnualRate  float64   `json:"annual_rate"`
}

// PeriodRecord summarises one month of the schedule. Records are immutable
// once emitted.
type PeriodRecord struct {
	Period               int       `json:"period"`
	Date                 time.Time `json:"date"`
	InterestAccrued      float64   `json:"interest_accrued"`
	InterestPaid         float64   `json:"interest_paid"`
	PrincipalPaid        float64   `json:"principal_paid"`
	Lumpsum              float64   `json:"lumpsum"`
	EndingPrincipal      float64   `json:"ending_principal"`
	EndingSimpleInterest float64   `json:"ending_simple_interest"`
}

// RunInput carries cleaned records plus scalar parameters for one engine run.
type RunInput struct {
	Tranches          []Tranche
	Lumpsums          []Lumpsum
	RateSchedule      []RateChange
	DefaultAnnualRate float64
	BasePayment       float64
	StartDate         time.Time
	MaxPeriods        int
	SimplePhaseYears  int
}

// Validate rejects inputs the engine must not run with. Malformed rows are
// input errors, never silently dropped at this layer.
func (in RunInput) Validate() error {
	if in.StartDate.IsZero() {
		return errors.New("loan: start date required")
	}
	if in.MaxPeriods <= 0 {
		return errors.New("loan: max periods must be positive")
	}
	if in.SimplePhaseYears <= 0 {
		return errors.New("loan: simple phase years must be positive")
	}
	if !isFiniteNonNegative(in.DefaultAnnualRate) {
		return errors.New("loan: default annual rate must be a non-negative number")
	}
	if !isFiniteNonNegative(in.BasePayment) {
		return errors.New("loan: base payment must be a non-negative number")
	}
	for _, t := range in.Tranches {
		if t.DisbursedOn.IsZero() {
			return errors.New("loan: tranche disbursement date required")
		}
		if !isFinite(t.Principal) || t.Principal <= 0 {
			return errors.New("loan: tranche principal must be positive")
		}
		if !isFiniteNonNegative(t.AccruedSimpleInterest) {
			return errors.New("loan: tranche accrued interest must be non-negative")
		}
	}
	for _, l := range in.Lumpsums {
		if l.Date.IsZero() {
			return errors.New("loan: lumpsum date required")
		}
		if !isFinite(l.Amount) || l.Amount <= 0 {
			return errors.New("loan: lumpsum amount must be positive")
		}
	}
	for _, rc := range in.RateSchedule {
		if rc.EffectiveOn.IsZero() {
			return errors.New("loan: rate effective date required")
		}
		if !isFiniteNonNegative(rc.AnnualRate) {
			return errors.New("loan: annual rate must be a non-negative number")
		}
	}
	return nil
}

// ScheduleSummary aggregates a finished run.
type ScheduleSummary struct {
	TotalInterestPaid  float64 `json:"total_interest_paid"`
	TotalPrincipalPaid float64 `json:"total_principal_paid"`
	MonthsTaken        int     `json:"months_taken"`
	Retired            bool    `json:"retired"`
}

// RunResult is the schedule plus final tranche state. Exhausting MaxPeriods
// with residual balance is a valid result; callers inspect Summary.Retired.
type RunResult struct {
	Schedule []PeriodRecord  `json:"schedule"`
	Tranches []Tranche       `json:"tranches"`
	Summary  ScheduleSummary `json:"summary"`
}

// SearchInput configures the minimum-payment search. BasePayment on Run is
// overwritten per trial. Zero bounds select [0, DefaultSearchUpperBound].
type SearchInput struct {
	Run           RunInput
	TargetPeriods int
	LowerBound    int
	UpperBound    int
}

// Validate checks search parameters beyond what each trial run validates.
func (in SearchInput) Validate() error {
	if in.TargetPeriods <= 0 {
		return errors.New("loan: target periods must be positive")
	}
	if in.LowerBound < 0 {
		return errors.New("loan: search lower bound must be non-negative")
	}
	if in.UpperBound < 0 {
		return errors.New("loan: search upper bound must be non-negative")
	}
	if in.UpperBound > 0 && in.LowerBound > in.UpperBound {
		return errors.New("loan: search lower bound exceeds upper bound")
	}
	return nil
}

// SearchResult reports the smallest payment found to satisfy the target.
// Found=false means no payment in range succeeded; Payment then holds the
// upper bound, a normal outcome the caller interprets.
type SearchResult struct {
	Payment int  `json:"payment"`
	Found   bool `json:"found"`
	Trials  int  `json:"trials"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isFiniteNonNegative(v float64) bool {
	return isFinite(v) && v >= 0
}
