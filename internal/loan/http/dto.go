package loanhttp

import (
	"fmt"
	"time"

	"github.com/trancheflow/trancheflow/internal/loan"
)

const dateLayout = "2006-01-02"

// amountRow is a {date, amount} input row for drawdowns and lumpsums.
type amountRow struct {
	Date   string  `json:"date" validate:"required"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

// rateRow is a {date, rate} input row for the rate schedule.
type rateRow struct {
	EffectiveDate string  `json:"effective_date" validate:"required"`
	AnnualRate    float64 `json:"annual_rate" validate:"gt=0"`
}

// scheduleRequest is the wire form of one amortization run.
type scheduleRequest struct {
	Disbursements     []amountRow `json:"disbursements" validate:"required,min=1,dive"`
	Lumpsums          []amountRow `json:"lumpsums" validate:"omitempty,dive"`
	RateSchedule      []rateRow   `json:"rate_schedule" validate:"omitempty,dive"`
	DefaultAnnualRate float64     `json:"default_annual_rate" validate:"min=0,max=1"`
	BasePayment       float64     `json:"base_payment" validate:"min=0"`
	StartDate         string      `json:"start_date" validate:"required"`
	MaxPeriods        int         `json:"max_periods" validate:"required,gt=0,lte=1200"`
	SimplePhaseYears  int         `json:"simple_phase_years" validate:"required,gt=0,lte=50"`
}

// searchRequest adds the payoff deadline and optional bounds.
type searchRequest struct {
	Schedule      scheduleRequest `json:"schedule" validate:"required"`
	TargetPeriods int             `json:"target_periods" validate:"required,gt=0"`
	LowerBound    int             `json:"lower_bound" validate:"min=0"`
	UpperBound    int             `json:"upper_bound" validate:"min=0"`
}

// sensitivityRequest adds the candidate payment grid.
type sensitivityRequest struct {
	Schedule scheduleRequest `json:"schedule" validate:"required"`
	Payments []float64       `json:"payments" validate:"required,min=1,max=64,dive,min=0"`
}

func (r scheduleRequest) toDomain() (loan.ScheduleRequest, error) {
	out := loan.ScheduleRequest{
		DefaultAnnualRate: r.DefaultAnnualRate,
		BasePayment:       r.BasePayment,
		MaxPeriods:        r.MaxPeriods,
		SimplePhaseYears:  r.SimplePhaseYears,
	}
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return loan.ScheduleRequest{}, err
	}
	out.StartDate = start
	for _, row := range r.Disbursements {
		date, err := parseDate("disbursements.date", row.Date)
		if err != nil {
			return loan.ScheduleRequest{}, err
		}
		out.Disbursements = append(out.Disbursements, loan.Disbursement{Date: date, Amount: row.Amount})
	}
	for _, row := range r.Lumpsums {
		date, err := parseDate("lumpsums.date", row.Date)
		if err != nil {
			return loan.ScheduleRequest{}, err
		}
		out.Lumpsums = append(out.Lumpsums, loan.Lumpsum{Date: date, Amount: row.Amount})
	}
	for _, row := range r.RateSchedule {
		date, err := parseDate("rate_schedule.effective_date", row.EffectiveDate)
		if err != nil {
			return loan.ScheduleRequest{}, err
		}
		out.RateSchedule = append(out.RateSchedule, loan.RateChange{EffectiveOn: date, AnnualRate: row.AnnualRate})
	}
	return out, nil
}

func (r searchRequest) toDomain() (loan.SearchRequest, error) {
	schedule, err := r.Schedule.toDomain()
	if err != nil {
		return loan.SearchRequest{}, err
	}
	return loan.SearchRequest{
		Schedule:      schedule,
		TargetPeriods: r.TargetPeriods,
		LowerBound:    r.LowerBound,
		UpperBound:    r.UpperBound,
	}, nil
}

func (r sensitivityRequest) toDomain() (loan.SensitivityRequest, error) {
	schedule, err := r.Schedule.toDomain()
	if err != nil {
		return loan.SensitivityRequest{}, err
	}
	return loan.SensitivityRequest{Schedule: schedule, Payments: r.Payments}, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected YYYY-MM-DD, got %q", field, value)
	}
	return t, nil
}

// snapshotResponse is the wire form of an async run submission.
type snapshotResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func toSnapshotResponse(snap loan.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:          snap.ID,
		Kind:        string(snap.Kind),
		Status:      string(snap.Status),
		SubmittedAt: snap.SubmittedAt,
	}
}
