package loan

import (
	"context"
	"time"
)

// ScheduleRequest is the raw tabular input plus scalar parameters, as
// handed over by a collaborator (HTTP, job, CLI). Rows are cleaned before
// the run; the engine still re-validates whatever survives cleaning.
type ScheduleRequest struct {
	Disbursements     []Disbursement `json:"disbursements"`
	Lumpsums          []Lumpsum      `json:"lumpsums"`
	RateSchedule      []RateChange   `json:"rate_schedule"`
	DefaultAnnualRate float64        `json:"default_annual_rate"`
	BasePayment       float64        `json:"base_payment"`
	StartDate         time.Time      `json:"start_date"`
	MaxPeriods        int            `json:"max_periods"`
	SimplePhaseYears  int            `json:"simple_phase_years"`
}

// RunInput cleans the raw rows into engine input.
func (r ScheduleRequest) RunInput() RunInput {
	return RunInput{
		Tranches:          TranchesFromDisbursements(r.Disbursements),
		Lumpsums:          CleanLumpsums(r.Lumpsums),
		RateSchedule:      CleanRateSchedule(r.RateSchedule),
		DefaultAnnualRate: r.DefaultAnnualRate,
		BasePayment:       r.BasePayment,
		StartDate:         dateOnly(r.StartDate),
		MaxPeriods:        r.MaxPeriods,
		SimplePhaseYears:  r.SimplePhaseYears,
	}
}

// SearchRequest wraps a schedule request with the payoff deadline and
// optional search bounds. BasePayment on the schedule part is ignored.
type SearchRequest struct {
	Schedule      ScheduleRequest `json:"schedule"`
	TargetPeriods int             `json:"target_periods"`
	LowerBound    int             `json:"lower_bound"`
	UpperBound    int             `json:"upper_bound"`
}

// SensitivityRequest wraps a schedule request with a candidate payment grid.
type SensitivityRequest struct {
	Schedule ScheduleRequest `json:"schedule"`
	Payments []float64       `json:"payments"`
}

// Metrics records engine activity; implemented by observability.Metrics.
type Metrics interface {
	ObserveRun(periods int, retired bool)
	ObserveSearch(trials int)
}

// Service coordinates engine execution with the cache layer.
type Service struct {
	cache   *Cache
	metrics Metrics
}

// NewService wires the engine with a Cache helper and optional metrics.
func NewService(cache *Cache, metrics Metrics) *Service {
	return &Service{cache: cache, metrics: metrics}
}

// BuildSchedule cleans the request, runs the engine and memoises the result
// by content hash. Validation errors abort before any period is computed.
func (s *Service) BuildSchedule(ctx context.Context, req ScheduleRequest) (RunResult, error) {
	in := req.RunInput()
	if err := in.Validate(); err != nil {
		return RunResult{}, err
	}
	var result RunResult
	err := s.cache.FetchJSON(ctx, ScheduleKey(req), &result, func(ctx context.Context) (interface{}, error) {
		res, err := Run(in)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.ObserveRun(res.Summary.MonthsTaken, res.Summary.Retired)
		}
		return res, nil
	})
	if err != nil {
		return RunResult{}, err
	}
	return result, nil
}

// MinimumPayment runs the target-payment search over the cleaned request.
func (s *Service) MinimumPayment(ctx context.Context, req SearchRequest) (SearchResult, error) {
	result, err := FindMinimumPayment(SearchInput{
		Run:           req.Schedule.RunInput(),
		TargetPeriods: req.TargetPeriods,
		LowerBound:    req.LowerBound,
		UpperBound:    req.UpperBound,
	})
	if err != nil {
		return SearchResult{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveSearch(result.Trials)
	}
	return result, nil
}

// PaymentSensitivity evaluates the candidate payment grid concurrently.
func (s *Service) PaymentSensitivity(ctx context.Context, req SensitivityRequest) ([]PaymentOutcome, error) {
	return PaymentSensitivity(ctx, SensitivityInput{
		Run:      req.Schedule.RunInput(),
		Payments: req.Payments,
	})
}
