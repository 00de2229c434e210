package loan

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// PaymentOutcome reports one sensitivity trial.
type PaymentOutcome struct {
	Payment           float64 `json:"payment"`
	MonthsTaken       int     `json:"months_taken"`
	Retired           bool    `json:"retired"`
	TotalInterestPaid float64 `json:"total_interest_paid"`
}

// SensitivityInput evaluates the engine across candidate base payments.
type SensitivityInput struct {
	Run      RunInput
	Payments []float64
}

// Validate checks the candidate payment grid.
func (in SensitivityInput) Validate() error {
	if len(in.Payments) == 0 {
		return errors.New("loan: at least one candidate payment required")
	}
	for _, p := range in.Payments {
		if !isFiniteNonNegative(p) {
			return errors.New("loan: candidate payment must be a non-negative number")
		}
	}
	return nil
}

const sensitivityConcurrency = 4

// PaymentSensitivity runs one full engine pass per candidate payment.
// Trials are mutually independent, each on copied tranche state, so they
// run concurrently. Results keep the order of the input grid.
func PaymentSensitivity(ctx context.Context, in SensitivityInput) ([]PaymentOutcome, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := in.Run.Validate(); err != nil {
		return nil, err
	}

	outcomes := make([]PaymentOutcome, len(in.Payments))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sensitivityConcurrency)
	for i, payment := range in.Payments {
		i, payment := i, payment
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trial := in.Run
			trial.BasePayment = payment
			result, err := Run(trial)
			if err != nil {
				return err
			}
			outcomes[i] = PaymentOutcome{
				Payment:           payment,
				MonthsTaken:       result.Summary.MonthsTaken,
				Retired:           result.Summary.Retired,
				TotalInterestPaid: result.Summary.TotalInterestPaid,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
