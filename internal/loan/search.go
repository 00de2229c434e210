package loan

// FindMinimumPayment binary-searches integer payment amounts for the
// smallest base payment that fully retires the loan at or before
// TargetPeriods. Each trial is a full engine run on copied state. Payoff
// time is assumed monotonic in the payment amount; that holds for the
// inputs seen in practice but is not proven, so the result is an
// approximation rather than a guaranteed optimum.
func FindMinimumPayment(in SearchInput) (SearchResult, error) {
	if err := in.Validate(); err != nil {
		return SearchResult{}, err
	}
	if err := in.Run.Validate(); err != nil {
		return SearchResult{}, err
	}

	lo, hi := in.LowerBound, in.UpperBound
	if hi == 0 {
		hi = DefaultSearchUpperBound
	}
	upper := hi

	best := -1
	trials := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		trial := in.Run
		trial.BasePayment = float64(mid)
		result, err := Run(trial)
		if err != nil {
			return SearchResult{}, err
		}
		trials++
		if retiredWithin(result, in.TargetPeriods) {
			best = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}

	if best < 0 {
		return SearchResult{Payment: upper, Found: false, Trials: trials}, nil
	}
	return SearchResult{Payment: best, Found: true, Trials: trials}, nil
}

// retiredWithin treats an empty schedule the same as a miss.
func retiredWithin(result RunResult, targetPeriods int) bool {
	if len(result.Schedule) == 0 {
		return false
	}
	return result.Summary.Retired && result.Summary.MonthsTaken <= targetPeriods
}
