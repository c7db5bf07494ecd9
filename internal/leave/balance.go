package leave

import (
	"math"
	"time"
)

// Balance is the leave bookkeeping computed for one request.
type Balance struct {
	Requested   *float64 `json:"requested,omitempty"`
	ApprovedSum float64  `json:"approved_sum"`
	Remaining   *float64 `json:"remaining,omitempty"`
}

// RequestedDays counts calendar days from start to end, both inclusive.
// It returns nil when a date is missing or end precedes start.
func RequestedDays(start, end *time.Time) *float64 {
	if start == nil || end == nil {
		return nil
	}
	s := civilDay(*start)
	e := civilDay(*end)
	if e.Before(s) {
		return nil
	}
	days := math.Round(e.Sub(s).Hours()/24) + 1
	return &days
}

// RemainingBalance is accrued minus the days already approved. The result is
// nil when either operand is missing or not a finite number.
func RemainingBalance(accrued *float64, approvedSum float64) *float64 {
	if accrued == nil || !finite(*accrued) || !finite(approvedSum) {
		return nil
	}
	r := *accrued - approvedSum
	return &r
}

// SumApproved adds up the requested days of every approved request. The
// stored day count is preferred; requests without one fall back to their
// dates. Entries that resolve to nothing finite add zero.
func SumApproved(requests []VacationRequest) float64 {
	var sum float64
	for _, r := range requests {
		if r.Status != StatusApproved {
			continue
		}
		days := r.RequestedDays
		if days == nil || !finite(*days) {
			days = RequestedDays(r.Start, r.End)
		}
		if days == nil || !finite(*days) {
			continue
		}
		sum += *days
	}
	return sum
}

// Compute produces the balance of req given the employee's accrued days and
// the approved requests on record for the same national ID.
func Compute(req VacationRequest, accrued *float64, approved []VacationRequest) Balance {
	requested := RequestedDays(req.Start, req.End)
	// a stored day count only stands in when a date is missing
	if requested == nil && !req.HasDates() && req.RequestedDays != nil && finite(*req.RequestedDays) {
		requested = req.RequestedDays
	}
	sum := SumApproved(approved)
	return Balance{
		Requested:   requested,
		ApprovedSum: sum,
		Remaining:   RemainingBalance(accrued, sum),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
