package leave

import (
	"math"
	"strings"
)

// SkipReason explains why a request does not get a notification.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipUnknownStatus SkipReason = "unknown status"
	SkipAlreadySent   SkipReason = "already notified for status"
	SkipNoRecipient   SkipReason = "no recipient email"
	SkipNoName        SkipReason = "no employee name"
	SkipMissingDates  SkipReason = "missing start or end date"
	SkipInvalidDates  SkipReason = "end date before start date"
)

// NeedsStatusDefault reports whether the request has no status yet.
func NeedsStatusDefault(req VacationRequest) bool {
	return strings.TrimSpace(string(req.Status)) == ""
}

// Recipient picks the override address on the request, falling back to the
// employee's contact email.
func Recipient(req VacationRequest, emp Employee) string {
	if to := strings.TrimSpace(req.EmailOverride); to != "" {
		return to
	}
	return strings.TrimSpace(emp.Email)
}

// DisplayName prefers the employee record and falls back to the name already
// stored on the request.
func DisplayName(req VacationRequest, emp Employee) string {
	if n := strings.TrimSpace(emp.Name); n != "" {
		return n
	}
	return strings.TrimSpace(req.EmployeeName)
}

// NotificationEligible decides whether a status email is owed for req.
func NotificationEligible(req VacationRequest, emp Employee) (bool, SkipReason) {
	if !req.Status.Known() {
		return false, SkipUnknownStatus
	}
	if req.Status.Same(req.EmailSentMarker) {
		return false, SkipAlreadySent
	}
	if Recipient(req, emp) == "" {
		return false, SkipNoRecipient
	}
	if DisplayName(req, emp) == "" {
		return false, SkipNoName
	}
	if !req.HasDates() {
		return false, SkipMissingDates
	}
	if civilDay(*req.End).Before(civilDay(*req.Start)) {
		return false, SkipInvalidDates
	}
	return true, SkipNone
}

// RequestPatch lists the request fields a pass wants to write. Nil means
// leave the stored value alone.
type RequestPatch struct {
	Status           *Status
	EmployeeName     *string
	RequestedDays    *float64
	RemainingBalance *float64
}

// Empty reports whether the patch writes nothing.
func (p RequestPatch) Empty() bool {
	return p.Status == nil && p.EmployeeName == nil && p.RequestedDays == nil && p.RemainingBalance == nil
}

// Diff builds the patch that brings req in line with the computed values,
// skipping fields whose stored value already matches.
func Diff(req VacationRequest, name string, bal Balance) RequestPatch {
	var p RequestPatch
	if NeedsStatusDefault(req) {
		s := StatusUnderReview
		p.Status = &s
	}
	if name != "" && name != strings.TrimSpace(req.EmployeeName) {
		n := name
		p.EmployeeName = &n
	}
	if bal.Requested != nil && !sameNumber(req.RequestedDays, *bal.Requested) {
		p.RequestedDays = bal.Requested
	}
	if bal.Remaining != nil && !sameNumber(req.RemainingBalance, *bal.Remaining) {
		p.RemainingBalance = bal.Remaining
	}
	return p
}

// Apply copies the patched values onto req.
func (p RequestPatch) Apply(req *VacationRequest) {
	if p.Status != nil {
		req.Status = *p.Status
	}
	if p.EmployeeName != nil {
		req.EmployeeName = *p.EmployeeName
	}
	if p.RequestedDays != nil {
		req.RequestedDays = p.RequestedDays
	}
	if p.RemainingBalance != nil {
		req.RemainingBalance = p.RemainingBalance
	}
}

func sameNumber(stored *float64, v float64) bool {
	return stored != nil && math.Abs(*stored-v) < 1e-9
}
