// Package leave holds the vacation request and employee records and the
// bookkeeping rules applied to them on every sync pass.
package leave

import (
	"strings"
	"time"
)

type Status string

const (
	StatusUnset       Status = ""
	StatusUnderReview Status = "Under Review"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
)

var knownStatuses = []Status{StatusUnderReview, StatusApproved, StatusRejected}

// ParseStatus maps a stored status label to its canonical form. Matching
// ignores case and surrounding whitespace. Unknown labels are returned
// trimmed but otherwise unchanged.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	for _, k := range knownStatuses {
		if strings.EqualFold(s, string(k)) {
			return k
		}
	}
	return Status(s)
}

// Known reports whether s is one of the three statuses a notification exists for.
func (s Status) Known() bool {
	for _, k := range knownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Same compares two status labels the way ParseStatus normalizes them.
func (s Status) Same(other string) bool {
	return ParseStatus(string(s)) == ParseStatus(other)
}

// VacationRequest is one row of the vacation database.
type VacationRequest struct {
	ID               string     `json:"id"`
	NationalID       string     `json:"national_id"`
	Start            *time.Time `json:"start,omitempty"`
	End              *time.Time `json:"end,omitempty"`
	RequestedDays    *float64   `json:"requested_days,omitempty"`
	Status           Status     `json:"status"`
	EmailSentMarker  string     `json:"email_sent"`
	EmailOverride    string     `json:"email,omitempty"`
	EmployeeName     string     `json:"employee_name,omitempty"`
	RemainingBalance *float64   `json:"remaining_balance,omitempty"`
}

// HasDates reports whether both the start and end date are present.
func (r VacationRequest) HasDates() bool {
	return r.Start != nil && r.End != nil
}

// Employee is one row of the employees database.
type Employee struct {
	ID               string   `json:"id"`
	NationalID       string   `json:"national_id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	AccruedBalance   *float64 `json:"accrued_balance,omitempty"`
	RemainingBalance *float64 `json:"remaining_balance,omitempty"`
}

// Float returns a pointer to v. Handy for optional numeric fields.
func Float(v float64) *float64 { return &v }
