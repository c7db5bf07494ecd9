package mailer

import "github.com/garnizeh/leavesync/internal/leave"

// Template is the message sent when a request reaches a given status.
type Template struct {
	Status  leave.Status
	Subject string
	HTML    string
	Text    string
}

var templates = map[leave.Status]Template{
	leave.StatusUnderReview: {
		Status:  leave.StatusUnderReview,
		Subject: "Your vacation request is under review",
		HTML: `<p>Dear {{.Name}},</p>
<p>We received your vacation request from <strong>{{.Start}}</strong> to <strong>{{.End}}</strong>{{if .RequestedDays}} ({{.RequestedDays}} days){{end}}.</p>
<p>It is now under review. You will get another email once a decision is made.</p>
{{if .RemainingBalance}}<p>Remaining balance: {{.RemainingBalance}} days.</p>{{end}}
<p>Human Resources</p>`,
		Text: `Dear {{.Name}},

We received your vacation request from {{.Start}} to {{.End}}{{if .RequestedDays}} ({{.RequestedDays}} days){{end}}.
It is now under review. You will get another email once a decision is made.
{{if .RemainingBalance}}Remaining balance: {{.RemainingBalance}} days.
{{end}}
Human Resources`,
	},
	leave.StatusApproved: {
		Status:  leave.StatusApproved,
		Subject: "Your vacation request has been approved",
		HTML: `<p>Dear {{.Name}},</p>
<p>Your vacation request from <strong>{{.Start}}</strong> to <strong>{{.End}}</strong>{{if .RequestedDays}} ({{.RequestedDays}} days){{end}} has been <strong>approved</strong>.</p>
{{if .RemainingBalance}}<p>Remaining balance: {{.RemainingBalance}} days.</p>{{end}}
<p>Enjoy your time off.</p>
<p>Human Resources</p>`,
		Text: `Dear {{.Name}},

Your vacation request from {{.Start}} to {{.End}}{{if .RequestedDays}} ({{.RequestedDays}} days){{end}} has been approved.
{{if .RemainingBalance}}Remaining balance: {{.RemainingBalance}} days.
{{end}}Enjoy your time off.

Human Resources`,
	},
	leave.StatusRejected: {
		Status:  leave.StatusRejected,
		Subject: "Your vacation request has been rejected",
		HTML: `<p>Dear {{.Name}},</p>
<p>We are sorry to inform you that your vacation request from <strong>{{.Start}}</strong> to <strong>{{.End}}</strong> has been <strong>rejected</strong>.</p>
<p>Please contact your manager for details.</p>
{{if .RemainingBalance}}<p>Remaining balance: {{.RemainingBalance}} days.</p>{{end}}
<p>Human Resources</p>`,
		Text: `Dear {{.Name}},

We are sorry to inform you that your vacation request from {{.Start}} to {{.End}} has been rejected.
Please contact your manager for details.
{{if .RemainingBalance}}Remaining balance: {{.RemainingBalance}} days.
{{end}}
Human Resources`,
	},
}

// Select returns the template for status. Statuses without a notification
// return false.
func Select(status leave.Status) (Template, bool) {
	t, ok := templates[leave.ParseStatus(string(status))]
	return t, ok
}
