package models

// Domain models matching the ledger schema in db/migrations.

// Notification is a delivered status email. (RequestID, Status) is unique.
type Notification struct {
	ID        int64  `json:"id" db:"id"`
	RequestID string `json:"request_id" db:"request_id"`
	Status    string `json:"status" db:"status"`
	Recipient string `json:"recipient" db:"recipient"`
	RunID     string `json:"run_id,omitempty" db:"run_id"`
	SentAt    int64  `json:"sent_at" db:"sent_at"`
}

// SyncRun is the summary of one pass over the vacation database.
type SyncRun struct {
	ID       string `json:"id" db:"id"`
	Trigger  string `json:"trigger" db:"source"`
	Started  int64  `json:"started" db:"started"`
	Finished *int64 `json:"finished,omitempty" db:"finished"`
	Fetched  int    `json:"fetched" db:"fetched"`
	Updated  int    `json:"updated" db:"updated"`
	Notified int    `json:"notified" db:"notified"`
	Repaired int    `json:"repaired" db:"repaired"`
	Skipped  int    `json:"skipped" db:"skipped"`
	Failed   int    `json:"failed" db:"failed"`
	Error    string `json:"error,omitempty" db:"error"`
}
