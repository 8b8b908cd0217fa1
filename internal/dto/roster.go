package dto

import "time"

// RosterSyncFailure records one roster entry that could not be reconciled.
type RosterSyncFailure struct {
	StudentID string `json:"studentId"`
	Reason    string `json:"reason"`
}

// RosterSyncReport summarises a reconciliation run.
type RosterSyncReport struct {
	Fetched    int                 `json:"fetched"`
	Upserted   int                 `json:"upserted"`
	Deleted    int64               `json:"deleted"`
	Tolerant   bool                `json:"tolerant"`
	Failures   []RosterSyncFailure `json:"failures,omitempty"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
}

// RosterSyncAccepted acknowledges an on-demand sync request.
type RosterSyncAccepted struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}
