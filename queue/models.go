package queue

import (
	"time"

	"triageflow/action"
	"triageflow/triage"
)

// UpsertParams enumerates the writes performed for one ingested signal inside
// a single transaction.
type UpsertParams struct {
	Item        triage.WorkItem
	Evaluations []triage.GateEvaluation
	Payload     action.Payload
	UserID      string
	Now         time.Time
}

// StoredItem mirrors the work_items row joined with its proposed action.
type StoredItem struct {
	triage.WorkItem
	UserID    string
	Payload   action.Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}
