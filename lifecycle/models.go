package lifecycle

import (
	"time"

	"triageflow/action"
	"triageflow/triage"
)

// Rating is the operator verdict attached to a processed work item.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
)

// Item is the slice of a work item the lifecycle operations need: the status
// row plus its single proposed action and any recorded execution.
type Item struct {
	ID             string
	UserID         string
	Status         triage.Status
	ProposalID     string
	ProposalStatus string
	Payload        action.Payload
	Execution      *action.ExecutionResult
	UpdatedAt      time.Time
}

// ApproveParams drives one approve call.
type ApproveParams struct {
	ItemID          string
	Now             time.Time
	IdempotencyKey  string
	PayloadOverride action.Payload
}

// ApproveResult reports the outcome, flagging idempotent replays.
type ApproveResult struct {
	ItemID     string
	Idempotent bool
	Payload    action.Payload
	Execution  action.ExecutionResult
}

// DismissResult reports a dismissal, flagging idempotent replays.
type DismissResult struct {
	ItemID      string
	Idempotent  bool
	DismissedAt time.Time
}

// FeedbackParams drives one feedback call. Note may be empty.
type FeedbackParams struct {
	ItemID string
	Rating Rating
	Note   string
	Now    time.Time
}

// FeedbackResult reports the recorded feedback.
type FeedbackResult struct {
	ItemID  string
	Rating  Rating
	NotedAt time.Time
}
