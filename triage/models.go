package triage

import "time"

// Gate names one of the five approval criteria evaluated against every signal.
type Gate string

const (
	GateDecision     Gate = "decision"
	GateTime         Gate = "time"
	GateRelationship Gate = "relationship"
	GateImpact       Gate = "impact"
	GateWatch        Gate = "watch"
)

// WorkType classifies the side effect a work item would trigger if approved.
type WorkType string

const (
	TypeDraft    WorkType = "draft"
	TypeCalendar WorkType = "calendar"
	TypeRefund   WorkType = "refund"
)

// Intent is the upstream classification attached to an intake signal.
type Intent string

const (
	IntentDraftReply    Intent = "draft_reply"
	IntentScheduleEvent Intent = "schedule_event"
	IntentRefundRequest Intent = "refund_request"
)

// Status tracks a work item through its lifecycle.
type Status string

const (
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusCompleted        Status = "completed"
	StatusDismissed        Status = "dismissed"
)

// IntakeSignal is a raw candidate produced by the polling integrations.
// Optional fields that are absent simply fail to match their gate.
type IntakeSignal struct {
	ID                string
	Source            string
	Actor             string
	Summary           string
	Context           string
	Preview           string
	Intent            Intent
	RequiresDecision  bool
	DeadlineAt        *time.Time
	RelationshipScore float64
	ImpactScore       float64
	WatchMatched      bool
}

// GateEvaluation records the outcome of one gate against one signal.
type GateEvaluation struct {
	Gate    Gate
	Matched bool
	Reason  string
	Score   int
}

// WorkItem is a gate-justified unit of work awaiting operator review.
// It exists only when at least one gate matched.
type WorkItem struct {
	ID            string
	Type          WorkType
	Source        string
	Actor         string
	Summary       string
	Context       string
	Preview       string
	Gates         []Gate
	PriorityScore int
	Status        Status
}
