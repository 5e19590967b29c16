package worklog

import "time"

// Phase names the lifecycle operation a workflow run was recorded for.
type Phase string

const (
	PhaseIngest   Phase = "ingest"
	PhaseApprove  Phase = "approve"
	PhaseDismiss  Phase = "dismiss"
	PhaseFeedback Phase = "feedback"
)

// Event is one ordered entry inside a run.
type Event struct {
	ID        string
	RunID     string
	Kind      string
	Payload   map[string]any
	CreatedAt time.Time
}

// TimelineEntry is a run joined with its ordered events, newest run first.
type TimelineEntry struct {
	RunID  string
	Phase  Phase
	Status string
	At     time.Time
	Events []Event
}

// AuditEntry is the coarser operational record kept alongside workflow runs.
type AuditEntry struct {
	ID         string
	UserID     string
	Action     string
	TargetType string
	TargetID   string
	Payload    map[string]any
	CreatedAt  time.Time
}
