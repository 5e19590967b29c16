package triage

import (
	"sort"
	"time"
)

func resolveType(intent Intent) WorkType {
	switch intent {
	case IntentScheduleEvent:
		return TypeCalendar
	case IntentRefundRequest:
		return TypeRefund
	default:
		return TypeDraft
	}
}

// BuildWorkItem derives a queued work item from a signal. The second return
// is false when no gate matched, which is an expected outcome, not an error.
func BuildWorkItem(signal IntakeSignal, now time.Time) (WorkItem, bool) {
	evaluations := EvaluateGates(signal, now)

	var gates []Gate
	score := 0
	for _, evaluation := range evaluations {
		if !evaluation.Matched {
			continue
		}
		gates = append(gates, evaluation.Gate)
		score += evaluation.Score
	}
	if len(gates) == 0 {
		return WorkItem{}, false
	}

	return WorkItem{
		ID:            signal.ID,
		Type:          resolveType(signal.Intent),
		Source:        signal.Source,
		Actor:         signal.Actor,
		Summary:       signal.Summary,
		Context:       signal.Context,
		Preview:       signal.Preview,
		Gates:         gates,
		PriorityScore: score,
		Status:        StatusAwaitingApproval,
	}, true
}

// BuildQueue converts a batch of signals into a ranked approval queue.
// Items are ordered by priority descending; ties keep input order.
func BuildQueue(signals []IntakeSignal, now time.Time) []WorkItem {
	items := []WorkItem{}
	for _, signal := range signals {
		if item, ok := BuildWorkItem(signal, now); ok {
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PriorityScore > items[j].PriorityScore
	})

	return items
}
