package triage

import (
	"testing"
	"time"
)

func TestBuildWorkItem_SingleGateScore(t *testing.T) {
	item, ok := BuildWorkItem(IntakeSignal{
		ID:               "w1",
		Intent:           IntentDraftReply,
		RequiresDecision: true,
	}, testNow)
	if !ok {
		t.Fatalf("expected a work item")
	}

	if len(item.Gates) != 1 || item.Gates[0] != GateDecision {
		t.Errorf("expected gates=[decision], got %v", item.Gates)
	}
	if item.PriorityScore != 5 {
		t.Errorf("expected priority score 5, got %d", item.PriorityScore)
	}
	if item.Status != StatusAwaitingApproval {
		t.Errorf("expected status awaiting_approval, got %q", item.Status)
	}
}

func TestBuildWorkItem_NoMatchDropped(t *testing.T) {
	if _, ok := BuildWorkItem(IntakeSignal{ID: "quiet", Intent: IntentDraftReply}, testNow); ok {
		t.Fatalf("expected no work item for an unmatched signal")
	}
}

func TestBuildWorkItem_TypeFromIntent(t *testing.T) {
	cases := []struct {
		intent Intent
		want   WorkType
	}{
		{IntentDraftReply, TypeDraft},
		{IntentScheduleEvent, TypeCalendar},
		{IntentRefundRequest, TypeRefund},
	}

	for _, tc := range cases {
		item, ok := BuildWorkItem(IntakeSignal{ID: "x", Intent: tc.intent, RequiresDecision: true}, testNow)
		if !ok {
			t.Fatalf("expected item for intent %q", tc.intent)
		}
		if item.Type != tc.want {
			t.Errorf("intent %q: expected type %q, got %q", tc.intent, tc.want, item.Type)
		}
	}
}

func TestBuildWorkItem_DecisionAndDeadline(t *testing.T) {
	deadline := testNow.Add(time.Hour)
	item, ok := BuildWorkItem(IntakeSignal{
		ID:               "w1",
		Intent:           IntentDraftReply,
		RequiresDecision: true,
		DeadlineAt:       &deadline,
	}, testNow)
	if !ok {
		t.Fatalf("expected a work item")
	}

	if len(item.Gates) != 2 || item.Gates[0] != GateDecision || item.Gates[1] != GateTime {
		t.Errorf("expected gates=[decision time], got %v", item.Gates)
	}
	if item.PriorityScore != 9 {
		t.Errorf("expected priority score 9, got %d", item.PriorityScore)
	}
}

func TestBuildQueue_RanksByPriority(t *testing.T) {
	signals := []IntakeSignal{
		{ID: "b", Intent: IntentDraftReply, RequiresDecision: true},
		{ID: "a", Intent: IntentDraftReply, RequiresDecision: true, ImpactScore: 0.9},
		{ID: "dropped", Intent: IntentDraftReply},
	}

	queue := BuildQueue(signals, testNow)
	if len(queue) != 2 {
		t.Fatalf("expected 2 items, got %d", len(queue))
	}
	if queue[0].ID != "a" || queue[1].ID != "b" {
		t.Errorf("expected order [a b], got [%s %s]", queue[0].ID, queue[1].ID)
	}
}

func TestBuildQueue_StableOnTies(t *testing.T) {
	signals := []IntakeSignal{
		{ID: "first", Intent: IntentDraftReply, RequiresDecision: true},
		{ID: "second", Intent: IntentDraftReply, RequiresDecision: true},
		{ID: "third", Intent: IntentDraftReply, RequiresDecision: true},
	}

	queue := BuildQueue(signals, testNow)
	if len(queue) != 3 {
		t.Fatalf("expected 3 items, got %d", len(queue))
	}
	for i, want := range []string{"first", "second", "third"} {
		if queue[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, queue[i].ID)
		}
	}
}
