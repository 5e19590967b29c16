package intake

import (
	"context"
	"strings"
	"time"

	"triageflow/triage"
)

// MockSource serves a fixed set of demo signals so the full pipeline can run
// without Google credentials. It stands in for the Gmail and Calendar pollers
// in development and tests.
type MockSource struct{}

func NewMockSource() *MockSource { return &MockSource{} }

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Poll(ctx context.Context, query PollQuery) (PollResult, error) {
	if err := ctx.Err(); err != nil {
		return PollResult{}, err
	}

	signals := sampleSignals()
	for i := range signals {
		if matchesWatch(signals[i], query.WatchKeywords) {
			signals[i].WatchMatched = true
		}
	}
	return PollResult{
		NextCursor: query.Now.UTC().Format(time.RFC3339),
		Signals:    signals,
	}, nil
}

func matchesWatch(signal triage.IntakeSignal, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	haystack := strings.ToLower(signal.Summary + " " + signal.Preview)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

func sampleSignals() []triage.IntakeSignal {
	boardDeadline := time.Date(2026, 1, 22, 14, 0, 0, 0, time.UTC)
	refundDeadline := time.Date(2026, 1, 21, 9, 0, 0, 0, time.UTC)

	return []triage.IntakeSignal{
		{
			ID:                "w_renewal",
			Source:            "Gmail",
			Actor:             "David Kim",
			Summary:           "Sent over the signed term sheet and asked for countersignature confirmation.",
			Context:           "Relationship context: strategic customer. Tone needs executive confidence.",
			Preview:           "Hi David, thanks for sending this through. I reviewed the terms and we are aligned to countersign by EOD...",
			Intent:            triage.IntentDraftReply,
			RequiresDecision:  true,
			RelationshipScore: 0.92,
			ImpactScore:       0.88,
			WatchMatched:      true,
		},
		{
			ID:                "w_board",
			Source:            "Google Calendar",
			Actor:             "Rachel Torres",
			Summary:           "Invited you to Quarterly Board Sync and requested updated agenda focus.",
			Context:           "Time context: meeting starts this week. Requires your decision on attendance + prep.",
			Preview:           "Proposed slot: Wed Jan 22, 2:00 PM. Agenda draft includes growth metrics and GTM follow-up.",
			Intent:            triage.IntentScheduleEvent,
			RequiresDecision:  true,
			DeadlineAt:        &boardDeadline,
			RelationshipScore: 0.81,
			ImpactScore:       0.72,
		},
		{
			ID:                "w_refund",
			Source:            "Gmail",
			Actor:             "Joe",
			Summary:           "Requested a refund because Notion integration is still unavailable.",
			Context:           "Impact context: customer trust risk if unresolved within 24 hours.",
			Preview:           "Refund amount: $20. Draft includes apology, refund timing, and integration roadmap update.",
			Intent:            triage.IntentRefundRequest,
			DeadlineAt:        &refundDeadline,
			RelationshipScore: 0.34,
			ImpactScore:       0.78,
		},
		{
			ID:                "w_digest_only",
			Source:            "Gmail",
			Actor:             "Newsletter Bot",
			Summary:           "Shared weekly industry digest.",
			Context:           "No action required.",
			Preview:           "Top 10 product launches this week.",
			Intent:            triage.IntentDraftReply,
			RelationshipScore: 0.1,
			ImpactScore:       0.1,
		},
	}
}
