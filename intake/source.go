package intake

import (
	"context"
	"time"

	"triageflow/triage"
)

// defaultLookback bounds the first poll when no cursor has been recorded.
const defaultLookback = 7 * 24 * time.Hour

// PollQuery carries the incremental-poll window and watch configuration.
type PollQuery struct {
	Cursor        string
	Now           time.Time
	WatchKeywords []string
}

// PollResult is one source's contribution to a queue refresh.
type PollResult struct {
	NextCursor string
	Signals    []triage.IntakeSignal
}

// Source is a polled upstream such as a mailbox or a calendar.
type Source interface {
	Name() string
	Poll(ctx context.Context, query PollQuery) (PollResult, error)
}

// normalizeCursor parses an RFC 3339 cursor, falling back to the lookback
// window when the cursor is absent or unparseable.
func normalizeCursor(cursor string, now time.Time) time.Time {
	if cursor == "" {
		return now.Add(-defaultLookback)
	}
	parsed, err := time.Parse(time.RFC3339, cursor)
	if err != nil {
		return now.Add(-defaultLookback)
	}
	return parsed
}
