package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"triageflow/runtime"
	"triageflow/triage"
)

// QueueWriter persists triaged signals. Failed items are skipped and reported
// through the joined error while the rest commit.
type QueueWriter interface {
	PersistSignals(ctx context.Context, signals []triage.IntakeSignal, userID string, now time.Time) ([]triage.WorkItem, error)
}

// Ingestor polls every configured source concurrently and feeds the results
// into the decision queue. It backs the runtime.ingest command.
type Ingestor struct {
	sources []Source
	queue   QueueWriter
	logger  *slog.Logger
	now     func() time.Time
}

func NewIngestor(sources []Source, queue QueueWriter, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		sources: sources,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the ingestor clock, mainly for tests.
func (i *Ingestor) WithClock(now func() time.Time) *Ingestor {
	i.now = now
	return i
}

// Ingest polls all sources, persists whatever triage admits to the queue, and
// returns the advanced cursor. A single failing source aborts the refresh so
// the cursor never skips past unread signals.
func (i *Ingestor) Ingest(ctx context.Context, userID, cursor string, watchKeywords []string) (runtime.IngestResult, error) {
	now := i.now().UTC()
	query := PollQuery{Cursor: cursor, Now: now, WatchKeywords: watchKeywords}

	var (
		mu      sync.Mutex
		signals []triage.IntakeSignal
	)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, source := range i.sources {
		group.Go(func() error {
			result, err := source.Poll(groupCtx, query)
			if err != nil {
				return fmt.Errorf("intake: poll %s: %w", source.Name(), err)
			}
			mu.Lock()
			signals = append(signals, result.Signals...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return runtime.IngestResult{}, err
	}

	items, err := i.queue.PersistSignals(ctx, signals, userID, now)
	if err != nil {
		if len(items) == 0 {
			return runtime.IngestResult{}, fmt.Errorf("intake: persist signals: %w", err)
		}
		i.logger.Warn("some signals failed to persist",
			"userId", userID,
			"persisted", len(items),
			"polled", len(signals),
			"error", err)
	}

	i.logger.Info("queue refreshed",
		"userId", userID,
		"sources", len(i.sources),
		"polled", len(signals),
		"queued", len(items))

	return runtime.IngestResult{
		Cursor:      now.Format(time.RFC3339),
		QueuedCount: len(items),
	}, nil
}
