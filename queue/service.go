package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"triageflow/action"
	"triageflow/triage"
	"triageflow/worklog"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WorkflowWriter appends a workflow run inside the active transaction.
type WorkflowWriter interface {
	AppendRun(ctx context.Context, tx pgx.Tx, input worklog.RunInput, now time.Time) (string, error)
}

// AuditWriter appends an audit entry inside the active transaction.
type AuditWriter interface {
	AppendAudit(ctx context.Context, tx pgx.Tx, input worklog.AuditInput, now time.Time) error
}

// Service turns intake signals into persisted, ranked work items.
type Service struct {
	pool     TxBeginner
	repo     Repository
	workflow WorkflowWriter
	audit    AuditWriter
}

func NewService(pool TxBeginner, repo Repository, workflow WorkflowWriter, audit AuditWriter) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		workflow: workflow,
		audit:    audit,
	}
}

// PersistSignals upserts every buildable signal into the queue. Each signal
// gets its own transaction, so one failing signal leaves the rest of the
// batch intact. The returned queue holds the successfully persisted items
// sorted by priority descending; per-signal failures are joined into err.
func (s *Service) PersistSignals(ctx context.Context, signals []triage.IntakeSignal, userID string, now time.Time) ([]triage.WorkItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("queue: missing user id")
	}

	var (
		queue    []triage.WorkItem
		failures []error
	)
	for _, signal := range signals {
		item, ok := triage.BuildWorkItem(signal, now)
		if !ok {
			continue
		}
		if err := s.persistOne(ctx, signal, item, userID, now); err != nil {
			failures = append(failures, fmt.Errorf("queue: persist %s: %w", signal.ID, err))
			continue
		}
		queue = append(queue, item)
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].PriorityScore > queue[j].PriorityScore
	})

	return queue, errors.Join(failures...)
}

func (s *Service) persistOne(ctx context.Context, signal triage.IntakeSignal, item triage.WorkItem, userID string, now time.Time) error {
	params := UpsertParams{
		Item:        item,
		Evaluations: triage.EvaluateGates(signal, now),
		Payload:     action.Derive(item),
		UserID:      userID,
		Now:         now,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.UpsertWorkItem(ctx, tx, params); err != nil {
		return err
	}
	if err := s.repo.ReplaceGateEvaluations(ctx, tx, params); err != nil {
		return err
	}
	if err := s.repo.ReplaceProposedAction(ctx, tx, params); err != nil {
		return err
	}

	if _, err := s.workflow.AppendRun(ctx, tx, worklog.RunInput{
		WorkItemID: item.ID,
		Phase:      worklog.PhaseIngest,
		Events: []worklog.EventInput{
			{Kind: "signal.persisted", Payload: map[string]any{"source": signal.Source, "actor": signal.Actor}},
			{Kind: "gates.evaluated", Payload: map[string]any{"matched": gateNames(item.Gates)}},
			{Kind: "action.prepared", Payload: map[string]any{"kind": string(params.Payload.Kind())}},
		},
	}, now); err != nil {
		return err
	}

	if err := s.audit.AppendAudit(ctx, tx, worklog.AuditInput{
		UserID:     userID,
		Action:     "work-item.ingested",
		TargetType: "work_item",
		TargetID:   item.ID,
		Payload: map[string]any{
			"source":        signal.Source,
			"priorityScore": item.PriorityScore,
		},
	}, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
