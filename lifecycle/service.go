package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// Service enforces the work item state machine:
// awaiting_approval -> {completed, dismissed}, both terminal. Every
// operation runs as one transaction; the state check, the mutation, and the
// audit/workflow appends are atomic.
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

// Approve executes the item's proposed action and completes it. Approving an
// already-completed item replays the original execution without appending
// any new workflow or audit records.
func (s *Service) Approve(ctx context.Context, params ApproveParams) (ApproveResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ApproveResult{}, fmt.Errorf("lifecycle: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := s.repo.GetForUpdate(ctx, tx, params.ItemID)
	if err != nil {
		if errors.Is(err, ErrItemMissing) {
			return ApproveResult{}, notFoundError("Work item not found.")
		}
		return ApproveResult{}, err
	}

	switch item.Status {
	case triage.StatusDismissed:
		return ApproveResult{}, conflictError("Work item is dismissed and cannot be approved.")
	case triage.StatusCompleted:
		execution := s.replayExecution(item, params.IdempotencyKey)
		if err := tx.Commit(ctx); err != nil {
			return ApproveResult{}, fmt.Errorf("lifecycle: commit replay: %w", err)
		}
		return ApproveResult{
			ItemID:     params.ItemID,
			Idempotent: true,
			Payload:    item.Payload,
			Execution:  execution,
		}, nil
	}

	payload := item.Payload
	if params.PayloadOverride != nil {
		payload = params.PayloadOverride
	}
	if payload == nil {
		return ApproveResult{}, invalidPayloadError("Proposed action payload is invalid.")
	}

	execution := action.Execute(payload, params.Now, params.IdempotencyKey)

	if err := s.repo.MarkActionExecuted(ctx, tx, item.ProposalID, payload, execution, params.Now); err != nil {
		return ApproveResult{}, err
	}
	if err := s.repo.SetStatus(ctx, tx, params.ItemID, triage.StatusCompleted, params.Now); err != nil {
		return ApproveResult{}, err
	}

	if _, err := s.workflow.AppendRun(ctx, tx, worklog.RunInput{
		WorkItemID: params.ItemID,
		Phase:      worklog.PhaseApprove,
		Events: []worklog.EventInput{
			{Kind: "action.approved", Payload: map[string]any{
				"actionId": item.ProposalID,
				"kind":     string(payload.Kind()),
			}},
			{Kind: "action.executed", Payload: map[string]any{
				"destination":       string(execution.Destination),
				"providerReference": execution.ProviderReference,
				"idempotencyKey":    execution.IdempotencyKey,
			}},
		},
	}, params.Now); err != nil {
		return ApproveResult{}, err
	}

	if err := s.audit.AppendAudit(ctx, tx, worklog.AuditInput{
		UserID:     item.UserID,
		Action:     "action.approve",
		TargetType: "work_item",
		TargetID:   params.ItemID,
		Payload: map[string]any{
			"destination":       string(execution.Destination),
			"providerReference": execution.ProviderReference,
			"idempotencyKey":    execution.IdempotencyKey,
		},
	}, params.Now); err != nil {
		return ApproveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ApproveResult{}, fmt.Errorf("lifecycle: commit approve: %w", err)
	}

	return ApproveResult{
		ItemID:    params.ItemID,
		Payload:   payload,
		Execution: execution,
	}, nil
}

// replayExecution returns the execution recorded at approval time; items
// completed before execution columns existed fall back to recomputing from
// the payload content, which yields the same reference by construction.
func (s *Service) replayExecution(item Item, idempotencyKey string) action.ExecutionResult {
	if item.Execution != nil {
		return *item.Execution
	}
	return action.Execute(item.Payload, item.UpdatedAt, idempotencyKey)
}

// Dismiss moves an awaiting item to the dismissed terminal state.
func (s *Service) Dismiss(ctx context.Context, itemID string, now time.Time) (DismissResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return DismissResult{}, fmt.Errorf("lifecycle: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := s.repo.GetForUpdate(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, ErrItemMissing) {
			return DismissResult{}, notFoundError("Work item not found.")
		}
		return DismissResult{}, err
	}

	switch item.Status {
	case triage.StatusCompleted:
		return DismissResult{}, conflictError("Completed work item cannot be dismissed.")
	case triage.StatusDismissed:
		return DismissResult{ItemID: itemID, Idempotent: true, DismissedAt: item.UpdatedAt}, nil
	}

	if err := s.repo.SetStatus(ctx, tx, itemID, triage.StatusDismissed, now); err != nil {
		return DismissResult{}, err
	}
	if err := s.repo.MarkActionDismissed(ctx, tx, itemID, now); err != nil {
		return DismissResult{}, err
	}

	if _, err := s.workflow.AppendRun(ctx, tx, worklog.RunInput{
		WorkItemID: itemID,
		Phase:      worklog.PhaseDismiss,
		Events: []worklog.EventInput{
			{Kind: "action.dismissed", Payload: map[string]any{"reason": "user dismissed from queue"}},
		},
	}, now); err != nil {
		return DismissResult{}, err
	}

	if err := s.audit.AppendAudit(ctx, tx, worklog.AuditInput{
		UserID:     item.UserID,
		Action:     "action.dismiss",
		TargetType: "work_item",
		TargetID:   itemID,
		Payload:    map[string]any{},
	}, now); err != nil {
		return DismissResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DismissResult{}, fmt.Errorf("lifecycle: commit dismiss: %w", err)
	}

	return DismissResult{ItemID: itemID, DismissedAt: now}, nil
}

// Feedback attaches the single feedback entry to a processed item. Repeated
// calls overwrite the rating and note; there is no idempotent short-circuit.
func (s *Service) Feedback(ctx context.Context, params FeedbackParams) (FeedbackResult, error) {
	if params.Rating != RatingPositive && params.Rating != RatingNegative {
		return FeedbackResult{}, invalidPayloadError(fmt.Sprintf("Unknown feedback rating %q.", params.Rating))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return FeedbackResult{}, fmt.Errorf("lifecycle: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := s.repo.GetForUpdate(ctx, tx, params.ItemID)
	if err != nil {
		if errors.Is(err, ErrItemMissing) {
			return FeedbackResult{}, notFoundError("Work item not found.")
		}
		return FeedbackResult{}, err
	}

	if item.Status != triage.StatusCompleted && item.Status != triage.StatusDismissed {
		return FeedbackResult{}, conflictError("Feedback is only available for processed items.")
	}

	note := strings.TrimSpace(params.Note)
	if err := s.repo.UpsertFeedback(ctx, tx, params.ItemID, params.Rating, note, params.Now); err != nil {
		return FeedbackResult{}, err
	}

	if _, err := s.workflow.AppendRun(ctx, tx, worklog.RunInput{
		WorkItemID: params.ItemID,
		Phase:      worklog.PhaseFeedback,
		Events: []worklog.EventInput{
			{Kind: "feedback.recorded", Payload: map[string]any{
				"rating":  string(params.Rating),
				"hasNote": note != "",
			}},
		},
	}, params.Now); err != nil {
		return FeedbackResult{}, err
	}

	if err := s.audit.AppendAudit(ctx, tx, worklog.AuditInput{
		UserID:     item.UserID,
		Action:     "feedback.recorded",
		TargetType: "work_item",
		TargetID:   params.ItemID,
		Payload:    map[string]any{"rating": string(params.Rating)},
	}, params.Now); err != nil {
		return FeedbackResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FeedbackResult{}, fmt.Errorf("lifecycle: commit feedback: %w", err)
	}

	return FeedbackResult{ItemID: params.ItemID, Rating: params.Rating, NotedAt: params.Now}, nil
}
