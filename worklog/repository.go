package worklog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunInput captures one workflow run and its ordered events, appended in the
// caller's transaction.
type RunInput struct {
	WorkItemID string
	Phase      Phase
	Events     []EventInput
}

type EventInput struct {
	Kind    string
	Payload map[string]any
}

// AuditInput captures one audit log entry.
type AuditInput struct {
	UserID     string
	Action     string
	TargetType string
	TargetID   string
	Payload    map[string]any
}

// Repository appends and reads workflow runs, events, and audit entries.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func toJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("worklog: marshal payload: %w", err)
	}
	return payload, nil
}

// AppendRun inserts a run row plus its events inside the active transaction.
// Runs and their events are never mutated; only the retention prune deletes
// them.
func (r *Repository) AppendRun(ctx context.Context, tx pgx.Tx, input RunInput, now time.Time) (string, error) {
	runID := fmt.Sprintf("%s:%s:%d:%s", input.WorkItemID, input.Phase, now.UnixMilli(), uuid.NewString())

	if _, err := tx.Exec(ctx, `
        INSERT INTO workflow_runs (id, work_item_id, phase, status, created_at)
        VALUES ($1, $2, $3, 'completed', $4)
    `, runID, input.WorkItemID, input.Phase, now); err != nil {
		return "", fmt.Errorf("worklog: insert run: %w", err)
	}

	for i, event := range input.Events {
		payload, err := toJSON(event.Payload)
		if err != nil {
			return "", err
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO workflow_events (id, run_id, seq, kind, payload, created_at)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, fmt.Sprintf("%s:%d", runID, i), runID, i, event.Kind, payload, now); err != nil {
			return "", fmt.Errorf("worklog: insert event: %w", err)
		}
	}

	return runID, nil
}

// AppendAudit inserts an audit log entry inside the active transaction.
func (r *Repository) AppendAudit(ctx context.Context, tx pgx.Tx, input AuditInput, now time.Time) error {
	payload, err := toJSON(input.Payload)
	if err != nil {
		return err
	}

	id := fmt.Sprintf("%s:%s:%s:%d:%s", input.TargetType, input.TargetID, input.Action, now.UnixMilli(), uuid.NewString())
	if _, err := tx.Exec(ctx, `
        INSERT INTO audit_logs (id, user_id, action, target_type, target_id, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, id, input.UserID, input.Action, input.TargetType, input.TargetID, payload, now); err != nil {
		return fmt.Errorf("worklog: insert audit entry: %w", err)
	}

	return nil
}

// Timeline returns the runs for a work item, newest first, each with its
// events in append order.
func (r *Repository) Timeline(ctx context.Context, workItemID string) ([]TimelineEntry, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, phase, status, created_at
        FROM workflow_runs
        WHERE work_item_id = $1
        ORDER BY created_at DESC, id DESC
    `, workItemID)
	if err != nil {
		return nil, fmt.Errorf("worklog: query runs: %w", err)
	}
	defer rows.Close()

	var timeline []TimelineEntry
	for rows.Next() {
		var entry TimelineEntry
		if err := rows.Scan(&entry.RunID, &entry.Phase, &entry.Status, &entry.At); err != nil {
			return nil, fmt.Errorf("worklog: scan run: %w", err)
		}
		timeline = append(timeline, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("worklog: iterate runs: %w", err)
	}

	for i := range timeline {
		events, err := r.runEvents(ctx, timeline[i].RunID)
		if err != nil {
			return nil, err
		}
		timeline[i].Events = events
	}

	return timeline, nil
}

func (r *Repository) runEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, run_id, kind, payload, created_at
        FROM workflow_events
        WHERE run_id = $1
        ORDER BY seq ASC
    `, runID)
	if err != nil {
		return nil, fmt.Errorf("worklog: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			payload []byte
		)
		if err := rows.Scan(&event.ID, &event.RunID, &event.Kind, &payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("worklog: scan event: %w", err)
		}
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("worklog: decode event payload: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("worklog: iterate events: %w", err)
	}

	return events, nil
}

// AuditByTarget lists audit entries for a target within [since, until),
// newest first. Zero bounds mean unbounded.
func (r *Repository) AuditByTarget(ctx context.Context, targetType, targetID string, since, until time.Time, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if until.IsZero() {
		until = time.Now().Add(24 * time.Hour)
	}

	rows, err := r.pool.Query(ctx, `
        SELECT id, user_id, action, target_type, target_id, payload, created_at
        FROM audit_logs
        WHERE target_type = $1 AND target_id = $2 AND created_at >= $3 AND created_at < $4
        ORDER BY created_at DESC, id DESC
        LIMIT $5
    `, targetType, targetID, since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("worklog: query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			entry   AuditEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.TargetType, &entry.TargetID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("worklog: scan audit entry: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, fmt.Errorf("worklog: decode audit payload: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("worklog: iterate audit entries: %w", err)
	}

	return entries, nil
}

// PruneBefore deletes workflow runs (with their events) and audit entries
// older than the cutoff. Returns the number of runs removed.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("worklog: begin prune tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        DELETE FROM workflow_events
        WHERE run_id IN (SELECT id FROM workflow_runs WHERE created_at < $1)
    `, cutoff); err != nil {
		return 0, fmt.Errorf("worklog: prune events: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM workflow_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("worklog: prune runs: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff); err != nil {
		return 0, fmt.Errorf("worklog: prune audit entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("worklog: commit prune: %w", err)
	}

	return tag.RowsAffected(), nil
}
