package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triageflow/action"
	"triageflow/triage"
)

// ErrNotFound is returned when no work item row exists for the identifier.
var ErrNotFound = errors.New("queue: work item not found")

// Repository defines the per-signal writes the ingestion service composes
// into one transaction.
type Repository interface {
	UpsertWorkItem(ctx context.Context, tx pgx.Tx, params UpsertParams) error
	ReplaceGateEvaluations(ctx context.Context, tx pgx.Tx, params UpsertParams) error
	ReplaceProposedAction(ctx context.Context, tx pgx.Tx, params UpsertParams) error
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// UpsertWorkItem inserts or updates the work item row. Status is forced back
// to awaiting_approval on every ingestion of the id, reopening items that
// were already completed or dismissed.
func (r *PGRepository) UpsertWorkItem(ctx context.Context, tx pgx.Tx, params UpsertParams) error {
	item := params.Item
	_, err := tx.Exec(ctx, `
        INSERT INTO work_items (id, user_id, type, source, actor, summary, context, preview, gates, priority_score, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'awaiting_approval', $11, $11)
        ON CONFLICT (id) DO UPDATE SET
            type = EXCLUDED.type,
            source = EXCLUDED.source,
            actor = EXCLUDED.actor,
            summary = EXCLUDED.summary,
            context = EXCLUDED.context,
            preview = EXCLUDED.preview,
            gates = EXCLUDED.gates,
            priority_score = EXCLUDED.priority_score,
            status = 'awaiting_approval',
            updated_at = EXCLUDED.updated_at
    `, item.ID, params.UserID, item.Type, item.Source, item.Actor, item.Summary, item.Context, item.Preview, gateNames(item.Gates), item.PriorityScore, params.Now)
	if err != nil {
		return fmt.Errorf("queue: upsert work item: %w", err)
	}

	return nil
}

// ReplaceGateEvaluations swaps the full evaluation set for the item.
func (r *PGRepository) ReplaceGateEvaluations(ctx context.Context, tx pgx.Tx, params UpsertParams) error {
	itemID := params.Item.ID
	if _, err := tx.Exec(ctx, `DELETE FROM gate_evaluations WHERE work_item_id = $1`, itemID); err != nil {
		return fmt.Errorf("queue: clear gate evaluations: %w", err)
	}

	for _, evaluation := range params.Evaluations {
		if _, err := tx.Exec(ctx, `
            INSERT INTO gate_evaluations (id, work_item_id, gate, matched, reason, score)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, fmt.Sprintf("%s:%s", itemID, evaluation.Gate), itemID, evaluation.Gate, evaluation.Matched, evaluation.Reason, evaluation.Score); err != nil {
			return fmt.Errorf("queue: insert gate evaluation: %w", err)
		}
	}

	return nil
}

// ReplaceProposedAction swaps the single proposed action owned by the item.
func (r *PGRepository) ReplaceProposedAction(ctx context.Context, tx pgx.Tx, params UpsertParams) error {
	itemID := params.Item.ID
	payload, err := action.Marshal(params.Payload)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM proposed_actions WHERE work_item_id = $1`, itemID); err != nil {
		return fmt.Errorf("queue: clear proposed action: %w", err)
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO proposed_actions (id, work_item_id, action_type, status, payload, created_at, updated_at)
        VALUES ($1, $2, $3, 'pending', $4, $5, $5)
    `, action.ProposedActionID(itemID), itemID, params.Payload.Kind(), payload, params.Now); err != nil {
		return fmt.Errorf("queue: insert proposed action: %w", err)
	}

	return nil
}

// List returns queued work items ordered by priority descending.
func (r *PGRepository) List(ctx context.Context, userID string, status triage.Status) ([]StoredItem, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT w.id, w.user_id, w.type, w.source, w.actor, w.summary, w.context, w.preview, w.gates, w.priority_score, w.status, w.created_at, w.updated_at, p.payload
        FROM work_items w
        JOIN proposed_actions p ON p.work_item_id = w.id
        WHERE w.user_id = $1 AND ($2 = '' OR w.status = $2)
        ORDER BY w.priority_score DESC, w.created_at ASC
    `, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("queue: query work items: %w", err)
	}
	defer rows.Close()

	var items []StoredItem
	for rows.Next() {
		item, err := scanStoredItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue: iterate work items: %w", err)
	}

	return items, nil
}

// Get fetches one work item with its proposed action.
func (r *PGRepository) Get(ctx context.Context, itemID string) (StoredItem, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT w.id, w.user_id, w.type, w.source, w.actor, w.summary, w.context, w.preview, w.gates, w.priority_score, w.status, w.created_at, w.updated_at, p.payload
        FROM work_items w
        JOIN proposed_actions p ON p.work_item_id = w.id
        WHERE w.id = $1
    `, itemID)

	item, err := scanStoredItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredItem{}, ErrNotFound
		}
		return StoredItem{}, err
	}

	return item, nil
}

func scanStoredItem(row pgx.Row) (StoredItem, error) {
	var (
		item    StoredItem
		gates   []string
		payload []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Type,
		&item.Source,
		&item.Actor,
		&item.Summary,
		&item.Context,
		&item.Preview,
		&gates,
		&item.PriorityScore,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
		&payload,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredItem{}, err
		}
		return StoredItem{}, fmt.Errorf("queue: scan work item: %w", err)
	}

	for _, gate := range gates {
		item.Gates = append(item.Gates, triage.Gate(gate))
	}

	parsed, err := action.Unmarshal(payload)
	if err != nil {
		return StoredItem{}, fmt.Errorf("queue: decode proposed action: %w", err)
	}
	item.Payload = parsed

	return item, nil
}

func gateNames(gates []triage.Gate) []string {
	names := make([]string, len(gates))
	for i, gate := range gates {
		names[i] = string(gate)
	}
	return names
}
