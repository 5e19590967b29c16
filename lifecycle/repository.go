package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triageflow/action"
	"triageflow/triage"
)

// ErrItemMissing is the storage-level absence signal; the service translates
// it into a typed not_found error.
var ErrItemMissing = errors.New("lifecycle: work item row missing")

// Repository defines the row access the lifecycle service composes into one
// transaction per operation.
type Repository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, itemID string) (Item, error)
	SetStatus(ctx context.Context, tx pgx.Tx, itemID string, status triage.Status, now time.Time) error
	MarkActionExecuted(ctx context.Context, tx pgx.Tx, proposalID string, payload action.Payload, execution action.ExecutionResult, now time.Time) error
	MarkActionDismissed(ctx context.Context, tx pgx.Tx, itemID string, now time.Time) error
	UpsertFeedback(ctx context.Context, tx pgx.Tx, itemID string, rating Rating, note string, now time.Time) error
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetForUpdate locks the work item row for the duration of the transaction
// so concurrent lifecycle calls serialize at the store.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, itemID string) (Item, error) {
	var (
		item              Item
		payload           []byte
		destination       *string
		providerReference *string
		idempotencyKey    *string
		executedAt        *time.Time
	)
	err := tx.QueryRow(ctx, `
        SELECT w.id, w.user_id, w.status, w.updated_at,
               p.id, p.status, p.payload,
               p.destination, p.provider_reference, p.idempotency_key, p.executed_at
        FROM work_items w
        JOIN proposed_actions p ON p.work_item_id = w.id
        WHERE w.id = $1
        FOR UPDATE OF w
    `, itemID).Scan(
		&item.ID,
		&item.UserID,
		&item.Status,
		&item.UpdatedAt,
		&item.ProposalID,
		&item.ProposalStatus,
		&payload,
		&destination,
		&providerReference,
		&idempotencyKey,
		&executedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemMissing
		}
		return Item{}, fmt.Errorf("lifecycle: fetch work item: %w", err)
	}

	parsed, err := action.Unmarshal(payload)
	if err != nil {
		return Item{}, fmt.Errorf("lifecycle: decode proposed action: %w", err)
	}
	item.Payload = parsed

	if destination != nil && providerReference != nil && idempotencyKey != nil && executedAt != nil {
		item.Execution = &action.ExecutionResult{
			Destination:       action.Destination(*destination),
			ProviderReference: *providerReference,
			IdempotencyKey:    *idempotencyKey,
			ExecutedAt:        *executedAt,
		}
	}

	return item, nil
}

func (r *PGRepository) SetStatus(ctx context.Context, tx pgx.Tx, itemID string, status triage.Status, now time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE work_items SET status = $1, updated_at = $2 WHERE id = $3
    `, status, now, itemID)
	if err != nil {
		return fmt.Errorf("lifecycle: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemMissing
	}
	return nil
}

// MarkActionExecuted records the routed execution on the proposed action so
// later idempotent replays return the original result.
func (r *PGRepository) MarkActionExecuted(ctx context.Context, tx pgx.Tx, proposalID string, payload action.Payload, execution action.ExecutionResult, now time.Time) error {
	encoded, err := action.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE proposed_actions
        SET action_type = $1,
            payload = $2,
            status = 'executed',
            destination = $3,
            provider_reference = $4,
            idempotency_key = $5,
            executed_at = $6,
            updated_at = $7
        WHERE id = $8
    `, payload.Kind(), encoded, execution.Destination, execution.ProviderReference, execution.IdempotencyKey, execution.ExecutedAt, now, proposalID); err != nil {
		return fmt.Errorf("lifecycle: mark action executed: %w", err)
	}

	return nil
}

func (r *PGRepository) MarkActionDismissed(ctx context.Context, tx pgx.Tx, itemID string, now time.Time) error {
	if _, err := tx.Exec(ctx, `
        UPDATE proposed_actions SET status = 'dismissed', updated_at = $1 WHERE work_item_id = $2
    `, now, itemID); err != nil {
		return fmt.Errorf("lifecycle: mark action dismissed: %w", err)
	}
	return nil
}

// UpsertFeedback keeps at most one feedback entry per work item; later
// feedback overwrites earlier.
func (r *PGRepository) UpsertFeedback(ctx context.Context, tx pgx.Tx, itemID string, rating Rating, note string, now time.Time) error {
	if _, err := tx.Exec(ctx, `
        INSERT INTO feedback_entries (id, work_item_id, rating, note, created_at, updated_at)
        VALUES ($1, $1, $2, $3, $4, $4)
        ON CONFLICT (id) DO UPDATE SET
            rating = EXCLUDED.rating,
            note = EXCLUDED.note,
            updated_at = EXCLUDED.updated_at
    `, itemID, rating, note, now); err != nil {
		return fmt.Errorf("lifecycle: upsert feedback: %w", err)
	}

	return nil
}
