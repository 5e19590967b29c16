package connections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no connection row exists for an id.
var ErrNotFound = errors.New("connections: connection not found")

// Repository persists provider account links.
type Repository interface {
	Get(ctx context.Context, id string) (Connection, error)
	Upsert(ctx context.Context, tx pgx.Tx, conn Connection) error
	Delete(ctx context.Context, tx pgx.Tx, id string) error
}

// PGRepository is the PostgreSQL-backed Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Get(ctx context.Context, id string) (Connection, error) {
	var (
		conn   Connection
		scopes string
	)
	err := r.pool.QueryRow(ctx, `
        SELECT id, user_id, provider, provider_account_id, scopes,
               access_token, refresh_token, connected_at, updated_at
        FROM connected_accounts
        WHERE id = $1
    `, id).Scan(
		&conn.ID, &conn.UserID, &conn.Provider, &conn.ProviderAccountID, &scopes,
		&conn.AccessToken, &conn.RefreshToken, &conn.ConnectedAt, &conn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	if err != nil {
		return Connection{}, fmt.Errorf("connections: get connection: %w", err)
	}
	conn.Scopes = strings.Fields(scopes)
	return conn, nil
}

func (r *PGRepository) Upsert(ctx context.Context, tx pgx.Tx, conn Connection) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO connected_accounts (
            id, user_id, provider, provider_account_id, scopes,
            access_token, refresh_token, connected_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO UPDATE SET
            provider_account_id = EXCLUDED.provider_account_id,
            scopes = EXCLUDED.scopes,
            access_token = EXCLUDED.access_token,
            refresh_token = EXCLUDED.refresh_token,
            updated_at = EXCLUDED.updated_at
    `, conn.ID, conn.UserID, conn.Provider, conn.ProviderAccountID,
		strings.Join(conn.Scopes, " "), conn.AccessToken, conn.RefreshToken,
		conn.ConnectedAt, conn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("connections: upsert connection: %w", err)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM connected_accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("connections: delete connection: %w", err)
	}
	return nil
}
