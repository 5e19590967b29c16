package connections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"triageflow/worklog"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AuditWriter appends an audit entry inside the active transaction.
type AuditWriter interface {
	AppendAudit(ctx context.Context, tx pgx.Tx, input worklog.AuditInput, now time.Time) error
}

// Service manages the Google account link. Tokens are sealed before they
// reach storage and only unsealed on their way to an API call.
type Service struct {
	pool     TxBeginner
	repo     Repository
	audit    AuditWriter
	keychain *Keychain
}

func NewService(pool TxBeginner, repo Repository, audit AuditWriter, keychain *Keychain) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		audit:    audit,
		keychain: keychain,
	}
}

// Status reports whether a Google account is linked, without exposing tokens.
func (s *Service) Status(ctx context.Context) (Status, error) {
	conn, err := s.repo.Get(ctx, GoogleConnectionID)
	if errors.Is(err, ErrNotFound) {
		return Status{Provider: "google", Scopes: []string{}}, nil
	}
	if err != nil {
		return Status{}, err
	}
	connectedAt := conn.ConnectedAt
	updatedAt := conn.UpdatedAt
	return Status{
		Connected:         true,
		Provider:          "google",
		ProviderAccountID: conn.ProviderAccountID,
		Scopes:            conn.Scopes,
		ConnectedAt:       &connectedAt,
		UpdatedAt:         &updatedAt,
	}, nil
}

// Connect stores (or refreshes) the Google link with sealed tokens and
// records the change in the audit log within the same transaction.
func (s *Service) Connect(ctx context.Context, params ConnectParams) (Status, error) {
	if params.UserID == "" {
		return Status{}, fmt.Errorf("connections: missing user id")
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	providerAccountID := params.ProviderAccountID
	if providerAccountID == "" {
		providerAccountID = "google-" + uuid.NewString()
	}
	scopes := params.Scopes
	if len(scopes) == 0 {
		scopes = GoogleScopes
	}

	accessToken, err := s.keychain.Seal(params.AccessToken)
	if err != nil {
		return Status{}, err
	}
	refreshToken, err := s.keychain.Seal(params.RefreshToken)
	if err != nil {
		return Status{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("connections: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = s.repo.Upsert(ctx, tx, Connection{
		ID:                GoogleConnectionID,
		UserID:            params.UserID,
		Provider:          "google",
		ProviderAccountID: providerAccountID,
		Scopes:            scopes,
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		ConnectedAt:       now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Status{}, err
	}

	err = s.audit.AppendAudit(ctx, tx, worklog.AuditInput{
		UserID:     params.UserID,
		Action:     "connection.google.upserted",
		TargetType: "connection",
		TargetID:   "google",
		Payload: map[string]any{
			"providerAccountId": providerAccountID,
			"scopeCount":        len(scopes),
		},
	}, now)
	if err != nil {
		return Status{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Status{}, fmt.Errorf("connections: commit tx: %w", err)
	}
	return s.Status(ctx)
}

// Disconnect removes the Google link and audits the removal.
func (s *Service) Disconnect(ctx context.Context, userID string, now time.Time) error {
	if userID == "" {
		return fmt.Errorf("connections: missing user id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("connections: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, GoogleConnectionID); err != nil {
		return err
	}
	err = s.audit.AppendAudit(ctx, tx, worklog.AuditInput{
		UserID:     userID,
		Action:     "connection.google.disconnected",
		TargetType: "connection",
		TargetID:   "google",
	}, now)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("connections: commit tx: %w", err)
	}
	return nil
}

// AccessToken unseals the stored access token for a poller or executor.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	conn, err := s.repo.Get(ctx, GoogleConnectionID)
	if err != nil {
		return "", err
	}
	return s.keychain.Open(conn.AccessToken)
}
