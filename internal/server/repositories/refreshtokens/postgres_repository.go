package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/dbx"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
)

// PostgresRepository keeps refresh token slots in the refresh_tokens table
// over dbx.DBTX (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db       dbx.DBTX
	digester *Digester
	now      func() time.Time
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX, d *Digester) *PostgresRepository {
	return &PostgresRepository{db: db, digester: d, now: time.Now}
}

// Save upserts the slot keyed by user_id.
func (r *PostgresRepository) Save(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, digest, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET digest = EXCLUDED.digest, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at
	`
	digest := r.digester.Sum(token.Token)
	if _, err := r.db.ExecContext(ctx, query, token.UserID, digest, token.IssuedAt, token.ExpiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// IsCurrent compares token with the stored digest of userID's slot.
func (r *PostgresRepository) IsCurrent(ctx context.Context, token string, userID string) (bool, error) {
	query := `
		SELECT digest, expires_at
		FROM refresh_tokens
		WHERE user_id = $1
	`
	var (
		digest    []byte
		expiresAt time.Time
	)
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&digest, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	if !expiresAt.After(r.now()) {
		return false, nil
	}
	return r.digester.Matches(token, digest), nil
}

// Delete empties userID's slot.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
