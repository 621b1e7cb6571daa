package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/dbx"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/jmoiron/sqlx"
)

const (
	userColumns = `id, email, nickname, profile_image, gender, birthday, nationality, introduction,
		provider, role, additional_info_provided, created_at, deleted_at`

	emailConstraint    = "users_email_active_key"
	nicknameConstraint = "users_nickname_active_key"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// scanUser reads at most one row through sqlx's db-tag mapping.
func scanUser(rows *sql.Rows, err error) (*models.User, error) {
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var list []models.User
	if err := sqlx.StructScan(rows, &list); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return &list[0], nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, profile_image, gender, provider)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	rows, err := r.db.QueryContext(ctx, query, user.Email, user.ProfileImage, user.Gender, user.Provider)
	u, err := scanUser(rows, err)
	if dbx.IsUniqueViolation(err, emailConstraint) {
		return nil, ErrEmailExists
	}
	return u, err
}

func (r *PostgresRepository) FindActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`
	return scanUser(r.db.QueryContext(ctx, query, email))
}

func (r *PostgresRepository) FindActiveByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanUser(r.db.QueryContext(ctx, query, id))
}

// MarkDeleted soft-deletes an active member; common.ErrorNotFound when there
// is none.
func (r *PostgresRepository) MarkDeleted(ctx context.Context, id string) error {
	query := `
		UPDATE users SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) CompleteSignUp(ctx context.Context, id string, info *models.AdditionalInfo) (*models.User, error) {
	query := `
		UPDATE users
		SET nickname = $2, gender = $3, birthday = $4, nationality = $5, introduction = $6,
			additional_info_provided = TRUE
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	rows, err := r.db.QueryContext(ctx, query, id, info.Nickname, info.Gender, info.Birthday, info.Nationality, info.Introduction)
	u, err := scanUser(rows, err)
	if dbx.IsUniqueViolation(err, nicknameConstraint) {
		return nil, common.ErrNicknameTaken
	}
	return u, err
}

func (r *PostgresRepository) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM users WHERE nickname = $1 AND deleted_at IS NULL)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, nickname).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) UpdateIntroduction(ctx context.Context, id string, introduction string) (*models.User, error) {
	query := `
		UPDATE users SET introduction = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	return scanUser(r.db.QueryContext(ctx, query, id, introduction))
}

func (r *PostgresRepository) SetProfileImage(ctx context.Context, id string, url string) error {
	query := `
		UPDATE users SET profile_image = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, id, url); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
