// Package users persists Kiwes members. Quitting is a soft delete: rows keep
// their data with deleted_at set, and every lookup here ignores them.
package users

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/kiwes/internal/server/models"
)

// ErrEmailExists is returned by Create when an active member already owns
// the email.
var ErrEmailExists = errors.New("email already registered")

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.User, error)
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
	MarkDeleted(ctx context.Context, id string) error
	CompleteSignUp(ctx context.Context, id string, info *models.AdditionalInfo) (*models.User, error)
	NicknameExists(ctx context.Context, nickname string) (bool, error)
	UpdateIntroduction(ctx context.Context, id string, introduction string) (*models.User, error)
	SetProfileImage(ctx context.Context, id string, url string) error
}
