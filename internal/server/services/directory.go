package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/dbx"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/users"
)

// UserDirectory owns the member records. Every lookup sees active members
// only; a member who quit is indistinguishable from one who never joined.
type UserDirectory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewUserDirectory(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *UserDirectory {
	return &UserDirectory{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "user_directory"),
	}
}

// FindOrCreate returns the active member owning the identity's email,
// creating one on first sign-in.
func (d *UserDirectory) FindOrCreate(ctx context.Context, id *models.Identity) (*models.User, error) {
	email := strings.TrimSpace(id.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: identity without email", common.ErrInvalidCredential)
	}

	repo := d.repomanager.Users(d.db)
	u, err := repo.FindActiveByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	u, err = repo.Create(ctx, &models.User{
		Email:        email,
		ProfileImage: id.ProfileImageURL,
		Gender:       id.Gender,
		Provider:     id.Provider,
		Role:         common.RoleUser,
	})
	if errors.Is(err, users.ErrEmailExists) {
		// a concurrent first sign-in created the row
		return repo.FindActiveByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info(ctx, "member created", "user_id", u.ID, "provider", id.Provider)
	return u, nil
}

// FindBySubject looks up an active member by the access token subject.
func (d *UserDirectory) FindBySubject(ctx context.Context, subject string) (*models.User, error) {
	return d.repomanager.Users(d.db).FindActiveByEmail(ctx, subject)
}

func (d *UserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	return d.repomanager.Users(d.db).FindActiveByID(ctx, id)
}

func (d *UserDirectory) MarkDeleted(ctx context.Context, id string) error {
	return d.repomanager.Users(d.db).MarkDeleted(ctx, id)
}

// CompleteSignUp stores the additional info and sets the completion flag.
// The flag and the nickname are re-checked inside the update transaction.
func (d *UserDirectory) CompleteSignUp(ctx context.Context, id string, info *models.AdditionalInfo) (*models.User, error) {
	var out *models.User
	err := dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := d.repomanager.Users(tx)

		u, err := repo.FindActiveByID(ctx, id)
		if err != nil {
			return err
		}
		if u.AdditionalInfoProvided {
			return common.ErrSignUpCompleted
		}

		taken, err := repo.NicknameExists(ctx, info.Nickname)
		if err != nil {
			return err
		}
		if taken {
			return common.ErrNicknameTaken
		}

		out, err = repo.CompleteSignUp(ctx, id, info)
		return err
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info(ctx, "sign-up completed", "user_id", id)
	return out, nil
}

func (d *UserDirectory) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	return d.repomanager.Users(d.db).NicknameExists(ctx, nickname)
}

func (d *UserDirectory) UpdateIntroduction(ctx context.Context, id string, text string) (*models.User, error) {
	return d.repomanager.Users(d.db).UpdateIntroduction(ctx, id, text)
}

func (d *UserDirectory) SetProfileImage(ctx context.Context, id string, url string) error {
	return d.repomanager.Users(d.db).SetProfileImage(ctx, id, url)
}
