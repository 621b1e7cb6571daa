// Package services contains the server-side business logic: the member
// directory, the authentication orchestrator and profile image uploads.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/dmitrijs2005/kiwes/internal/server/providers"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/refreshtokens"
)

// MaxIntroductionLength bounds the my-page introduction, in characters.
const MaxIntroductionLength = 500

// Directory is the member store as the orchestrator uses it. Lookups return
// common.ErrorNotFound for unknown or deleted members.
type Directory interface {
	FindOrCreate(ctx context.Context, id *models.Identity) (*models.User, error)
	FindBySubject(ctx context.Context, subject string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	MarkDeleted(ctx context.Context, id string) error
	CompleteSignUp(ctx context.Context, id string, info *models.AdditionalInfo) (*models.User, error)
	NicknameExists(ctx context.Context, nickname string) (bool, error)
	UpdateIntroduction(ctx context.Context, id string, text string) (*models.User, error)
}

// AuthService sequences provider resolution, the directory and the token
// engine. It holds no per-request state.
type AuthService struct {
	registry  *providers.Registry
	directory Directory
	engine    *auth.Engine
	store     refreshtokens.Repository
	logger    logging.Logger
	metrics   metrics.Recorder
}

// NewAuthService wires the orchestrator. store must be the same refresh
// token store the engine saves into.
func NewAuthService(reg *providers.Registry, dir Directory, engine *auth.Engine, store refreshtokens.Repository,
	l logging.Logger, m metrics.Recorder) *AuthService {
	return &AuthService{
		registry:  reg,
		directory: dir,
		engine:    engine,
		store:     store,
		logger:    l.With("module", "auth_service"),
		metrics:   m,
	}
}

// ResolveIdentity exchanges cred with the provider registered under tag.
func (s *AuthService) ResolveIdentity(ctx context.Context, tag string, cred providers.Credential) (*models.Identity, error) {
	r, err := s.registry.Get(tag)
	if err != nil {
		return nil, err
	}
	return r.Exchange(ctx, cred)
}

// Login signs a member in with a provider credential, creating the member
// on first use, and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, tag string, cred providers.Credential) (*models.TokenPair, error) {
	pair, err := s.login(ctx, tag, cred)
	if err != nil {
		s.metrics.LoginCompleted(tag, "failure")
		s.logger.Info(ctx, "login failed", "provider", tag, "kind", cred.Kind.String(), "error", err)
		return nil, err
	}
	s.metrics.LoginCompleted(tag, "success")
	return pair, nil
}

func (s *AuthService) login(ctx context.Context, tag string, cred providers.Credential) (*models.TokenPair, error) {
	id, err := s.ResolveIdentity(ctx, tag, cred)
	if err != nil {
		return nil, err
	}
	u, err := s.directory.FindOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find or create member: %w", err)
	}
	return s.engine.Mint(ctx, principalOf(u), u.ID)
}

// CompleteSignUp records the additional info of a member who has not yet
// provided it. The completion flag shows up in the next minted token.
func (s *AuthService) CompleteSignUp(ctx context.Context, p *auth.Principal, info models.AdditionalInfo) (*models.User, error) {
	if p.AdditionalInfoProvided {
		return nil, common.ErrSignUpCompleted
	}

	info.Nickname = strings.TrimSpace(info.Nickname)
	info.Gender = strings.ToUpper(strings.TrimSpace(info.Gender))
	info.Nationality = strings.TrimSpace(info.Nationality)
	switch {
	case info.Nickname == "":
		return nil, fmt.Errorf("%w: nickname is required", common.ErrInvalidParameter)
	case info.Gender == "":
		return nil, fmt.Errorf("%w: gender is required", common.ErrInvalidParameter)
	case info.Birthday == nil:
		return nil, fmt.Errorf("%w: birthday is required", common.ErrInvalidParameter)
	case utf8.RuneCountInString(info.Introduction) > MaxIntroductionLength:
		return nil, fmt.Errorf("%w: introduction is too long", common.ErrInvalidParameter)
	}

	u, err := s.directory.CompleteSignUp(ctx, p.UserID, &info)
	if err != nil {
		return nil, knownMember(err)
	}
	return u, nil
}

// Refresh exchanges the current refresh token of userID for a new pair.
// Nothing is written unless a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, userID string) (*models.TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken, userID)
	if err != nil {
		s.metrics.RefreshCompleted("rejected")
		s.logger.Info(ctx, "refresh rejected", "user_id", userID, "error", err)
		return nil, err
	}
	s.metrics.RefreshCompleted("success")
	return pair, nil
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string, userID string) (*models.TokenPair, error) {
	if err := s.engine.ValidateRefresh(refreshToken); err != nil {
		return nil, err
	}

	current, err := s.store.IsCurrent(ctx, refreshToken, userID)
	if err != nil {
		return nil, fmt.Errorf("check refresh token: %w", err)
	}
	if !current {
		return nil, common.ErrInvalidRefreshToken
	}

	u, err := s.directory.FindByID(ctx, userID)
	if err != nil {
		return nil, knownMember(err)
	}
	return s.engine.Mint(ctx, principalOf(u), u.ID)
}

// RefreshSession is Refresh for a client that identifies itself with its
// last access token, which may have expired.
func (s *AuthService) RefreshSession(ctx context.Context, accessToken string, refreshToken string) (*models.TokenPair, error) {
	claims, err := s.engine.ParseClaims(accessToken)
	if err != nil {
		return nil, err
	}
	u, err := s.directory.FindBySubject(ctx, claims.Subject)
	if err != nil {
		return nil, knownMember(err)
	}
	return s.Refresh(ctx, refreshToken, u.ID)
}

// Logout ends the member's session.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	s.logger.Info(ctx, "logged out", "user_id", userID)
	return nil
}

// Quit soft-deletes the member, then ends the session.
func (s *AuthService) Quit(ctx context.Context, userID string) error {
	if err := s.directory.MarkDeleted(ctx, userID); err != nil {
		return knownMember(err)
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	s.logger.Info(ctx, "member quit", "user_id", userID)
	return nil
}

// NicknameAvailable reports whether no active member uses nickname.
func (s *AuthService) NicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return false, fmt.Errorf("%w: nickname is required", common.ErrInvalidParameter)
	}
	taken, err := s.directory.NicknameExists(ctx, nickname)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (s *AuthService) UpdateIntroduction(ctx context.Context, userID string, text string) (*models.User, error) {
	if utf8.RuneCountInString(text) > MaxIntroductionLength {
		return nil, fmt.Errorf("%w: introduction is too long", common.ErrInvalidParameter)
	}
	u, err := s.directory.UpdateIntroduction(ctx, userID, text)
	if err != nil {
		return nil, knownMember(err)
	}
	return u, nil
}

// Profile returns the member's my-page data.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.directory.FindByID(ctx, userID)
	if err != nil {
		return nil, knownMember(err)
	}
	return u, nil
}

func principalOf(u *models.User) auth.Principal {
	return auth.Principal{
		UserID:                 u.ID,
		Subject:                u.Email,
		Authorities:            u.Authorities(),
		AdditionalInfoProvided: u.AdditionalInfoProvided,
	}
}

// knownMember turns a directory miss into ErrUnknownSubject.
func knownMember(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUnknownSubject
	}
	return err
}
