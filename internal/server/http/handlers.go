package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/dmitrijs2005/kiwes/internal/server/providers"
	"github.com/dmitrijs2005/kiwes/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const maxJSONBodyBytes int64 = 16 << 10

var errPayloadTooLarge = errors.New("payload too large")

// Members is the membership flow behind the HTTP API.
type Members interface {
	Login(ctx context.Context, tag string, cred providers.Credential) (*models.TokenPair, error)
	CompleteSignUp(ctx context.Context, p *auth.Principal, info models.AdditionalInfo) (*models.User, error)
	RefreshSession(ctx context.Context, accessToken string, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Quit(ctx context.Context, userID string) error
	NicknameAvailable(ctx context.Context, nickname string) (bool, error)
	UpdateIntroduction(ctx context.Context, userID string, text string) (*models.User, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// ProfileImages issues profile image upload URLs.
type ProfileImages interface {
	UploadURL(ctx context.Context, userID string) (*services.ProfileImageUpload, error)
}

// MemberHandler exposes login, token refresh and my-page endpoints.
type MemberHandler struct {
	members Members
	images  ProfileImages
	logger  logging.Logger
}

// NewMemberHandler creates a handler. images may be nil when uploads are
// not configured.
func NewMemberHandler(members Members, images ProfileImages, logger logging.Logger) *MemberHandler {
	return &MemberHandler{members: members, images: images, logger: logger}
}

// Callback finishes the authorization code flow a provider redirected to.
func (h *MemberHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, invalidParameter, "code is required")
		return
	}
	h.login(w, r, providers.Credential{Kind: providers.CredentialCode, Value: code}, callbackSuccess)
}

// Login exchanges a provider token sent in the Authorization header.
func (h *MemberHandler) Login(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, invalidParameter, "provider token is required")
		return
	}
	h.login(w, r, providers.Credential{Kind: providers.CredentialAccessToken, Value: token}, loginSuccess)
}

func (h *MemberHandler) login(w http.ResponseWriter, r *http.Request, cred providers.Credential, rt responseType) {
	pair, err := h.members.Login(r.Context(), chi.URLParam(r, "provider"), cred)
	if err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, rt, pair)
}

type additionalInfoRequest struct {
	Nickname     string `json:"nickname"`
	Gender       string `json:"gender"`
	Birthday     string `json:"birthday"`
	Nationality  string `json:"nationality"`
	Introduction string `json:"introduction"`
}

// CompleteSignUp stores the additional member info. Birthday is a
// YYYY-MM-DD date.
func (h *MemberHandler) CompleteSignUp(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var req additionalInfoRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	info := models.AdditionalInfo{
		Nickname:     req.Nickname,
		Gender:       req.Gender,
		Nationality:  req.Nationality,
		Introduction: req.Introduction,
	}
	if b := strings.TrimSpace(req.Birthday); b != "" {
		day, err := time.Parse(time.DateOnly, b)
		if err != nil {
			writeError(w, invalidParameter, "birthday must be YYYY-MM-DD")
			return
		}
		info.Birthday = &day
	}

	user, err := h.members.CompleteSignUp(r.Context(), p, info)
	if err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, signUpSuccess, user)
}

// Refresh rotates the token pair. The possibly expired access token in the
// Authorization header names the member; the body carries the refresh
// token.
func (h *MemberHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	access := bearerToken(r)
	if access == "" {
		writeError(w, missingToken, "")
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, invalidParameter, "refreshToken is required")
		return
	}

	pair, err := h.members.RefreshSession(r.Context(), access, req.RefreshToken)
	if err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, refreshSuccess, pair)
}

// Nickname reports whether a nickname is still free.
func (h *MemberHandler) Nickname(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	available, err := h.members.NicknameAvailable(r.Context(), req.Nickname)
	if err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, nicknameSuccess, map[string]any{
		"nickname":  strings.TrimSpace(req.Nickname),
		"available": available,
	})
}

// Introduction replaces the member's introduction.
func (h *MemberHandler) Introduction(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var req struct {
		Introduction string `json:"introduction"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	user, err := h.members.UpdateIntroduction(r.Context(), p.UserID, req.Introduction)
	if err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, introductionSuccess, map[string]string{"introduction": user.Introduction})
}

// ProfileImage issues a presigned upload URL for the member's picture.
func (h *MemberHandler) ProfileImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeError(w, imagesDisabled, "")
		return
	}
	p, _ := PrincipalFromContext(r.Context())

	up, err := h.images.UploadURL(r.Context(), p.UserID)
	if err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, profileImageSuccess, up)
}

// MyPage returns the member's profile.
func (h *MemberHandler) MyPage(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	user, err := h.members.Profile(r.Context(), p.UserID)
	if err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, myPageSuccess, user)
}

// Logout revokes the member's refresh token.
func (h *MemberHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	if err := h.members.Logout(r.Context(), p.UserID); err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, logoutSuccess, nil)
}

// Quit soft-deletes the member and revokes their refresh token.
func (h *MemberHandler) Quit(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	if err := h.members.Quit(r.Context(), p.UserID); err != nil {
		handleServiceError(r.Context(), w, err, h.logger)
		return
	}
	respond(w, quitSuccess, nil)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	dec := json.NewDecoder(limited)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", common.ErrInvalidParameter)
		}
		return err
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPayloadTooLarge):
		writeError(w, payloadTooLarge, "")
	case errors.Is(err, common.ErrInvalidParameter):
		writeError(w, invalidParameter, "request body is required")
	default:
		writeError(w, invalidBody, err.Error())
	}
}
