package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseTypeFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{common.ErrMalformedSignature, http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrUnsupportedToken, http.StatusUnauthorized},
		{common.ErrMalformedToken, http.StatusUnauthorized},
		{common.ErrUnknownSubject, http.StatusUnauthorized},
		{common.ErrInvalidRefreshToken, http.StatusUnauthorized},
		{common.ErrInvalidCredential, http.StatusUnauthorized},
		{common.ErrUnsupportedProvider, http.StatusNotFound},
		{common.ErrProviderUnavailable, http.StatusBadGateway},
		{common.ErrInvalidParameter, http.StatusBadRequest},
		{common.ErrNicknameTaken, http.StatusConflict},
		{common.ErrSignUpCompleted, http.StatusConflict},
	}
	seen := map[int]bool{}
	for _, tt := range tests {
		rt, known := responseTypeFor(fmt.Errorf("wrapped: %w", tt.err))
		assert.True(t, known, tt.err.Error())
		assert.Equal(t, tt.status, rt.status, tt.err.Error())
		assert.False(t, seen[rt.code], "duplicate code %d", rt.code)
		seen[rt.code] = true
	}

	rt, known := responseTypeFor(fmt.Errorf("boom"))
	assert.False(t, known)
	assert.Equal(t, http.StatusInternalServerError, rt.status)
}

func TestDecodeJSONBody_AllowsPayloadWithinLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refreshToken":"r"}`))
	rec := httptest.NewRecorder()

	var dst struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, decodeJSONBody(rec, req, &dst))
	assert.Equal(t, "r", dst.RefreshToken)
}

func TestDecodeJSONBody_RejectsPayloadExceedingLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"introduction":"`)
	b.WriteString(strings.Repeat("a", int(maxJSONBodyBytes)))
	b.WriteString(`"}`)

	req := httptest.NewRequest(http.MethodPost, "/mypage/introduction", strings.NewReader(b.String()))
	rec := httptest.NewRecorder()

	var dst map[string]string
	err := decodeJSONBody(rec, req, &dst)
	require.ErrorIs(t, err, errPayloadTooLarge)

	rec = httptest.NewRecorder()
	writeJSONError(rec, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWriteErrorSetsChallengeOnlyFor401(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, tokenExpired, "")
	assert.Equal(t, common.TokenType, rec.Header().Get("WWW-Authenticate"))

	rec = httptest.NewRecorder()
	writeError(rec, nicknameTaken, "minji")
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	assert.Contains(t, rec.Body.String(), "nickname already taken: minji")
}
