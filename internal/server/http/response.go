package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/logging"
)

// envelope is the body of every API response.
type envelope struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// responseType pairs an HTTP status with the API code and message
// clients switch on.
type responseType struct {
	status  int
	code    int
	message string
}

var (
	callbackSuccess     = responseType{http.StatusOK, 20001, "token issued from authorization code"}
	loginSuccess        = responseType{http.StatusOK, 20002, "login succeeded"}
	signUpSuccess       = responseType{http.StatusOK, 20003, "sign-up completed"}
	refreshSuccess      = responseType{http.StatusOK, 20004, "token refreshed"}
	nicknameSuccess     = responseType{http.StatusOK, 20005, "nickname checked"}
	introductionSuccess = responseType{http.StatusOK, 20006, "introduction updated"}
	profileImageSuccess = responseType{http.StatusOK, 20007, "profile image upload url issued"}
	myPageSuccess       = responseType{http.StatusOK, 20008, "my page loaded"}
	logoutSuccess       = responseType{http.StatusOK, 20009, "logged out"}
	quitSuccess         = responseType{http.StatusOK, 20010, "member quit"}

	invalidParameter   = responseType{http.StatusBadRequest, 40001, "invalid parameter"}
	invalidBody        = responseType{http.StatusBadRequest, 40002, "invalid request body"}
	missingToken       = responseType{http.StatusUnauthorized, 40100, "authentication required"}
	malformedSignature = responseType{http.StatusUnauthorized, 40101, "malformed token signature"}
	tokenExpired       = responseType{http.StatusUnauthorized, 40102, "token expired"}
	unsupportedToken   = responseType{http.StatusUnauthorized, 40103, "unsupported token"}
	malformedToken     = responseType{http.StatusUnauthorized, 40104, "malformed token"}
	unknownSubject     = responseType{http.StatusUnauthorized, 40105, "unknown member"}
	invalidRefresh     = responseType{http.StatusUnauthorized, 40106, "invalid refresh token"}
	invalidCredential  = responseType{http.StatusUnauthorized, 40107, "provider rejected the credential"}
	unsupportedProv    = responseType{http.StatusNotFound, 40401, "unsupported provider"}
	nicknameTaken      = responseType{http.StatusConflict, 40901, "nickname already taken"}
	signUpCompleted    = responseType{http.StatusConflict, 40902, "sign-up already completed"}
	payloadTooLarge    = responseType{http.StatusRequestEntityTooLarge, 41301, "payload too large"}
	rateLimited        = responseType{http.StatusTooManyRequests, 42901, "too many requests"}
	internalError      = responseType{http.StatusInternalServerError, 50001, "unexpected error"}
	providerDown       = responseType{http.StatusBadGateway, 50201, "provider unavailable"}
	imagesDisabled     = responseType{http.StatusServiceUnavailable, 50301, "profile images are not configured"}
)

// errorTypes maps the error taxonomy onto responses, first match wins.
var errorTypes = []struct {
	err error
	rt  responseType
}{
	{common.ErrMalformedSignature, malformedSignature},
	{common.ErrTokenExpired, tokenExpired},
	{common.ErrUnsupportedToken, unsupportedToken},
	{common.ErrMalformedToken, malformedToken},
	{common.ErrUnknownSubject, unknownSubject},
	{common.ErrInvalidRefreshToken, invalidRefresh},
	{common.ErrInvalidCredential, invalidCredential},
	{common.ErrUnsupportedProvider, unsupportedProv},
	{common.ErrProviderUnavailable, providerDown},
	{common.ErrInvalidParameter, invalidParameter},
	{common.ErrNicknameTaken, nicknameTaken},
	{common.ErrSignUpCompleted, signUpCompleted},
	{errPayloadTooLarge, payloadTooLarge},
}

func responseTypeFor(err error) (responseType, bool) {
	for _, e := range errorTypes {
		if errors.Is(err, e.err) {
			return e.rt, true
		}
	}
	return internalError, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, rt responseType, data any) {
	writeJSON(w, rt.status, envelope{Status: rt.status, Code: rt.code, Message: rt.message, Data: data})
}

func writeError(w http.ResponseWriter, rt responseType, detail string) {
	if rt.status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", common.TokenType)
	}
	msg := rt.message
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", rt.message, detail)
	}
	writeJSON(w, rt.status, envelope{Status: rt.status, Code: rt.code, Message: msg})
}

// handleServiceError writes the response for err. Only unexpected errors
// are logged at Error; their details never reach the client.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, logger logging.Logger) {
	rt, known := responseTypeFor(err)
	if !known {
		logger.Error(ctx, "service error", "error", err)
		writeError(w, rt, "")
		return
	}
	logger.Debug(ctx, "request rejected", "code", rt.code, "error", err)
	writeError(w, rt, "")
}
