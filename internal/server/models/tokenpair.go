package models

// TokenPair is returned to clients on login and refresh.
type TokenPair struct {
	TokenType              string `json:"tokenType"`
	AccessToken            string `json:"accessToken"`
	RefreshToken           string `json:"refreshToken"`
	RefreshValiditySeconds int64  `json:"refreshValiditySeconds"`
}
