package models

// Identity is what a social provider asserts about the person signing in.
// It is never persisted as such.
type Identity struct {
	Provider        string
	ProviderUserID  string
	Email           string
	ProfileImageURL string
	Gender          string
}
