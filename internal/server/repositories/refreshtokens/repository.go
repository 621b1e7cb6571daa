// Package refreshtokens stores the single live refresh token of each user.
// Tokens are never persisted in the clear: stores keep a keyed BLAKE2b
// digest and compare digests in constant time.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/kiwes/internal/server/models"
)

// Repository defines the refresh token slot of a user.
type Repository interface {
	// Save upserts the user's slot, replacing whatever token it held.
	Save(ctx context.Context, token *models.RefreshToken) error

	// IsCurrent reports whether token is the one held in the user's slot.
	// A missing or expired slot is not an error; it yields false.
	IsCurrent(ctx context.Context, token string, userID string) (bool, error)

	// Delete empties the user's slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context, userID string) error
}
