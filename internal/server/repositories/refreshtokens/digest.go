package refreshtokens

import (
	"crypto/subtle"

	"golang.org/x/crypto/blake2b"
)

// Digester turns raw refresh tokens into keyed digests for storage.
type Digester struct {
	key [32]byte
}

// NewDigester derives the MAC key from secret, which may be of any length.
func NewDigester(secret []byte) *Digester {
	return &Digester{key: blake2b.Sum256(append([]byte("kiwes/refresh-token/"), secret...))}
}

// Sum returns the 32-byte digest of token.
func (d *Digester) Sum(token string) []byte {
	h, err := blake2b.New256(d.key[:])
	if err != nil {
		// only possible for keys longer than 64 bytes
		panic(err)
	}
	h.Write([]byte(token))
	return h.Sum(nil)
}

// Matches compares token against a stored digest in constant time.
func (d *Digester) Matches(token string, digest []byte) bool {
	return subtle.ConstantTimeCompare(d.Sum(token), digest) == 1
}
