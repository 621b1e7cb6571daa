package common

import "crypto/rand"

// GenerateRandByteArray returns n bytes from crypto/rand.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

// WipeByteArray zeroes b in place. Used for key material once it has been
// handed to its consumer.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
