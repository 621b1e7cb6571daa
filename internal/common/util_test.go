package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestGenerateRandByteArray_Length(t *testing.T) {
	const n = 32
	if got := GenerateRandByteArray(n); len(got) != n {
		t.Fatalf("expected length %d, got %d", n, len(got))
	}
}

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
	WipeByteArray(nil)
}

func TestIsTokenError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrMalformedSignature, true},
		{ErrTokenExpired, true},
		{fmt.Errorf("parse: %w", ErrUnsupportedToken), true},
		{ErrMalformedToken, true},
		{ErrUnknownSubject, false},
		{ErrInvalidRefreshToken, false},
		{errors.New("other"), false},
		{nil, false},
	}
	for _, tc := range tests {
		if got := IsTokenError(tc.err); got != tc.want {
			t.Fatalf("IsTokenError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
