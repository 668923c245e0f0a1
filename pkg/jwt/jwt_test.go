package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("secret", "live-test")
	token, err := v.Sign("user-1", "Alice", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	identity, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.ID != "user-1" || identity.DisplayName != "Alice" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := NewVerifier("secret", "live-test")

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "garbage",
			token:   func(t *testing.T) string { return "not.a.token" },
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				other := NewVerifier("other-secret", "live-test")
				s, err := other.Sign("user-1", "Alice", time.Minute)
				if err != nil {
					t.Fatalf("Sign: %v", err)
				}
				return s
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				other := NewVerifier("secret", "someone-else")
				s, err := other.Sign("user-1", "Alice", time.Minute)
				if err != nil {
					t.Fatalf("Sign: %v", err)
				}
				return s
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				s, err := v.Sign("user-1", "Alice", -time.Minute)
				if err != nil {
					t.Fatalf("Sign: %v", err)
				}
				return s
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "missing user id",
			token: func(t *testing.T) string {
				s, err := v.Sign("", "Alice", time.Minute)
				if err != nil {
					t.Fatalf("Sign: %v", err)
				}
				return s
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token(t))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyEmptyIssuerSkipsCheck(t *testing.T) {
	signer := NewVerifier("secret", "live-test")
	token, err := signer.Sign("user-1", "Alice", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	lax := NewVerifier("secret", "")
	if _, err := lax.Verify(token); err != nil {
		t.Fatalf("Verify with empty issuer: %v", err)
	}
}
