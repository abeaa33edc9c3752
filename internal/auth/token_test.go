package auth

import (
	"strings"
	"testing"
	"time"
)

func testCodec(t *testing.T, now *time.Time) *Codec {
	t.Helper()
	codec, err := NewCodec("test-signing-secret", 30*time.Minute, 7*24*time.Hour,
		WithCodecClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)

	token, exp, err := codec.EncodeAccess("acct-1")
	if err != nil {
		t.Fatalf("EncodeAccess: %v", err)
	}
	if got := now.Add(30 * time.Minute); !exp.Equal(got) {
		t.Fatalf("expiry = %v, want %v", exp, got)
	}

	claims, err := codec.DecodeAccess(token)
	if err != nil {
		t.Fatalf("DecodeAccess: %v", err)
	}
	if claims.AccountID != "acct-1" {
		t.Fatalf("unexpected subject: %s", claims.AccountID)
	}
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, &now)

	token, jti, _, err := codec.EncodeRefresh("acct-1")
	if err != nil {
		t.Fatalf("EncodeRefresh: %v", err)
	}
	if jti == "" {
		t.Fatal("expected a jti")
	}
	claims, err := codec.DecodeRefresh(token)
	if err != nil {
		t.Fatalf("DecodeRefresh: %v", err)
	}
	if claims.JTI != jti {
		t.Fatalf("jti mismatch: %s vs %s", claims.JTI, jti)
	}

	_, jti2, _, err := codec.EncodeRefresh("acct-1")
	if err != nil {
		t.Fatalf("EncodeRefresh: %v", err)
	}
	if jti2 == jti {
		t.Fatal("jti must be fresh per token")
	}
}

func TestDecodeRejectsWrongType(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, &now)

	access, _, err := codec.EncodeAccess("acct-1")
	if err != nil {
		t.Fatalf("EncodeAccess: %v", err)
	}
	if _, err := codec.DecodeRefresh(access); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := codec.DecodeReset(access); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDecodeFailsAfterExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)

	token, _, err := codec.EncodeAccess("acct-1")
	if err != nil {
		t.Fatalf("EncodeAccess: %v", err)
	}
	if _, err := codec.DecodeAccess(token); err != nil {
		t.Fatalf("token should be valid before expiry: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if _, err := codec.DecodeAccess(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestResetTokenLifetimeIsOneHour(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, &now)

	token, exp, err := codec.EncodeReset("alice@example.com")
	if err != nil {
		t.Fatalf("EncodeReset: %v", err)
	}
	if got := now.Add(time.Hour); !exp.Equal(got) {
		t.Fatalf("reset expiry = %v, want %v", exp, got)
	}
	claims, err := codec.DecodeReset(token)
	if err != nil {
		t.Fatalf("DecodeReset: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
}

func TestDecodeFailsClosed(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, &now)

	token, _, err := codec.EncodeAccess("acct-1")
	if err != nil {
		t.Fatalf("EncodeAccess: %v", err)
	}

	// Tampered signature.
	tampered := token[:len(token)-2] + "xx"
	if _, err := codec.DecodeAccess(tampered); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}

	// Signed with a different secret.
	other, err := NewCodec("another-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	foreign, _, err := other.EncodeAccess("acct-1")
	if err != nil {
		t.Fatalf("EncodeAccess: %v", err)
	}
	if _, err := codec.DecodeAccess(foreign); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for foreign token, got %v", err)
	}

	// Garbage.
	for _, tok := range []string{"", "not.a.jwt", strings.Repeat("a", 64)} {
		if _, err := codec.DecodeAccess(tok); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", tok, err)
		}
	}
}
