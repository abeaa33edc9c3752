package auth

import (
	"context"
	"strings"
	"testing"
)

func testHasher() *Hasher {
	// Low cost factors keep the suite fast; correctness is unaffected.
	return NewHasher(HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}, 2)
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := testHasher()
	ctx := context.Background()

	digest, err := h.Hash(ctx, "Secret123!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("unexpected digest format: %s", digest)
	}

	ok, err := h.Verify(ctx, "Secret123!", digest)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = h.Verify(ctx, "wrong-password", digest)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected mismatching password to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := testHasher()
	ctx := context.Background()

	a, err := h.Hash(ctx, "same-secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash(ctx, "same-secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same secret must differ")
	}
}

func TestHashRejectsEmptySecret(t *testing.T) {
	if _, err := testHasher().Hash(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := testHasher()
	for _, digest := range []string{"", "plain", "$bcrypt$whatever", "$argon2id$v=19$m=a,t=b,p=c$x$y"} {
		if ok, err := h.Verify(context.Background(), "pw", digest); ok || err == nil {
			t.Fatalf("digest %q: expected (false, err), got (%v, %v)", digest, ok, err)
		}
	}
}

func TestHashHonorsCancellation(t *testing.T) {
	h := testHasher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "secret"); err == nil {
		t.Fatal("expected error from canceled context")
	}
	if _, err := h.Verify(ctx, "secret", "$argon2id$"); err == nil {
		t.Fatal("expected error from canceled context")
	}
}
