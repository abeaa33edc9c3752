package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// HashParams are the argon2id cost factors.
type HashParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultHashParams follow current OWASP guidance.
func DefaultHashParams() HashParams {
	return HashParams{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

// Hasher hashes and verifies secrets with argon2id. Both operations are
// CPU-bound and run on a bounded worker pool so a burst of hashing work
// cannot starve request handling; callers queue when the pool is full and
// back out when their context is done.
type Hasher struct {
	params HashParams
	slots  *semaphore.Weighted
}

// NewHasher sizes the pool independently of request concurrency.
func NewHasher(params HashParams, workers int) *Hasher {
	if workers <= 0 {
		workers = 1
	}
	return &Hasher{params: params, slots: semaphore.NewWeighted(int64(workers))}
}

// Hash produces a salted, self-describing digest. Two calls with the same
// secret yield different digests.
func (h *Hasher) Hash(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("hash pool: %w", err)
	}
	defer h.slots.Release(1)

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	digest := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return digest, nil
}

// Verify recomputes the digest with the parameters embedded in it and
// compares in constant time. A mismatch reports (false, nil); errors are
// reserved for cancellation and unparseable digests.
func (h *Hasher) Verify(ctx context.Context, secret, digest string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("hash pool: %w", err)
	}
	defer h.slots.Release(1)

	salt, key, params, err := parseDigest(digest)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(secret), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1, nil
}

func parseDigest(digest string) (salt, key []byte, params HashParams, err error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, params, errors.New("password: malformed digest")
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return nil, nil, params, fmt.Errorf("password: parse cost parameters: %w", err)
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, params, fmt.Errorf("password: decode salt: %w", err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, params, fmt.Errorf("password: decode key: %w", err)
	}
	return salt, key, params, nil
}
