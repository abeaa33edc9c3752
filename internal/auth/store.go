package auth

import (
	"context"
	"time"
)

// AccountStore persists identity records.
type AccountStore interface {
	// Create inserts the account. Returns ErrConflict when the email or the
	// (provider, oauth id) pair is already taken.
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByOAuth(ctx context.Context, provider, oauthID string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// LinkOAuth binds an external identity to an existing account.
	LinkOAuth(ctx context.Context, id, provider, oauthID string) error
}

// SessionStore persists refresh sessions.
type SessionStore interface {
	Create(ctx context.Context, s *RefreshSession) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*RefreshSession, error)
	// Revoke flips the revoked flag. Idempotent.
	Revoke(ctx context.Context, id string) error
	// RevokeAllForAccount is a single bulk update, not a read-then-write
	// loop, so sessions created concurrently are not lost.
	RevokeAllForAccount(ctx context.Context, accountID string) error
	// DeleteExpired removes sessions whose expiry precedes cutoff and
	// returns the number of rows removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditSink appends immutable entries.
type AuditSink interface {
	Append(ctx context.Context, e *AuditEntry) error
}
