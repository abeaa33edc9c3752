package auth

import "time"

// Role classifies an account's privilege level. The set is closed.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleEmployer  Role = "employer"
	RoleCandidate Role = "candidate"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployer, RoleCandidate:
		return true
	}
	return false
}

// Account represents a registered identity. An account carries a password
// hash, an OAuth binding, or both; PasswordHash is empty for OAuth-only
// accounts.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          Role
	FirstName     string
	LastName      string
	Active        bool
	OAuthProvider string
	OAuthID       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether password login is possible for the account.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// RefreshSession is the server-side record backing a refresh token. Only a
// SHA-256 hash of the token's secret material is stored, never the raw token.
type RefreshSession struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Usable reports whether the session can still mint access tokens.
// Revocation is monotonic: a revoked session never becomes usable again.
func (s *RefreshSession) Usable(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// Audit action vocabulary. Closed set; stores reject nothing, but the
// service only ever emits these.
const (
	ActionRegister             = "register"
	ActionLogin                = "login"
	ActionLogout               = "logout"
	ActionPasswordResetRequest = "password_reset_request"
	ActionPasswordReset        = "password_reset"
	ActionPasswordChange       = "password_change"
	ActionOAuthLogin           = "oauth_login"
	ActionOAuthRegister        = "oauth_register"
)

// AuditEntry is an append-only record of a security-relevant action.
// ActorID is empty for pre-authentication failures.
type AuditEntry struct {
	ID          string
	ActorID     string
	Action      string
	SubjectType string
	SubjectID   string
	Payload     map[string]any
	CreatedAt   time.Time
}
