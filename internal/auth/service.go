package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iqautojobs/identity/internal/ids"
	"github.com/iqautojobs/identity/internal/obs"
)

// Mailer delivers the password-reset token out of band. The real
// transport (SMTP, queue) lives outside this package.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Service implements the credential and session lifecycle: registration,
// login, token refresh, logout, password reset and change, and OAuth
// identity resolution. Every operation validates input, consults the
// stores, and writes an audit entry before returning.
type Service struct {
	accounts AccountStore
	sessions SessionStore
	audit    AuditSink
	hasher   *Hasher
	codec    *Codec

	mailer Mailer
	log    zerolog.Logger
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithMailer sets the reset-token delivery collaborator.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) { s.mailer = m }
}

// WithLogger overrides the service logger.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source (test use).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the collaborators together.
func NewService(accounts AccountStore, sessions SessionStore, audit AuditSink, hasher *Hasher, codec *Codec, opts ...ServiceOption) *Service {
	s := &Service{
		accounts: accounts,
		sessions: sessions,
		audit:    audit,
		hasher:   hasher,
		codec:    codec,
		log:      obs.Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenPair carries both raw bearer tokens back to the caller. The raw
// refresh token exists only here; the store keeps its hash.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

/// AccessGrant is the result of a pure refresh: a new access token only.
type AccessGrant struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthResult is returned by every operation that authenticates an account.
type AuthResult struct {
	Tokens  TokenPair
	Account *Account
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email     string
	Password  string
	Role      Role
	FirstName string
	LastName  string
}

// Register creates an account, issues a token pair, and audits the event.
// Duplicate email is a Conflict; this deliberately reveals existence (see
// DESIGN.md).
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, s.deny(ActionRegister, fmt.Errorf("%w: email and password are required", ErrInvalidInput))
	}
	if !in.Role.Valid() {
		return nil, s.deny(ActionRegister, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role))
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, s.deny(ActionRegister, fmt.Errorf("%w: account with this email already exists", ErrConflict))
	} else if !errors.Is(err, ErrNotFound) {
		return nil, s.fail(ActionRegister, err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, s.fail(ActionRegister, err)
	}

	acct := &Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, s.deny(ActionRegister, fmt.Errorf("%w: account with this email already exists", ErrConflict))
		}
		return nil, s.fail(ActionRegister, err)
	}

	pair, err := s.issueTokens(ctx, acct)
	if err != nil {
		return nil, s.fail(ActionRegister, err)
	}

	s.writeAudit(ctx, &AuditEntry{
		ActorID:     acct.ID,
		Action:      ActionRegister,
		SubjectType: "account",
		SubjectID:   acct.ID,
		Payload:     map[string]any{"email": acct.Email, "role": string(acct.Role)},
	})
	obs.RecordAuthOp(ActionRegister, "ok")
	return &AuthResult{Tokens: *pair, Account: acct}, nil
}

// Login authenticates by email and password. Every credential failure
// surfaces the same message so accounts cannot be enumerated.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.deny(ActionLogin, badCredentials())
		}
		return nil, s.fail(ActionLogin, err)
	}
	if !acct.HasPassword() {
		return nil, s.deny(ActionLogin, badCredentials())
	}
	ok, err := s.hasher.Verify(ctx, password, acct.PasswordHash)
	if err != nil {
		return nil, s.fail(ActionLogin, err)
	}
	if !ok {
		return nil, s.deny(ActionLogin, badCredentials())
	}
	if !acct.Active {
		return nil, s.deny(ActionLogin, fmt.Errorf("%w: account deactivated", ErrUnauthorized))
	}

	pair, err := s.issueTokens(ctx, acct)
	if err != nil {
		return nil, s.fail(ActionLogin, err)
	}

	s.writeAudit(ctx, &AuditEntry{
		ActorID:     acct.ID,
		Action:      ActionLogin,
		SubjectType: "account",
		SubjectID:   acct.ID,
		Payload:     map[string]any{"email": acct.Email},
	})
	obs.RecordAuthOp(ActionLogin, "ok")
	return &AuthResult{Tokens: *pair, Account: acct}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// session is not rotated; it stays live until explicit revocation.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*AccessGrant, error) {
	if _, err := s.codec.DecodeRefresh(rawRefreshToken); err != nil {
		return nil, s.deny("refresh", staleRefresh())
	}

	sess, err := s.sessions.FindByTokenHash(ctx, HashToken(rawRefreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.deny("refresh", staleRefresh())
		}
		return nil, s.fail("refresh", err)
	}
	if !sess.Usable(s.now()) {
		return nil, s.deny("refresh", staleRefresh())
	}

	acct, err := s.accounts.Find(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.deny("refresh", staleRefresh())
		}
		return nil, s.fail("refresh", err)
	}
	if !acct.Active {
		return nil, s.deny("refresh", staleRefresh())
	}

	token, exp, err := s.codec.EncodeAccess(acct.ID)
	if err != nil {
		return nil, s.fail("refresh", err)
	}
	obs.RecordAuthOp("refresh", "ok")
	return &AccessGrant{AccessToken: token, ExpiresAt: exp}, nil
}

// Logout revokes the session behind the token. Unknown tokens succeed
// silently; logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, rawRefreshToken, actorID string) error {
	sess, err := s.sessions.FindByTokenHash(ctx, HashToken(rawRefreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.RecordAuthOp(ActionLogout, "ok")
			return nil
		}
		return s.fail(ActionLogout, err)
	}

	if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
		return s.fail(ActionLogout, err)
	}

	s.writeAudit(ctx, &AuditEntry{
		ActorID:     actorID,
		Action:      ActionLogout,
		SubjectType: "account",
		SubjectID:   sess.AccountID,
	})
	obs.RecordAuthOp(ActionLogout, "ok")
	return nil
}

// RequestPasswordReset mints and delivers a reset token when the email is
// known. The response is identical either way; unknown emails are not
// revealed.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.RecordAuthOp(ActionPasswordResetRequest, "ok")
			return nil
		}
		return s.fail(ActionPasswordResetRequest, err)
	}

	token, _, err := s.codec.EncodeReset(acct.Email)
	if err != nil {
		return s.fail(ActionPasswordResetRequest, err)
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, acct.Email, token); err != nil {
			return s.fail(ActionPasswordResetRequest, err)
		}
	}

	s.writeAudit(ctx, &AuditEntry{
		ActorID:     acct.ID,
		Action:      ActionPasswordResetRequest,
		SubjectType: "account",
		SubjectID:   acct.ID,
		Payload:     map[string]any{"email": acct.Email},
	})
	obs.RecordAuthOp(ActionPasswordResetRequest, "ok")
	return nil
}

// ResetPassword consumes a reset token, stores the new password, and
// revokes every refresh session for the account.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.codec.DecodeReset(resetToken)
	if err != nil {
		return s.deny(ActionPasswordReset, fmt.Errorf("%w: invalid or expired reset token", ErrUnauthorized))
	}
	if newPassword == "" {
		return s.deny(ActionPasswordReset, fmt.Errorf("%w: new password is required", ErrInvalidInput))
	}

	acct, err := s.accounts.FindByEmail(ctx, NormalizeEmail(claims.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.deny(ActionPasswordReset, fmt.Errorf("%w: account not found", ErrNotFound))
		}
		return s.fail(ActionPasswordReset, err)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return s.fail(ActionPasswordReset, err)
	}
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return s.fail(ActionPasswordReset, err)
	}
	if err := s.sessions.RevokeAllForAccount(ctx, acct.ID); err != nil {
		return s.fail(ActionPasswordReset, err)
	}

	s.writeAudit(ctx, &AuditEntry{
		ActorID:     acct.ID,
		Action:      ActionPasswordReset,
		SubjectType: "account",
		SubjectID:   acct.ID,
	})
	obs.RecordAuthOp(ActionPasswordReset, "ok")
	return nil
}

// ChangePassword verifies the current password before storing the new one
// and revoking every refresh session for the account.
func (s *Service) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	acct, err := s.accounts.Find(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.deny(ActionPasswordChange, fmt.Errorf("%w: account not found", ErrNotFound))
		}
		return s.fail(ActionPasswordChange, err)
	}
	if newPassword == "" {
		return s.deny(ActionPasswordChange, fmt.Errorf("%w: new password is required", ErrInvalidInput))
	}

	ok := acct.HasPassword()
	if ok {
		ok, err = s.hasher.Verify(ctx, currentPassword, acct.PasswordHash)
		if err != nil {
			return s.fail(ActionPasswordChange, err)
		}
	}
	if !ok {
		return s.deny(ActionPasswordChange, fmt.Errorf("%w: current password is incorrect", ErrUnauthorized))
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return s.fail(ActionPasswordChange, err)
	}
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return s.fail(ActionPasswordChange, err)
	}
	if err := s.sessions.RevokeAllForAccount(ctx, acct.ID); err != nil {
		return s.fail(ActionPasswordChange, err)
	}

	s.writeAudit(ctx, &AuditEntry{
		ActorID:     acct.ID,
		Action:      ActionPasswordChange,
		SubjectType: "account",
		SubjectID:   acct.ID,
	})
	obs.RecordAuthOp(ActionPasswordChange, "ok")
	return nil
}

// CurrentUser resolves an access token to its account. A bad token or a
// missing/inactive account yields (nil, nil): "no user", which transports
// map to 401. Errors are infrastructure failures only. No audit entry;
// this runs on every authenticated request.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*Account, error) {
	claims, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, nil
	}
	acct, err := s.accounts.Find(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !acct.Active {
		return nil, nil
	}
	return acct, nil
}

// OAuthLogin resolves an external identity to a local account: match by
// (provider, external id) first, then link by email, then register a new
// password-less account with the least-privileged role.
func (s *Service) OAuthLogin(ctx context.Context, provider, oauthID, email, firstName, lastName string) (*AuthResult, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	email = NormalizeEmail(email)
	if provider == "" || oauthID == "" || email == "" {
		return nil, s.deny(ActionOAuthLogin, fmt.Errorf("%w: provider, external id, and email are required", ErrInvalidInput))
	}

	acct, err := s.accounts.FindByOAuth(ctx, provider, oauthID)
	switch {
	case err == nil:
		return s.finishOAuth(ctx, acct, ActionOAuthLogin, provider)
	case !errors.Is(err, ErrNotFound):
		return nil, s.fail(ActionOAuthLogin, err)
	}

	acct, err = s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		// Existing password-based account: bind the external identity to it.
		if err := s.accounts.LinkOAuth(ctx, acct.ID, provider, oauthID); err != nil {
			return nil, s.fail(ActionOAuthLogin, err)
		}
		acct.OAuthProvider = provider
		acct.OAuthID = oauthID
		return s.finishOAuth(ctx, acct, ActionOAuthLogin, provider)
	case !errors.Is(err, ErrNotFound):
		return nil, s.fail(ActionOAuthLogin, err)
	}

	acct = &Account{
		ID:            ids.New(),
		Email:         email,
		Role:          RoleCandidate,
		FirstName:     firstName,
		LastName:      lastName,
		Active:        true,
		OAuthProvider: provider,
		OAuthID:       oauthID,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, s.fail(ActionOAuthRegister, err)
	}
	return s.finishOAuth(ctx, acct, ActionOAuthRegister, provider)
}

func (s *Service) finishOAuth(ctx context.Context, acct *Account, action, provider string) (*AuthResult, error) {
	if !acct.Active {
		return nil, s.deny(action, fmt.Errorf("%w: account deactivated", ErrUnauthorized))
	}

	s.writeAudit(ctx, &AuditEntry{
		ActorID:     acct.ID,
		Action:      action,
		SubjectType: "account",
		SubjectID:   acct.ID,
		Payload:     map[string]any{"email": acct.Email, "provider": provider},
	})

	pair, err := s.issueTokens(ctx, acct)
	if err != nil {
		return nil, s.fail(action, err)
	}
	obs.RecordAuthOp(action, "ok")
	return &AuthResult{Tokens: *pair, Account: acct}, nil
}

// SweepSessions deletes refresh sessions that expired before now. Runs
// off the request path, on a timer.
func (s *Service) SweepSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("swept expired refresh sessions")
	}
	return n, nil
}

// issueTokens builds the access/refresh pair and persists the session row.
// The account row must already be durable: a session never references a
// nonexistent account.
func (s *Service) issueTokens(ctx context.Context, acct *Account) (*TokenPair, error) {
	access, accessExp, err := s.codec.EncodeAccess(acct.ID)
	if err != nil {
		return nil, err
	}
	refresh, _, refreshExp, err := s.codec.EncodeRefresh(acct.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, &RefreshSession{
		ID:        ids.New(),
		AccountID: acct.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// writeAudit appends best-effort: a failed audit write is logged, never
// propagated into the primary operation.
func (s *Service) writeAudit(ctx context.Context, e *AuditEntry) {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if err := s.audit.Append(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("action", e.Action).Msg("audit append failed")
	}
}

func (s *Service) deny(op string, err error) error {
	obs.RecordAuthOp(op, "denied")
	return err
}

func (s *Service) fail(op string, err error) error {
	obs.RecordAuthOp(op, "error")
	return err
}

func badCredentials() error {
	return fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
}

func staleRefresh() error {
	return fmt.Errorf("%w: invalid or expired refresh token", ErrUnauthorized)
}

// NormalizeEmail lowercases and trims; emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// HashToken returns the hex SHA-256 of a raw token. Deterministic, so the
// session store can be queried by hash without ever holding the raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
