package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// PGStore implements the persistence contracts on PostgreSQL. It hands
// out per-entity views over one *sql.DB, mirroring the schema in
// migrations/sql.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Accounts exposes the AccountStore view.
func (s *PGStore) Accounts() AccountStore { return &pgAccounts{db: s.db} }

// Sessions exposes the SessionStore view.
func (s *PGStore) Sessions() SessionStore { return &pgSessions{db: s.db} }

// Audit exposes the AuditSink view.
func (s *PGStore) Audit() AuditSink { return &pgAudit{db: s.db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Account store --------------------------------------------------------

type pgAccounts struct{ db *sql.DB }

const accountColumns = `id, email, password_hash, role, first_name, last_name, active, oauth_provider, oauth_id, created_at, updated_at`

func (s *pgAccounts) Create(ctx context.Context, a *Account) error {
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, email, password_hash, role, first_name, last_name, active, oauth_provider, oauth_id)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.Email, nullString(a.PasswordHash), string(a.Role), a.FirstName, a.LastName, a.Active,
		nullString(a.OAuthProvider), nullString(a.OAuthID),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *pgAccounts) Find(ctx context.Context, id string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1`, id))
}

func (s *pgAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where email=$1`, email))
}

func (s *pgAccounts) FindByOAuth(ctx context.Context, provider, oauthID string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where oauth_provider=$1 and oauth_id=$2`, provider, oauthID))
}

func (s *pgAccounts) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgAccounts) LinkOAuth(ctx context.Context, id, provider, oauthID string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set oauth_provider=$2, oauth_id=$3, updated_at=now() where id=$1`, id, provider, oauthID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return requireRow(res)
}

func scanAccount(row *sql.Row) (*Account, error) {
	var (
		a        Account
		hash     sql.NullString
		provider sql.NullString
		oauthID  sql.NullString
		role     string
	)
	err := row.Scan(&a.ID, &a.Email, &hash, &role, &a.FirstName, &a.LastName, &a.Active, &provider, &oauthID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.PasswordHash = hash.String
	a.Role = Role(role)
	a.OAuthProvider = provider.String
	a.OAuthID = oauthID.String
	return &a, nil
}

// Session store --------------------------------------------------------

type pgSessions struct{ db *sql.DB }

func (s *pgSessions) Create(ctx context.Context, sess *RefreshSession) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_sessions(id, account_id, token_hash, expires_at, revoked)
		 values($1,$2,$3,$4,false)`,
		sess.ID, sess.AccountID, sess.TokenHash, sess.ExpiresAt,
	)
	return err
}

func (s *pgSessions) FindByTokenHash(ctx context.Context, tokenHash string) (*RefreshSession, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, account_id, token_hash, expires_at, revoked, created_at
		 from refresh_sessions where token_hash=$1`, tokenHash)
	var sess RefreshSession
	if err := row.Scan(&sess.ID, &sess.AccountID, &sess.TokenHash, &sess.ExpiresAt, &sess.Revoked, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *pgSessions) Revoke(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_sessions set revoked=true where id=$1`, id)
	return err
}

func (s *pgSessions) RevokeAllForAccount(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_sessions set revoked=true where account_id=$1`, accountID)
	return err
}

func (s *pgSessions) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_sessions where expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Audit sink -----------------------------------------------------------

type pgAudit struct{ db *sql.DB }

func (s *pgAudit) Append(ctx context.Context, e *AuditEntry) error {
	payload, _ := json.Marshal(e.Payload)
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, actor_id, action, subject_type, subject_id, payload, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, nullString(e.ActorID), e.Action, e.SubjectType, e.SubjectID, payload, e.CreatedAt,
	)
	return err
}

// helpers --------------------------------------------------------------

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
