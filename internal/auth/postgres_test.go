package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGAccountsFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "email", "password_hash", "role", "first_name", "last_name",
		"active", "oauth_provider", "oauth_id", "created_at", "updated_at",
	}).AddRow("acct-1", "alice@example.com", "$argon2id$digest", "candidate", "Alice", "A",
		true, nil, nil, now, now)
	mock.ExpectQuery("select .* from accounts where email=").
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	store := NewPGStore(db)
	acct, err := store.Accounts().FindByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if acct.ID != "acct-1" || acct.Role != RoleCandidate || !acct.Active {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if acct.OAuthProvider != "" || acct.OAuthID != "" {
		t.Fatalf("null oauth columns must scan empty: %+v", acct)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGAccountsFindMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select .* from accounts where id=").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := NewPGStore(db).Accounts().Find(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGAccountsCreateConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into accounts").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err = NewPGStore(db).Accounts().Create(context.Background(), &Account{
		ID:    "acct-1",
		Email: "alice@example.com",
		Role:  RoleCandidate,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPGSessionsRevokeAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update refresh_sessions set revoked=true where account_id=").
		WithArgs("acct-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := NewPGStore(db).Sessions().RevokeAllForAccount(context.Background(), "acct-1"); err != nil {
		t.Fatalf("RevokeAllForAccount: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGSessionsDeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().UTC()
	mock.ExpectExec("delete from refresh_sessions where expires_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := NewPGStore(db).Sessions().DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 deleted rows, got %d", n)
	}
}

func TestPGAuditAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &AuditEntry{
		ID:          "audit-1",
		ActorID:     "acct-1",
		Action:      ActionLogin,
		SubjectType: "account",
		SubjectID:   "acct-1",
		Payload:     map[string]any{"email": "alice@example.com"},
		CreatedAt:   time.Now().UTC(),
	}
	if err := NewPGStore(db).Audit().Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGAccountsUpdatePasswordMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update accounts set password_hash=").
		WithArgs("ghost", "digest").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPGStore(db).Accounts().UpdatePassword(context.Background(), "ghost", "digest")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
