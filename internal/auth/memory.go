package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process implementation of the three persistence
// contracts. It backs tests and DSN-less local runs; it is not durable.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	sessions map[string]*RefreshSession
	entries  []*AuditEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		sessions: make(map[string]*RefreshSession),
	}
}

// Accounts exposes the AccountStore view.
func (m *MemoryStore) Accounts() AccountStore { return (*memoryAccounts)(m) }

// Sessions exposes the SessionStore view.
func (m *MemoryStore) Sessions() SessionStore { return (*memorySessions)(m) }

// Audit exposes the AuditSink view.
func (m *MemoryStore) Audit() AuditSink { return (*memoryAudit)(m) }

// AuditEntries returns a snapshot of appended entries, oldest first.
func (m *MemoryStore) AuditEntries() []*AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Account store --------------------------------------------------------

type memoryAccounts MemoryStore

func (m *memoryAccounts) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return ErrConflict
		}
		if a.OAuthProvider != "" && existing.OAuthProvider == a.OAuthProvider && existing.OAuthID == a.OAuthID {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	cp := *a
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.accounts[a.ID] = &cp
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (m *memoryAccounts) Find(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryAccounts) FindByOAuth(_ context.Context, provider, oauthID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.OAuthProvider == provider && a.OAuthID == oauthID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryAccounts) LinkOAuth(_ context.Context, id, provider, oauthID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	for _, other := range m.accounts {
		if other.ID != id && other.OAuthProvider == provider && other.OAuthID == oauthID {
			return ErrConflict
		}
	}
	a.OAuthProvider = provider
	a.OAuthID = oauthID
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Session store --------------------------------------------------------

type memorySessions MemoryStore

func (m *memorySessions) Create(_ context.Context, s *RefreshSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memorySessions) FindByTokenHash(_ context.Context, tokenHash string) (*RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memorySessions) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Revoked = true
	}
	return nil
}

func (m *memorySessions) RevokeAllForAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.AccountID == accountID {
			s.Revoked = true
		}
	}
	return nil
}

func (m *memorySessions) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Audit sink -----------------------------------------------------------

type memoryAudit MemoryStore

func (m *memoryAudit) Append(_ context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}
