package service

import (
	"context"
	"sync"
	"time"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stores. Each write holds the mutex for the whole conditional
// update, mirroring the single-document atomicity of the real stores.
// ---------------------------------------------------------------------------

type memAccountRepo struct {
	mu        sync.Mutex
	byName    map[string]*domain.Account
	createErr error
	// commitErr is returned after the account has been stored, like a
	// write whose acknowledgement was lost.
	commitErr error
	findErr   error
	deleteErr error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byName: make(map[string]*domain.Account)}
}

func (r *memAccountRepo) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byName[a.Username]; ok {
		return domain.ErrUserExists
	}
	cp := *a
	r.byName[a.Username] = &cp
	return r.commitErr
}

func (r *memAccountRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	a, ok := r.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAccountRepo) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.byName[username]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byName, username)
	return nil
}

func (r *memAccountRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

type memInviteRepo struct {
	mu      sync.Mutex
	order   []string
	byValue map[string]*domain.InviteToken
}

func newMemInviteRepo() *memInviteRepo {
	return &memInviteRepo{byValue: make(map[string]*domain.InviteToken)}
}

func (r *memInviteRepo) Create(_ context.Context, t *domain.InviteToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byValue[t.Value] = &cp
	r.order = append(r.order, t.Value)
	return nil
}

func (r *memInviteRepo) List(_ context.Context, issuer string) ([]*domain.InviteToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.InviteToken, 0, len(r.order))
	for _, v := range r.order {
		t, ok := r.byValue[v]
		if !ok || (issuer != "" && t.IssuedBy != issuer) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memInviteRepo) Find(_ context.Context, value string) (*domain.InviteToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byValue[value]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memInviteRepo) Consume(_ context.Context, value, username string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byValue[value]
	if !ok || !t.Usable(now) {
		return domain.ErrTokenNotFound
	}
	t.Consumed = true
	t.ConsumedBy = username
	return nil
}

func (r *memInviteRepo) Release(_ context.Context, value, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byValue[value]
	if !ok || !t.Consumed || t.ConsumedBy != username {
		return domain.ErrTokenNotFound
	}
	t.Consumed = false
	t.ConsumedBy = ""
	return nil
}

func (r *memInviteRepo) Delete(_ context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byValue[value]
	if !ok || t.Consumed {
		return domain.ErrTokenNotFound
	}
	delete(r.byValue, value)
	return nil
}

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *recordingAudit) Record(_ context.Context, e domain.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) types() []domain.AuthEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuthEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

type stubRevoker struct {
	err          error
	revoked      []string
	revokedUsers []string
	// onRevoke lets a test observe ordering against other collaborators.
	onRevoke func()
}

func (r *stubRevoker) Revoke(_ context.Context, sess *domain.Session) error {
	if r.onRevoke != nil {
		r.onRevoke()
	}
	if r.err != nil {
		return r.err
	}
	r.revoked = append(r.revoked, sess.ID)
	return nil
}

func (r *stubRevoker) RevokeUser(_ context.Context, username string) error {
	if r.onRevoke != nil {
		r.onRevoke()
	}
	if r.err != nil {
		return r.err
	}
	r.revokedUsers = append(r.revokedUsers, username)
	return nil
}

// fixedClock returns a clock frozen at t; advance moves it forward.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
