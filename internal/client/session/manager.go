package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

// DefaultTTL is how long a credential stays usable after the wallet signs it.
const DefaultTTL = 10 * time.Minute

type cacheKey struct {
	address string
	pkg     string
}

func (k cacheKey) String() string { return k.address + "|" + k.pkg }

// Manager hands out session credentials. Expiry is checked lazily on each
// call; an expired credential is replaced by prompting the wallet again.
type Manager struct {
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger

	mu       sync.Mutex
	sessions map[cacheKey]*seal.SessionCredential
	flights  map[cacheKey]*flight
}

// flight is one open wallet prompt. It is cancelled only once every caller
// waiting on it has gone.
type flight struct {
	done    chan struct{}
	cred    *seal.SessionCredential
	err     error
	waiters int
	cancel  context.CancelFunc
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(ttl time.Duration, logger logging.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With("module", "session"),
		sessions: map[cacheKey]*seal.SessionCredential{},
		flights:  map[cacheKey]*flight{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) cached(k cacheKey) (*seal.SessionCredential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cachedLocked(k)
}

func (m *Manager) cachedLocked(k cacheKey) (*seal.SessionCredential, bool) {
	s, ok := m.sessions[k]
	if !ok {
		return nil, false
	}
	if s.Expired(m.now()) {
		delete(m.sessions, k)
		return nil, false
	}
	return s, true
}

// GetOrCreate returns a live credential for signer's address and packageID,
// asking signer to certify a new session key when none is cached. Callers
// arriving while a prompt is open wait for that prompt instead of opening
// another one. A caller whose ctx ends stops waiting; the prompt is
// cancelled when its last waiter leaves.
func (m *Manager) GetOrCreate(ctx context.Context, signer seal.Signer, packageID string) (*seal.SessionCredential, error) {
	pkg, err := ledger.NormalizeAddress(packageID)
	if err != nil {
		return nil, err
	}
	addr, err := ledger.NormalizeAddress(signer.Address())
	if err != nil {
		return nil, err
	}
	k := cacheKey{address: addr, pkg: pkg}

	if s, ok := m.cached(k); ok {
		return s, nil
	}

	m.mu.Lock()
	if s, ok := m.cachedLocked(k); ok {
		m.mu.Unlock()
		return s, nil
	}
	f, ok := m.flights[k]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{done: make(chan struct{}), cancel: cancel}
		m.flights[k] = f
		go m.run(fctx, f, signer, k)
	}
	f.waiters++
	m.mu.Unlock()

	select {
	case <-f.done:
		return f.cred, f.err
	case <-ctx.Done():
		m.leave(k, f)
		return nil, ctx.Err()
	}
}

func (m *Manager) leave(k cacheKey, f *flight) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if m.flights[k] == f {
		delete(m.flights, k)
	}
}

func (m *Manager) run(ctx context.Context, f *flight, signer seal.Signer, k cacheKey) {
	defer f.cancel()

	s, err := m.issue(ctx, signer, k)

	m.mu.Lock()
	if m.flights[k] == f {
		delete(m.flights, k)
	}
	if err == nil {
		m.sessions[k] = s
	}
	f.cred, f.err = s, err
	m.mu.Unlock()
	close(f.done)

	if err == nil {
		m.logger.Debug(ctx, "session created", "address", k.address, "expires_at", s.ExpiresAt())
	}
}

func (m *Manager) issue(ctx context.Context, signer seal.Signer, k cacheKey) (*seal.SessionCredential, error) {
	m.logger.Info(ctx, "requesting session signature", "address", k.address, "package", k.pkg)

	s, err := seal.NewSessionCredential(ctx, signer, k.pkg, m.ttl, m.now())
	if err != nil {
		m.logger.Warn(ctx, "session not certified", "address", k.address, "error", err)
		return nil, err
	}
	if err := s.Verify(); err != nil {
		return nil, fmt.Errorf("session signature: %w", err)
	}
	return s, nil
}

// Invalidate drops every credential held for address, e.g. after the user
// switches wallets.
func (m *Manager) Invalidate(address string) {
	addr, err := ledger.NormalizeAddress(address)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.sessions {
		if k.address == addr {
			delete(m.sessions, k)
		}
	}
}

// Len is the number of cached credentials, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
