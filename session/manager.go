package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/config"
	"go.uber.org/zap"
)

// maxUpdateRetries bounds re-reads after a version conflict. Conflicts only
// happen when several processes share one Redis store.
const maxUpdateRetries = 3

// Manager owns the lifecycle of call sessions on top of a Store and
// serializes every read-modify-write on the same call id.
type Manager struct {
	store       Store
	maxSessions int
	timeout     time.Duration
	logger      *zap.Logger
	now         func() time.Time

	createMu sync.Mutex
	locksMu  sync.Mutex
	locks    map[string]*idLock

	reapMu sync.Mutex
	onReap []func(ids []string)
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a session manager backed by store.
func NewManager(cfg *config.Config, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:       store,
		maxSessions: cfg.MaxSessions,
		timeout:     cfg.SessionTimeout,
		logger:      logger.Named("session"),
		now:         func() time.Time { return time.Now().UTC() },
		locks:       make(map[string]*idLock),
	}
}

func (m *Manager) lock(id string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &idLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

// Create starts a new session for flow. prepare, when non-nil, transforms
// the fresh GREETING session before it is first stored.
func (m *Manager) Create(ctx context.Context, flow string, prepare func(callflow.CallSession) callflow.CallSession) (callflow.CallSession, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	if m.maxSessions > 0 {
		n, err := m.store.Count(ctx)
		if err != nil {
			return callflow.CallSession{}, fmt.Errorf("count sessions: %w", err)
		}
		if n >= m.maxSessions {
			return callflow.CallSession{}, ErrTooManySessions
		}
	}

	sess := callflow.NewSession(uuid.New().String(), flow, m.now())
	if prepare != nil {
		sess = prepare(sess)
	}
	if err := m.store.Create(ctx, &sess); err != nil {
		return callflow.CallSession{}, fmt.Errorf("create session: %w", err)
	}

	m.logger.Debug("🆕 Session created", zap.String("call_id", sess.ID), zap.String("flow", flow))
	return sess, nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(ctx context.Context, id string) (callflow.CallSession, error) {
	return m.store.Get(ctx, id)
}

// Mutate applies fn to the current session and stores the result. Calls for
// the same id run one at a time; an error from fn leaves the session untouched.
func (m *Manager) Mutate(ctx context.Context, id string, fn func(callflow.CallSession) (callflow.CallSession, error)) (callflow.CallSession, error) {
	unlock := m.lock(id)
	defer unlock()

	for attempt := 0; ; attempt++ {
		current, err := m.store.Get(ctx, id)
		if err != nil {
			return callflow.CallSession{}, err
		}

		next, err := fn(current)
		if err != nil {
			return callflow.CallSession{}, err
		}
		next.ID = current.ID
		next.Version = current.Version

		err = m.store.Update(ctx, &next)
		if errors.Is(err, ErrVersionConflict) && attempt < maxUpdateRetries {
			m.logger.Warn("⚠️ Session version conflict, retrying", zap.String("call_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return callflow.CallSession{}, err
		}
		return next, nil
	}
}

// End removes the session and returns its final snapshot.
func (m *Manager) End(ctx context.Context, id string) (callflow.CallSession, error) {
	unlock := m.lock(id)
	defer unlock()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return callflow.CallSession{}, err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return callflow.CallSession{}, fmt.Errorf("delete session: %w", err)
	}

	m.logger.Debug("👋 Session removed", zap.String("call_id", id))
	return sess, nil
}

// ActiveCount returns the current session count, or 0 if the store fails.
func (m *Manager) ActiveCount(ctx context.Context) int {
	n, err := m.store.Count(ctx)
	if err != nil {
		m.logger.Warn("⚠️ Failed to count sessions", zap.Error(err))
		return 0
	}
	return n
}

// CleanupInactiveSessions removes sessions idle for longer than the session timeout.
func (m *Manager) CleanupInactiveSessions(ctx context.Context) []string {
	if m.timeout <= 0 {
		return nil
	}

	expired, err := m.store.Expire(ctx, m.now().Add(-m.timeout))
	if err != nil {
		m.logger.Error("❌ Session cleanup failed", zap.Error(err))
		return nil
	}
	for _, id := range expired {
		m.logger.Info("🧹 Reaped inactive session", zap.String("call_id", id))
	}
	if len(expired) > 0 {
		m.reapMu.Lock()
		hooks := append([]func([]string){}, m.onReap...)
		m.reapMu.Unlock()
		for _, fn := range hooks {
			fn(expired)
		}
	}
	return expired
}

// OnReap registers fn to run with the ids removed by each cleanup pass.
func (m *Manager) OnReap(fn func(ids []string)) {
	m.reapMu.Lock()
	defer m.reapMu.Unlock()
	m.onReap = append(m.onReap, fn)
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (m *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes the underlying store.
func (m *Manager) Shutdown() {
	if err := m.store.Close(); err != nil {
		m.logger.Warn("⚠️ Error closing session store", zap.Error(err))
	}
}
