package tunnel

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nullbridge/tunnelgate/internal/connlog"
	"github.com/nullbridge/tunnelgate/internal/gwerr"
	"github.com/nullbridge/tunnelgate/internal/wire"
)

// Registry is the gateway's agent registry (C5): a name-keyed map of at
// most one live Session per name, guarded by a single mutex the way the
// teacher's hub{mu, sessions} guards its own session map in server.go.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	connLog  *connlog.Logger
	log      *slog.Logger
}

// NewRegistry constructs an empty Registry. connLog and log are used by
// Sweep to record removals; both may be nil in tests that don't exercise
// sweeping.
func NewRegistry(connLog *connlog.Logger, log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		connLog:  connLog,
		log:      log,
	}
}

// Register inserts session under its own name, atomically evicting and
// returning any prior session that held the same name (spec.md §4.5).
// The caller is responsible for closing the returned prior session.
func (r *Registry) Register(session *Session) (prior *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior = r.sessions[session.name]
	r.sessions[session.name] = session
	return prior
}

// Lookup returns the live session registered under name, if any.
func (r *Registry) Lookup(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[name]
	return s, ok
}

// Remove deletes name from the registry iff it still maps to session
// (so a Remove racing a newer Register for the same name cannot evict
// the newer session).
func (r *Registry) Remove(name string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[name]; ok && cur == session {
		delete(r.sessions, name)
	}
}

// Names returns every currently registered agent name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	return names
}

// Detail is one row of Registry.Details.
type Detail struct {
	Name        string
	ConnectedAt time.Time
	Uptime      string
	Connected   bool
}

// Details returns a snapshot describing every registered session.
func (r *Registry) Details() []Detail {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Detail, 0, len(r.sessions))
	for name, s := range r.sessions {
		out = append(out, Detail{
			Name:        name,
			ConnectedAt: s.ConnectedAt(),
			Uptime:      s.Uptime(),
			Connected:   true,
		})
	}
	return out
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ForwardToNamed looks up name and dispatches req on its session. If the
// dispatch fails with ErrUnhealthyConnection, the session is evicted —
// removed from the registry, its socket closed, and a disconnect logged
// — before the error is returned to the caller; any other dispatch
// error leaves the session in place, since it may still recover
// (spec.md §4.5).
func (r *Registry) ForwardToNamed(name string, req wire.RequestMessage, dispatchTimeout time.Duration) (wire.ResponseMessage, error) {
	session, ok := r.Lookup(name)
	if !ok {
		return wire.ResponseMessage{}, gwerr.ErrNotRegistered
	}

	resp, err := session.Dispatch(req, dispatchTimeout)
	if err != nil {
		if errors.Is(err, gwerr.ErrUnhealthyConnection) {
			r.evict(session, "dispatch found unhealthy connection")
		}
		return wire.ResponseMessage{}, err
	}
	return resp, nil
}

// Sweep walks every registered session: if its cheap local health check
// fails, it is removed immediately; otherwise a heartbeat dispatch is
// attempted, and failure removes it too. Removal is atomic per entry, so
// Sweep is safe to run concurrently with Register/Remove. It returns the
// number of sessions removed.
func (r *Registry) Sweep() int {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	removed := 0
	for _, s := range snapshot {
		if !s.SocketHealthy() {
			r.evict(s, "unhealthy socket")
			removed++
			continue
		}
		if err := s.Heartbeat(); err != nil {
			r.evict(s, "heartbeat failed")
			removed++
		}
	}
	return removed
}

func (r *Registry) evict(s *Session, reason string) {
	r.Remove(s.name, s)
	s.Close()
	if r.connLog != nil {
		r.connLog.LogDisconnect(s.name, s.RemoteIP(), reason)
	}
	if r.log != nil {
		r.log.Info("session removed by sweep", "name", s.name, "reason", reason)
	}
}
