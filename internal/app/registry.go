package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Conn   domain.Connection
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Registry is the presence registry: every live connection, its role and
// its transport. All mutations happen under one lock so a role change is
// never observable as a gap or a double count.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]*sessionEntry
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnectionID]*sessionEntry),
		now:      time.Now,
	}
}

// Attach binds a transport to a connection id before it joins any room.
func (r *Registry) Attach(id domain.ConnectionID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.Signal = sig
		e.Cancel = cancel
		return
	}
	r.sessions[id] = &sessionEntry{
		Conn:   domain.Connection{ID: id, Name: domain.DefaultName},
		Signal: sig,
		Cancel: cancel,
	}
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Msg("attached")
}

// Register moves the connection into role, leaving its previous room in
// the same critical section. Returns the role it left.
func (r *Registry) Register(id domain.ConnectionID, role domain.Role, name string) (domain.Role, error) {
	if !role.Valid() {
		return domain.RoleNone, domain.ErrInvalidRole
	}
	name, err := domain.NormalizeName(name)
	if err != nil {
		return domain.RoleNone, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		e = &sessionEntry{Conn: domain.Connection{ID: id}}
		r.sessions[id] = e
	}
	prev := e.Conn.Role
	e.Conn.Role = role
	e.Conn.Name = name
	e.Conn.JoinedAt = r.now()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).
		Str("from", string(prev)).Str("role", string(role)).Str("name", name).Msg("registered")
	return prev, nil
}

// Leave drops room membership but keeps the transport attached.
func (r *Registry) Leave(id domain.ConnectionID) (domain.Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.Conn.Role == domain.RoleNone {
		return domain.RoleNone, false
	}
	prev := e.Conn.Role
	e.Conn.Role = domain.RoleNone
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("role", string(prev)).Msg("left room")
	return prev, true
}

// Unregister forgets the connection. Calling it twice is a no-op.
func (r *Registry) Unregister(id domain.ConnectionID) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("role", string(e.Conn.Role)).Msg("unregistered")
	return e.Conn, true
}

func (r *Registry) Rename(id domain.ConnectionID, name string) (domain.Connection, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Connection{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Connection{}, domain.ErrNotFound
	}
	e.Conn.Name = name
	return e.Conn, nil
}

func (r *Registry) Lookup(id domain.ConnectionID) (core.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return core.Member{}, false
	}
	return core.Member{Conn: e.Conn, Signal: e.Signal}, true
}

// MembershipCounts returns a count for every known role, zeros included.
func (r *Registry) MembershipCounts() map[domain.Role]int {
	counts := make(map[domain.Role]int, len(domain.Roles))
	for _, role := range domain.Roles {
		counts[role] = 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		if e.Conn.Joined() {
			counts[e.Conn.Role]++
		}
	}
	return counts
}

// ListConnections returns every joined connection ordered by join time.
func (r *Registry) ListConnections() []domain.Connection {
	r.mu.RLock()
	out := make([]domain.Connection, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Conn.Joined() {
			out = append(out, e.Conn)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// MembersOf snapshots the members of one room. Entries without a
// transport are skipped since nothing can be delivered to them.
func (r *Registry) MembersOf(role domain.Role) []core.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Member, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Conn.Role == role && e.Signal != nil {
			out = append(out, core.Member{Conn: e.Conn, Signal: e.Signal})
		}
	}
	return out
}

// Members snapshots every joined member regardless of role.
func (r *Registry) Members() []core.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Member, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Conn.Joined() && e.Signal != nil {
			out = append(out, core.Member{Conn: e.Conn, Signal: e.Signal})
		}
	}
	return out
}

// Cancel stops the connection's pumps. The read pump then reports the disconnect.
func (r *Registry) Cancel(id domain.ConnectionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[id]
	var cancel context.CancelFunc
	if ok {
		cancel = e.Cancel
	}
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if cancel != nil {
		cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled session")
	return true
}
