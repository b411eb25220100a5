package orch

import (
	"fmt"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinedPayload struct {
	Connection domain.Connection     `json:"connection"`
	Previous   domain.Role           `json:"previous,omitempty"`
	Presence   core.PresenceSnapshot `json:"presence"`
}

// Join moves the connection into role in one step, acks the caller and
// republishes presence. An invalid role leaves membership untouched.
func (o *Orchestrator) Join(id domain.ConnectionID, role domain.Role, name string) (domain.Connection, error) {
	prev, err := o.Registry.Register(id, role, name)
	if err != nil {
		return domain.Connection{}, err
	}
	m, ok := o.Registry.Lookup(id)
	if !ok {
		// Disconnected between register and lookup.
		return domain.Connection{}, domain.ErrNotFound
	}

	if m.Signal != nil {
		ack := core.Event{
			Type:    core.EventJoined,
			Message: fmt.Sprintf("Joined %s", role.DisplayName()),
			Payload: JoinedPayload{
				Connection: m.Conn,
				Previous:   prev,
				Presence:   core.NewPresenceSnapshot(o.Registry.MembershipCounts()),
			},
		}
		if err := o.Router.SendTo(m, ack); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("joined ack not delivered")
		}
	}
	o.PublishPresence()
	return m.Conn, nil
}

// Leave drops room membership; the connection stays open.
func (o *Orchestrator) Leave(id domain.ConnectionID) bool {
	role, ok := o.Registry.Leave(id)
	if !ok {
		return false
	}
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("role", string(role)).Msg("left")
	o.PublishPresence()
	return true
}

// OnDisconnect is called by the transport when a connection ends. Safe to
// call more than once.
func (o *Orchestrator) OnDisconnect(id domain.ConnectionID) {
	conn, ok := o.Registry.Unregister(id)
	if !ok {
		return
	}
	if conn.Joined() {
		o.PublishPresence()
	}
}

// Kick tells the client why, stops its pumps and removes it from presence.
func (o *Orchestrator) Kick(id domain.ConnectionID, reason string) bool {
	m, ok := o.Registry.Lookup(id)
	if !ok {
		return false
	}
	_ = o.Router.SendTo(m, core.Event{
		Type:    core.EventForceDisconnect,
		Message: reason,
	})
	o.Registry.Cancel(id)
	log.Warn().Str("module", "orch").Str("conn", string(id)).Str("reason", reason).Msg("kicked")
	o.OnDisconnect(id)
	return true
}
