package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/rs/zerolog/log"
)

type leftPayload struct {
	Role     domain.Role           `json:"role"`
	Presence core.PresenceSnapshot `json:"presence"`
}

func (ctl *SignalWSController) handleJoin(
	id domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Role string `json:"role"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload", "join needs a role")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(id) {
		ctl.sendError(conn, "rate_limited", "too many joins, slow down")
		return
	}
	role, err := domain.ParseRole(p.Role)
	if err != nil {
		ctl.sendError(conn, "invalid_role", fmt.Sprintf("unknown role %q", p.Role))
		return
	}

	name := p.Name
	if name == "" {
		if m, ok := ctl.Orch.Registry.Lookup(id); ok {
			name = m.Conn.Name
		}
	}

	log.Info().Str("module", "signal").Str("conn", string(id)).Str("role", string(role)).Msg("join")
	if _, err := ctl.Orch.Join(id, role, name); err != nil {
		switch {
		case errors.Is(err, domain.ErrNameTooLong):
			ctl.sendError(conn, "invalid_name", fmt.Sprintf("name longer than %d characters", domain.MaxNameLen))
		case errors.Is(err, domain.ErrInvalidRole):
			ctl.sendError(conn, "invalid_role", fmt.Sprintf("unknown role %q", p.Role))
		default:
			ctl.sendError(conn, "join_failed", err.Error())
		}
	}
}

// handleLeave drops room membership; the socket stays open.
func (ctl *SignalWSController) handleLeave(
	id domain.ConnectionID,
	conn *WsSignalConn,
) {
	m, ok := ctl.Orch.Registry.Lookup(id)
	if !ok || !m.Conn.Joined() {
		ctl.sendError(conn, "not_joined", "not in a room")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("leave")
	ctl.Orch.Leave(id)
	ctl.send(conn, core.Event{
		Type:    core.EventLeft,
		Message: fmt.Sprintf("Left %s", m.Conn.Role.DisplayName()),
		Payload: leftPayload{
			Role:     m.Conn.Role,
			Presence: core.NewPresenceSnapshot(ctl.Orch.Registry.MembershipCounts()),
		},
	})
}
