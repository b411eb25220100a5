package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRename(
	id domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type renamePayload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p renamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendError(conn, "bad_payload", "rename needs a name")
		return
	}

	updated, err := ctl.Orch.Registry.Rename(id, p.Name)
	switch {
	case errors.Is(err, domain.ErrNameTooLong):
		ctl.sendError(conn, "invalid_name", fmt.Sprintf("name longer than %d characters", domain.MaxNameLen))
		return
	case err != nil:
		ctl.sendError(conn, "rename_failed", err.Error())
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("name", updated.Name).Msg("rename")
	ctl.handleWhoAmI(id, conn)
}

func (ctl *SignalWSController) handleWhoAmI(
	id domain.ConnectionID,
	conn *WsSignalConn,
) {
	m, ok := ctl.Orch.Registry.Lookup(id)
	if !ok {
		ctl.sendError(conn, "unknown_connection", "connection is not registered")
		return
	}
	msg := m.Conn.Name
	if m.Conn.Joined() {
		msg = fmt.Sprintf("%s (%s)", m.Conn.Name, m.Conn.Role.DisplayName())
	}
	ctl.send(conn, core.Event{
		Type:    core.EventWhoAmI,
		Message: msg,
		Payload: m.Conn,
	})
}
