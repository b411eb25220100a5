package signal

import (
	"context"

	"github.com/dkeye/barflow/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.send(conn, core.Event{Type: core.EventPong})
}

// handleSync answers with the reconciliation snapshot. Clients send it
// after a reconnect since nothing missed while away is replayed.
func (ctl *SignalWSController) handleSync(
	ctx context.Context,
	conn *WsSignalConn,
) {
	snap, err := ctl.Orch.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sync snapshot")
		ctl.sendError(conn, "sync_failed", "could not read pending tickets, retry")
		return
	}
	ctl.send(conn, core.Event{
		Type:    core.EventStateSnapshot,
		Payload: snap,
	})
}
