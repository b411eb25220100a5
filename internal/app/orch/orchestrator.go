package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/barflow/internal/app"
	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/rs/zerolog/log"
)

// PendingSource is the ledger read side used for reconciliation snapshots.
type PendingSource interface {
	PendingBarTickets(ctx context.Context) ([]domain.BarTicket, error)
}

// Orchestrator turns ledger transitions, stock signals and presence
// changes into room events. It is the ledger's notifier; nothing it does
// can fail a committed transition.
type Orchestrator struct {
	Registry *app.Registry
	Router   *app.Router
	Policy   app.Policy
	Tickets  PendingSource
}

const (
	UrgencyAlert = "alert"
	UrgencyInfo  = "info"
)

type NewTicketPayload struct {
	Front   domain.FrontTicket `json:"front"`
	Bar     domain.BarTicket   `json:"bar"`
	Urgency string             `json:"urgency"`
	Sound   bool               `json:"sound"`
}

type TicketPayload struct {
	Action    domain.TicketState  `json:"action"`
	Table     string              `json:"table"`
	Item      string              `json:"item"`
	Bartender string              `json:"bartender,omitempty"`
	Bar       domain.BarTicket    `json:"bar"`
	Front     *domain.FrontTicket `json:"front,omitempty"`
	Sync      bool                `json:"sync,omitempty"`
	Sound     bool                `json:"sound,omitempty"`
}

type StockAlertPayload struct {
	Signal   domain.StockSignal   `json:"signal"`
	Status   domain.StockStatus   `json:"status"`
	Priority domain.AlertPriority `json:"priority"`
	Sound    bool                 `json:"sound"`
}

type NoticePayload struct {
	Level string `json:"level"`
}

func (o *Orchestrator) TicketCreated(front domain.FrontTicket, bar domain.BarTicket) {
	id := front.ID
	msg := fmt.Sprintf("New order: table %s - %s", front.Table, front.Item)

	o.apply(o.Router.Publish(domain.RoleBar, core.Event{
		Type:     core.EventNewTicket,
		TicketID: &id,
		Message:  msg,
		Payload:  NewTicketPayload{Front: front, Bar: bar, Urgency: UrgencyAlert, Sound: true},
	}))
	o.apply(o.Router.Publish(domain.RoleAdmin, core.Event{
		Type:     core.EventNewTicket,
		TicketID: &id,
		Message:  msg,
		Payload:  NewTicketPayload{Front: front, Bar: bar, Urgency: UrgencyInfo},
	}))
	log.Info().Str("module", "orch").Int64("ticket", int64(id)).Str("table", front.Table).Msg("ticket created")
}

func (o *Orchestrator) TicketClaimed(bar domain.BarTicket) {
	id := bar.FrontID
	who := bar.BartenderName()
	payload := TicketPayload{
		Action:    domain.StateClaimed,
		Table:     bar.Table,
		Item:      bar.Item,
		Bartender: who,
		Bar:       bar,
	}

	sync := payload
	sync.Sync = true
	o.apply(o.Router.Publish(domain.RoleBar, core.Event{
		Type:     core.EventTicketClaimed,
		TicketID: &id,
		Message:  fmt.Sprintf("%s claimed table %s's %s", who, bar.Table, bar.Item),
		Payload:  sync,
	}))
	o.apply(o.Router.Publish(domain.RoleAdmin, core.Event{
		Type:     core.EventTicketClaimed,
		TicketID: &id,
		Message:  fmt.Sprintf("%s claimed by %s", bar.Item, who),
		Payload:  payload,
	}))
	log.Info().Str("module", "orch").Int64("ticket", int64(id)).Str("bartender", who).Msg("ticket claimed")
}

func (o *Orchestrator) TicketCompleted(front domain.FrontTicket, bar domain.BarTicket) {
	id := front.ID
	payload := TicketPayload{
		Action:    domain.StateCompleted,
		Table:     front.Table,
		Item:      front.Item,
		Bartender: bar.BartenderName(),
		Bar:       bar,
		Front:     &front,
	}
	notice := fmt.Sprintf("Table %s: %s is ready", front.Table, front.Item)

	toFront := payload
	toFront.Sound = true
	o.apply(o.Router.Publish(domain.RoleFront, core.Event{
		Type:     core.EventTicketCompleted,
		TicketID: &id,
		Message:  notice,
		Payload:  toFront,
	}))

	sync := payload
	sync.Sync = true
	o.apply(o.Router.Publish(domain.RoleBar, core.Event{
		Type:     core.EventTicketCompleted,
		TicketID: &id,
		Message:  fmt.Sprintf("Table %s: %s served", front.Table, front.Item),
		Payload:  sync,
	}))
	o.apply(o.Router.Publish(domain.RoleAdmin, core.Event{
		Type:     core.EventTicketCompleted,
		TicketID: &id,
		Message:  notice,
		Payload:  payload,
	}))
	log.Info().Str("module", "orch").Int64("ticket", int64(id)).Msg("ticket completed")
}

// StockSignal alerts bar and admin for out-of-stock, low and restock
// reports. Other levels are only logged. Returns whether an alert went out.
func (o *Orchestrator) StockSignal(sig domain.StockSignal) bool {
	status, priority := sig.Classify()
	if !sig.Alertable() {
		log.Debug().Str("module", "orch").Str("material", sig.Material).Str("status", string(status)).Msg("stock level ok")
		return false
	}

	var msg string
	switch status {
	case domain.StockOut:
		msg = fmt.Sprintf("%s is out of stock", sig.Material)
	case domain.StockLow:
		msg = fmt.Sprintf("%s is running low (%d %s left)", sig.Material, sig.Level, sig.Unit)
	case domain.StockRestock:
		msg = fmt.Sprintf("%s restocked (now %d %s)", sig.Material, sig.Level, sig.Unit)
	}

	o.apply(o.Router.PublishMany([]domain.Role{domain.RoleBar, domain.RoleAdmin}, core.Event{
		Type:    core.EventStockAlert,
		Message: msg,
		Payload: StockAlertPayload{
			Signal:   sig,
			Status:   status,
			Priority: priority,
			Sound:    priority == domain.PriorityCritical,
		},
	}))
	log.Warn().Str("module", "orch").Str("material", sig.Material).Str("status", string(status)).Msg("stock alert")
	return true
}

func (o *Orchestrator) SystemNotice(message, level string) core.PublishResult {
	if level == "" {
		level = "info"
	}
	res := o.Router.PublishAll(core.Event{
		Type:    core.EventSystemNotice,
		Message: message,
		Payload: NoticePayload{Level: level},
	})
	o.apply(res)
	return res
}

// PublishPresence replaces every client's membership view with a full snapshot.
func (o *Orchestrator) PublishPresence() {
	o.apply(o.Router.PublishAll(core.Event{
		Type:    core.EventPresenceSnapshot,
		Payload: core.NewPresenceSnapshot(o.Registry.MembershipCounts()),
	}))
}

// Snapshot is the reconciliation primitive: current presence plus every
// unserved bar ticket, read from durable storage.
func (o *Orchestrator) Snapshot(ctx context.Context) (core.StateSnapshot, error) {
	snap := core.StateSnapshot{
		Presence: core.NewPresenceSnapshot(o.Registry.MembershipCounts()),
		Pending:  []domain.BarTicket{},
	}
	if o.Tickets == nil {
		return snap, nil
	}
	pending, err := o.Tickets.PendingBarTickets(ctx)
	if err != nil {
		return snap, fmt.Errorf("snapshot pending tickets: %w", err)
	}
	snap.Pending = pending
	return snap, nil
}

// Run publishes a periodic presence snapshot until ctx is done.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.PublishPresence()
		}
	}
}

// apply runs the backpressure policy on connections that missed a publish.
func (o *Orchestrator) apply(res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, id := range res.Dropped {
		m, ok := o.Registry.Lookup(id)
		if !ok {
			continue
		}
		switch o.Policy.OnBackPressure(m.Conn.Role, id) {
		case app.KickMember:
			o.Kick(id, "backpressure")
		case app.NoAction:
		}
	}
}
