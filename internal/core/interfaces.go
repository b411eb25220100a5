package core

import (
	"time"

	"github.com/dkeye/barflow/internal/domain"
)

// Member binds a presence record to its transport endpoint.
// This is what a room fans out to.
type Member struct {
	Conn   domain.Connection
	Signal SignalConnection
}

// PublishResult reports delivery stats/backpressure to the coordinator.
type PublishResult struct {
	SentTo  int
	Dropped []domain.ConnectionID
}

func (r *PublishResult) Merge(o PublishResult) {
	r.SentTo += o.SentTo
	r.Dropped = append(r.Dropped, o.Dropped...)
}

type EventType string

const (
	EventWelcome          EventType = "welcome"
	EventJoined           EventType = "joined"
	EventLeft             EventType = "left"
	EventPong             EventType = "pong"
	EventWhoAmI           EventType = "whoami"
	EventError            EventType = "error"
	EventPresenceSnapshot EventType = "presence_snapshot"
	EventStateSnapshot    EventType = "state_snapshot"
	EventNewTicket        EventType = "new_ticket"
	EventTicketClaimed    EventType = "ticket_claimed"
	EventTicketCompleted  EventType = "ticket_completed"
	EventStockAlert       EventType = "stock_alert"
	EventSystemNotice     EventType = "system_notice"
	EventForceDisconnect  EventType = "force_disconnect"
)

// Event is the envelope of every server push. Pushes are unsolicited:
// there is no request correlation on this channel.
type Event struct {
	Type      EventType        `json:"type"`
	TicketID  *domain.TicketID `json:"ticket_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Payload   any              `json:"payload,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// PresenceSnapshot replaces the client's whole view of room membership.
type PresenceSnapshot struct {
	Counts map[domain.Role]int `json:"counts"`
	Total  int                 `json:"total"`
}

func NewPresenceSnapshot(counts map[domain.Role]int) PresenceSnapshot {
	total := 0
	for _, n := range counts {
		total += n
	}
	return PresenceSnapshot{Counts: counts, Total: total}
}

// StateSnapshot is the reconciliation view a client fetches after reconnecting.
type StateSnapshot struct {
	Presence PresenceSnapshot   `json:"presence"`
	Pending  []domain.BarTicket `json:"pending"`
}
