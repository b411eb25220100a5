package core

import (
	"context"
	"time"

	"github.com/dkeye/barflow/internal/domain"
)

// Catalog resolves item references. Returns domain.ErrItemNotFound for unknown names.
type Catalog interface {
	LookupItem(ctx context.Context, name string) (domain.Item, error)
}

type ServedFilter int

const (
	ServedAny ServedFilter = iota
	ServedPending
	ServedDone
)

type FrontFilter struct {
	Table  string
	Served ServedFilter
}

type BarFilter struct {
	PendingOnly bool
}

// Store is the durable ledger collaborator. Every mutating method is one
// atomic unit guarded by conditional writes; failures leave no partial state.
type Store interface {
	Catalog

	// CreatePair inserts both tickets in one transaction and returns them with IDs assigned.
	CreatePair(ctx context.Context, front domain.FrontTicket, bar domain.BarTicket) (domain.FrontTicket, domain.BarTicket, error)
	// ClaimBar sets the bartender only where it is null and the ticket is unserved.
	ClaimBar(ctx context.Context, frontID domain.TicketID, bartender string) (domain.BarTicket, error)
	// CompletePair flips both served flags where they are still false.
	CompletePair(ctx context.Context, frontID domain.TicketID, at time.Time) (domain.FrontTicket, domain.BarTicket, error)

	GetPair(ctx context.Context, frontID domain.TicketID) (domain.FrontTicket, domain.BarTicket, error)
	ListFront(ctx context.Context, f FrontFilter) ([]domain.FrontTicket, error)
	ListBar(ctx context.Context, f BarFilter) ([]domain.BarTicket, error)

	UpsertItem(ctx context.Context, item domain.Item) error
	Close() error
}
