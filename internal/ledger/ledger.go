// Package ledger owns the order lifecycle: creation of front/bar ticket
// pairs and the claim and complete transitions. Every guard lives in the
// store's conditional writes; the ledger itself holds no locks.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/rs/zerolog/log"
)

// Notifier receives committed transitions. Implementations must not fail
// the caller; the ledger ignores anything they do.
type Notifier interface {
	TicketCreated(front domain.FrontTicket, bar domain.BarTicket)
	TicketClaimed(bar domain.BarTicket)
	TicketCompleted(front domain.FrontTicket, bar domain.BarTicket)
}

type CreateRequest struct {
	Table      string  `json:"table" binding:"required"`
	Item       string  `json:"item" binding:"required"`
	Adjustment float64 `json:"adjustment"`
	Orderer    string  `json:"orderer" binding:"required"`
	Note       string  `json:"note"`
}

type Ledger struct {
	store    core.Store
	catalog  core.Catalog
	notifier Notifier
	now      func() time.Time
}

// New builds a ledger. catalog may be nil, in which case the store's own
// item table is used.
func New(store core.Store, catalog core.Catalog, notifier Notifier) *Ledger {
	if catalog == nil {
		catalog = store
	}
	return &Ledger{
		store:    store,
		catalog:  catalog,
		notifier: notifier,
		now:      time.Now,
	}
}

func (l *Ledger) Create(ctx context.Context, req CreateRequest) (domain.FrontTicket, domain.BarTicket, error) {
	table := strings.TrimSpace(req.Table)
	itemName := strings.TrimSpace(req.Item)
	orderer := strings.TrimSpace(req.Orderer)
	switch {
	case table == "":
		return domain.FrontTicket{}, domain.BarTicket{}, fmt.Errorf("table is required: %w", domain.ErrInvalidInput)
	case itemName == "":
		return domain.FrontTicket{}, domain.BarTicket{}, fmt.Errorf("item is required: %w", domain.ErrInvalidInput)
	case orderer == "":
		return domain.FrontTicket{}, domain.BarTicket{}, fmt.Errorf("orderer is required: %w", domain.ErrInvalidInput)
	}

	item, err := l.catalog.LookupItem(ctx, itemName)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, fmt.Errorf("create %q: %w", itemName, err)
	}

	total, net := domain.Financials(item, req.Adjustment)
	now := l.now().UTC()
	note := strings.TrimSpace(req.Note)
	front := domain.FrontTicket{
		Table:      table,
		Item:       item.Name,
		Price:      item.Price,
		Adjustment: domain.RoundMoney(req.Adjustment),
		Total:      total,
		LiquorCost: item.LiquorCost,
		OtherCost:  item.OtherCost,
		NetRevenue: net,
		Note:       note,
		Orderer:    orderer,
		CreatedAt:  now,
	}
	bar := domain.BarTicket{
		Table:     table,
		Item:      item.Name,
		Note:      note,
		Orderer:   orderer,
		OrderedAt: now,
	}

	front, bar, err = l.store.CreatePair(ctx, front, bar)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	log.Info().Str("module", "ledger").Int64("ticket", int64(front.ID)).Str("table", table).
		Str("item", item.Name).Float64("total", total).Msg("created")

	if l.notifier != nil {
		l.notify(func() { l.notifier.TicketCreated(front, bar) })
	}
	return front, bar, nil
}

func (l *Ledger) Claim(ctx context.Context, frontID domain.TicketID, bartender string) (domain.BarTicket, error) {
	bartender = strings.TrimSpace(bartender)
	if bartender == "" {
		return domain.BarTicket{}, fmt.Errorf("bartender is required: %w", domain.ErrInvalidInput)
	}
	bar, err := l.store.ClaimBar(ctx, frontID, bartender)
	if err != nil {
		return domain.BarTicket{}, err
	}
	log.Info().Str("module", "ledger").Int64("ticket", int64(frontID)).Str("bartender", bartender).Msg("claimed")

	if l.notifier != nil {
		l.notify(func() { l.notifier.TicketClaimed(bar) })
	}
	return bar, nil
}

// Complete marks both tickets served. It does not require a prior claim.
func (l *Ledger) Complete(ctx context.Context, frontID domain.TicketID) (domain.FrontTicket, domain.BarTicket, error) {
	front, bar, err := l.store.CompletePair(ctx, frontID, l.now().UTC())
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	log.Info().Str("module", "ledger").Int64("ticket", int64(frontID)).Str("bartender", bar.BartenderName()).Msg("completed")

	if l.notifier != nil {
		l.notify(func() { l.notifier.TicketCompleted(front, bar) })
	}
	return front, bar, nil
}

func (l *Ledger) Get(ctx context.Context, frontID domain.TicketID) (domain.FrontTicket, domain.BarTicket, error) {
	return l.store.GetPair(ctx, frontID)
}

func (l *Ledger) ListFront(ctx context.Context, f core.FrontFilter) ([]domain.FrontTicket, error) {
	return l.store.ListFront(ctx, f)
}

func (l *Ledger) ListBar(ctx context.Context, f core.BarFilter) ([]domain.BarTicket, error) {
	return l.store.ListBar(ctx, f)
}

func (l *Ledger) PendingBarTickets(ctx context.Context) ([]domain.BarTicket, error) {
	return l.store.ListBar(ctx, core.BarFilter{PendingOnly: true})
}

// notify shields the committed transition from a misbehaving notifier.
func (l *Ledger) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "ledger").Interface("panic", r).Msg("notifier panicked")
		}
	}()
	fn()
}
