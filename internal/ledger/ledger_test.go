package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/dkeye/barflow/internal/store/sqlitestore"
)

type recordingNotifier struct {
	mu        sync.Mutex
	created   []domain.FrontTicket
	claimed   []domain.BarTicket
	completed []domain.BarTicket
	panicOn   string
}

func (n *recordingNotifier) TicketCreated(front domain.FrontTicket, _ domain.BarTicket) {
	n.mu.Lock()
	n.created = append(n.created, front)
	n.mu.Unlock()
	if n.panicOn == "created" {
		panic("notifier exploded")
	}
}

func (n *recordingNotifier) TicketClaimed(bar domain.BarTicket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.claimed = append(n.claimed, bar)
}

func (n *recordingNotifier) TicketCompleted(_ domain.FrontTicket, bar domain.BarTicket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, bar)
}

func newLedger(t *testing.T) (*Ledger, *recordingNotifier) {
	t.Helper()
	store, err := sqlitestore.Open(sqlitestore.Config{Path: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, item := range []domain.Item{
		{Name: "Mojito", BaseLiquor: "rum", Price: 220, LiquorCost: 45, OtherCost: 25},
		{Name: "Negroni", BaseLiquor: "gin", Price: 250, LiquorCost: 70, OtherCost: 10},
	} {
		if err := store.UpsertItem(ctx, item); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n := &recordingNotifier{}
	return New(store, nil, n), n
}

func TestCreateMojitoForT5(t *testing.T) {
	l, n := newLedger(t)

	front, bar, err := l.Create(context.Background(), CreateRequest{Table: "T5", Item: "Mojito", Orderer: "Jo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if front.Price != 220 || front.Total != 220 || front.NetRevenue != 150 {
		t.Fatalf("front = %+v", front)
	}
	if bar.FrontID != front.ID || bar.Bartender != nil || bar.Served || front.Served {
		t.Fatalf("pair = %+v %+v", front, bar)
	}
	if len(n.created) != 1 || n.created[0].ID != front.ID {
		t.Fatalf("notifier saw %+v before Create returned", n.created)
	}
}

func TestCreateValidation(t *testing.T) {
	l, n := newLedger(t)
	ctx := context.Background()

	cases := []CreateRequest{
		{Item: "Mojito", Orderer: "Jo"},
		{Table: "T1", Orderer: "Jo"},
		{Table: "T1", Item: "Mojito", Orderer: "   "},
	}
	for _, req := range cases {
		if _, _, err := l.Create(ctx, req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Create(%+v) err = %v", req, err)
		}
	}
	if _, _, err := l.Create(ctx, CreateRequest{Table: "T1", Item: "Zombie", Orderer: "Jo"}); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("unknown item err = %v", err)
	}
	if len(n.created) != 0 {
		t.Fatal("failed creates must not notify")
	}
}

func TestCreateWithAdjustment(t *testing.T) {
	l, _ := newLedger(t)
	front, _, err := l.Create(context.Background(), CreateRequest{Table: "T2", Item: "Negroni", Adjustment: -50, Orderer: "Jo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if front.Total != 200 || front.NetRevenue != 120 || front.Adjustment != -50 {
		t.Fatalf("front = %+v", front)
	}
}

func TestClaimThenConflict(t *testing.T) {
	l, n := newLedger(t)
	ctx := context.Background()
	front, _, err := l.Create(ctx, CreateRequest{Table: "T5", Item: "Mojito", Orderer: "Jo"})
	if err != nil {
		t.Fatal(err)
	}

	bar, err := l.Claim(ctx, front.ID, "Alex")
	if err != nil || bar.BartenderName() != "Alex" {
		t.Fatalf("claim = %+v, %v", bar, err)
	}
	if _, err := l.Claim(ctx, front.ID, "Sam"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second claim err = %v", err)
	}
	_, got, err := l.Get(ctx, front.ID)
	if err != nil || got.BartenderName() != "Alex" {
		t.Fatalf("bartender = %q, %v", got.BartenderName(), err)
	}
	if len(n.claimed) != 1 {
		t.Fatalf("claim notifications = %d", len(n.claimed))
	}
	if _, err := l.Claim(ctx, front.ID, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty bartender err = %v", err)
	}
}

func TestConcurrentClaimsOneWinner(t *testing.T) {
	l, n := newLedger(t)
	ctx := context.Background()
	front, _, err := l.Create(ctx, CreateRequest{Table: "T3", Item: "Mojito", Orderer: "Jo"})
	if err != nil {
		t.Fatal(err)
	}

	names := []string{"Alex", "Sam", "Kim", "Lee", "Max", "Ria"}
	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = l.Claim(ctx, front.ID, name)
		}(i, name)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, domain.ErrConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || len(n.claimed) != 1 {
		t.Fatalf("wins = %d, notifications = %d", wins, len(n.claimed))
	}
}

func TestCompleteOnceFlagsEqual(t *testing.T) {
	l, n := newLedger(t)
	ctx := context.Background()
	front, _, _ := l.Create(ctx, CreateRequest{Table: "T5", Item: "Mojito", Orderer: "Jo"})
	if _, err := l.Claim(ctx, front.ID, "Alex"); err != nil {
		t.Fatal(err)
	}

	f, b, err := l.Complete(ctx, front.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !f.Served || !b.Served || f.Served != b.Served || b.ServedAt == nil {
		t.Fatalf("pair = %+v %+v", f, b)
	}
	if _, _, err := l.Complete(ctx, front.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second complete err = %v", err)
	}
	if len(n.completed) != 1 {
		t.Fatalf("complete notifications = %d", len(n.completed))
	}
}

func TestCompleteWithoutClaimIsPermitted(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	front, _, _ := l.Create(ctx, CreateRequest{Table: "T9", Item: "Negroni", Orderer: "Jo"})

	_, b, err := l.Complete(ctx, front.ID)
	if err != nil {
		t.Fatalf("complete unclaimed: %v", err)
	}
	if b.State() != domain.StateCompleted || b.Bartender != nil {
		t.Fatalf("bar = %+v", b)
	}
}

func TestUnknownTicket(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	if _, err := l.Claim(ctx, 404, "Alex"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("claim err = %v", err)
	}
	if _, _, err := l.Complete(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("complete err = %v", err)
	}
	if _, _, err := l.Get(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get err = %v", err)
	}
}

func TestNotifierPanicDoesNotUndoCommit(t *testing.T) {
	l, n := newLedger(t)
	n.panicOn = "created"
	ctx := context.Background()

	front, _, err := l.Create(ctx, CreateRequest{Table: "T1", Item: "Mojito", Orderer: "Jo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := l.Get(ctx, front.ID); err != nil {
		t.Fatalf("ticket lost after notifier panic: %v", err)
	}
}

func TestPendingBarTickets(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	a, _, _ := l.Create(ctx, CreateRequest{Table: "T1", Item: "Mojito", Orderer: "Jo"})
	b, _, _ := l.Create(ctx, CreateRequest{Table: "T2", Item: "Negroni", Orderer: "Jo"})
	if _, _, err := l.Complete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := l.PendingBarTickets(ctx)
	if err != nil || len(pending) != 1 || pending[0].FrontID != b.ID {
		t.Fatalf("pending = %+v, %v", pending, err)
	}
	fronts, err := l.ListFront(ctx, core.FrontFilter{Served: core.ServedDone})
	if err != nil || len(fronts) != 1 || fronts[0].ID != a.ID {
		t.Fatalf("served fronts = %+v, %v", fronts, err)
	}
}
