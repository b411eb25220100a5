package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestFinancials(t *testing.T) {
	mojito := Item{Name: "Mojito", Price: 220, LiquorCost: 45, OtherCost: 25}

	total, net := Financials(mojito, 0)
	if total != 220 || net != 150 {
		t.Fatalf("total=%v net=%v", total, net)
	}

	total, net = Financials(mojito, -20.5)
	if total != 199.5 || net != 129.5 {
		t.Fatalf("discounted total=%v net=%v", total, net)
	}

	total, _ = Financials(Item{Price: 0.2}, 0.1)
	if total != 0.3 {
		t.Fatalf("total not rounded to cents: %v", total)
	}
}

func TestParseRole(t *testing.T) {
	for _, in := range []string{"bar", " Front ", "ADMIN", "observer"} {
		if _, err := ParseRole(in); err != nil {
			t.Errorf("ParseRole(%q): %v", in, err)
		}
	}
	for _, in := range []string{"", "kitchen", "bartender"} {
		if _, err := ParseRole(in); !errors.Is(err, ErrInvalidRole) {
			t.Errorf("ParseRole(%q) err = %v", in, err)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if n, _ := NormalizeName("   "); n != DefaultName {
		t.Errorf("blank name = %q", n)
	}
	if n, _ := NormalizeName("  Alex "); n != "Alex" {
		t.Errorf("trimmed name = %q", n)
	}
	if _, err := NormalizeName(strings.Repeat("ü", MaxNameLen)); err != nil {
		t.Errorf("max length in runes rejected: %v", err)
	}
	if _, err := NormalizeName(strings.Repeat("a", MaxNameLen+1)); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("long name err = %v", err)
	}
}

func TestBarTicketState(t *testing.T) {
	alex := "Alex"
	cases := []struct {
		bar  BarTicket
		want TicketState
	}{
		{BarTicket{}, StateCreated},
		{BarTicket{Bartender: &alex}, StateClaimed},
		{BarTicket{Bartender: &alex, Served: true}, StateCompleted},
		{BarTicket{Served: true}, StateCompleted},
	}
	for _, c := range cases {
		if got := c.bar.State(); got != c.want {
			t.Errorf("State() = %s, want %s", got, c.want)
		}
	}
}

func TestStockClassify(t *testing.T) {
	cases := []struct {
		sig       StockSignal
		status    StockStatus
		priority  AlertPriority
		alertable bool
	}{
		{StockSignal{Level: 0, MinLevel: 5}, StockOut, PriorityCritical, true},
		{StockSignal{Level: 5, MinLevel: 5}, StockLow, PriorityWarning, true},
		{StockSignal{Level: 8, MinLevel: 5}, StockMedium, PriorityCaution, false},
		{StockSignal{Level: 30, MinLevel: 5}, StockSufficient, PriorityInfo, false},
		{StockSignal{Level: 30, MinLevel: 5, Restocked: true}, StockRestock, PriorityInfo, true},
	}
	for _, c := range cases {
		status, priority := c.sig.Classify()
		if status != c.status || priority != c.priority || c.sig.Alertable() != c.alertable {
			t.Errorf("%+v => %s/%s alertable=%v", c.sig, status, priority, c.sig.Alertable())
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	if !errors.Is(ErrItemNotFound, ErrNotFound) || !errors.Is(ErrTicketNotFound, ErrNotFound) {
		t.Error("not-found errors must match ErrNotFound")
	}
	if !errors.Is(ErrAlreadyClaimedOrServed, ErrConflict) || !errors.Is(ErrAlreadyServed, ErrConflict) {
		t.Error("state errors must match ErrConflict")
	}
	cause := errors.New("disk I/O error")
	err := Aborted("insert", cause)
	if !errors.Is(err, ErrTransactionAborted) || !errors.Is(err, cause) {
		t.Errorf("Aborted lost a class: %v", err)
	}
}
