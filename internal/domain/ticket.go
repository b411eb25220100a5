package domain

import (
	"math"
	"time"
)

type TicketID int64

// FrontTicket is the customer-facing record of one ordered item.
type FrontTicket struct {
	ID         TicketID  `json:"id"`
	Table      string    `json:"table"`
	Item       string    `json:"item"`
	Price      float64   `json:"price"`
	Adjustment float64   `json:"adjustment"`
	Total      float64   `json:"total"`
	LiquorCost float64   `json:"liquor_cost"`
	OtherCost  float64   `json:"other_cost"`
	NetRevenue float64   `json:"net_revenue"`
	Served     bool      `json:"served"`
	Note       string    `json:"note"`
	Orderer    string    `json:"orderer"`
	CreatedAt  time.Time `json:"created_at"`
}

// BarTicket is the fulfillment ticket paired 1:1 with a FrontTicket.
type BarTicket struct {
	ID        TicketID   `json:"id"`
	FrontID   TicketID   `json:"front_id"`
	Table     string     `json:"table"`
	Item      string     `json:"item"`
	Bartender *string    `json:"bartender"`
	Served    bool       `json:"served"`
	Note      string     `json:"note"`
	Orderer   string     `json:"orderer"`
	OrderedAt time.Time  `json:"ordered_at"`
	ServedAt  *time.Time `json:"served_at"`
}

type TicketState string

const (
	StateCreated   TicketState = "created"
	StateClaimed   TicketState = "claimed"
	StateCompleted TicketState = "completed"
)

func (b BarTicket) State() TicketState {
	switch {
	case b.Served:
		return StateCompleted
	case b.Bartender != nil:
		return StateClaimed
	}
	return StateCreated
}

// BartenderName returns the claimant or "" when unclaimed.
func (b BarTicket) BartenderName() string {
	if b.Bartender == nil {
		return ""
	}
	return *b.Bartender
}

// Financials computes total and net revenue for an item at the given adjustment.
func Financials(item Item, adjustment float64) (total, net float64) {
	total = item.Price + adjustment
	net = total - item.LiquorCost - item.OtherCost
	return RoundMoney(total), RoundMoney(net)
}

func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
