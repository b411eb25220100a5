package domain

// StockSignal is the one-way level report emitted by the stock collaborator.
type StockSignal struct {
	Material  string `json:"material"`
	Level     int    `json:"level"`
	MinLevel  int    `json:"min_level"`
	Unit      string `json:"unit,omitempty"`
	Restocked bool   `json:"restocked,omitempty"`
}

type StockStatus string

const (
	StockOut        StockStatus = "out_of_stock"
	StockLow        StockStatus = "low_stock"
	StockMedium     StockStatus = "medium_stock"
	StockSufficient StockStatus = "sufficient"
	StockRestock    StockStatus = "restock"
)

type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityWarning  AlertPriority = "warning"
	PriorityCaution  AlertPriority = "caution"
	PriorityInfo     AlertPriority = "info"
)

// Classify maps a level report to a status and priority.
func (s StockSignal) Classify() (StockStatus, AlertPriority) {
	switch {
	case s.Restocked:
		return StockRestock, PriorityInfo
	case s.Level <= 0:
		return StockOut, PriorityCritical
	case s.Level <= s.MinLevel:
		return StockLow, PriorityWarning
	case s.Level <= s.MinLevel*2:
		return StockMedium, PriorityCaution
	}
	return StockSufficient, PriorityInfo
}

// Alertable reports whether the signal should reach the bar and admin rooms.
func (s StockSignal) Alertable() bool {
	status, _ := s.Classify()
	return status == StockOut || status == StockLow || status == StockRestock
}
