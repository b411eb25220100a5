package app

import "github.com/dkeye/barflow/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose buffer was full
// during a publish.
type Policy interface {
	OnBackPressure(role domain.Role, id domain.ConnectionID) BackpressureAction
}

// SimplePolicy kicks stale connections; they reconcile with a sync on reconnect.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(role domain.Role, id domain.ConnectionID) BackpressureAction {
	return KickMember
}

// TolerantPolicy never kicks. Useful for observers on slow links.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(domain.Role, domain.ConnectionID) BackpressureAction {
	return NoAction
}
