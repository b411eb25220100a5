package app

import (
	"encoding/json"
	"time"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/rs/zerolog/log"
)

// Membership is the part of the registry the router reads at publish time.
type Membership interface {
	MembersOf(role domain.Role) []core.Member
	Members() []core.Member
}

// Router fans events out to rooms. It owns no member sets: every publish
// takes a fresh snapshot from the registry and sends outside its lock.
// Delivery is best effort; failures are reported, never returned.
type Router struct {
	members Membership
	now     func() time.Time
}

func NewRouter(members Membership) *Router {
	return &Router{members: members, now: time.Now}
}

func (rt *Router) Publish(role domain.Role, ev core.Event) core.PublishResult {
	frame, ok := rt.encode(ev)
	if !ok {
		return core.PublishResult{}
	}
	res := deliver(rt.members.MembersOf(role), frame)
	log.Debug().Str("module", "app.router").Str("role", string(role)).Str("type", string(ev.Type)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("publish")
	return res
}

func (rt *Router) PublishAll(ev core.Event) core.PublishResult {
	frame, ok := rt.encode(ev)
	if !ok {
		return core.PublishResult{}
	}
	res := deliver(rt.members.Members(), frame)
	log.Debug().Str("module", "app.router").Str("type", string(ev.Type)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("publish all")
	return res
}

// PublishMany is a per-role publish for each distinct role. It is not
// atomic across roles.
func (rt *Router) PublishMany(roles []domain.Role, ev core.Event) core.PublishResult {
	var res core.PublishResult
	seen := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		if seen[role] {
			continue
		}
		seen[role] = true
		res.Merge(rt.Publish(role, ev))
	}
	return res
}

// SendTo delivers to a single member, e.g. an ack for the caller.
func (rt *Router) SendTo(m core.Member, ev core.Event) error {
	frame, ok := rt.encode(ev)
	if !ok || m.Signal == nil {
		return core.ErrConnectionClosed
	}
	return m.Signal.TrySend(frame)
}

func (rt *Router) encode(ev core.Event) (core.Frame, bool) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = rt.now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("type", string(ev.Type)).Msg("encode event")
		return nil, false
	}
	return b, true
}

func deliver(members []core.Member, frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, m := range members {
		if err := m.Signal.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, m.Conn.ID)
			continue
		}
		res.SentTo++
	}
	return res
}
