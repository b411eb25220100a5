package signal

import (
	"sync"

	"github.com/dkeye/barflow/internal/domain"
	"golang.org/x/time/rate"
)

// JoinLimiter throttles join requests per connection so a misbehaving
// client cannot churn presence snapshots for everyone else.
type JoinLimiter struct {
	mu       sync.Mutex
	limiters map[domain.ConnectionID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewJoinLimiter(perSecond float64, burst int) *JoinLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &JoinLimiter{
		limiters: make(map[domain.ConnectionID]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (jl *JoinLimiter) Allow(id domain.ConnectionID) bool {
	jl.mu.Lock()
	l, ok := jl.limiters[id]
	if !ok {
		l = rate.NewLimiter(jl.limit, jl.burst)
		jl.limiters[id] = l
	}
	jl.mu.Unlock()
	return l.Allow()
}

// Forget drops the state of a closed connection.
func (jl *JoinLimiter) Forget(id domain.ConnectionID) {
	jl.mu.Lock()
	delete(jl.limiters, id)
	jl.mu.Unlock()
}
