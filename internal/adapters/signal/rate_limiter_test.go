package signal

import (
	"testing"

	"github.com/dkeye/barflow/internal/domain"
)

func TestJoinLimiterBurstPerConnection(t *testing.T) {
	jl := NewJoinLimiter(0.001, 2)
	a, b := domain.ConnectionID("a"), domain.ConnectionID("b")

	if !jl.Allow(a) || !jl.Allow(a) {
		t.Fatal("burst of 2 should pass")
	}
	if jl.Allow(a) {
		t.Fatal("third join inside the window should be refused")
	}
	if !jl.Allow(b) {
		t.Fatal("limits must be per connection")
	}

	jl.Forget(a)
	if !jl.Allow(a) {
		t.Fatal("forgotten connection should start fresh")
	}
}
