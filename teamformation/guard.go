package teamformation

import (
	"sync"
	"time"

	"github.com/coordmesh/core/clock"
	"github.com/coordmesh/core/types"
)

// GuardState mirrors a classic circuit breaker's three states, applied here
// per-agent rather than per-call: an agent that keeps failing to actually
// show up once assigned gets temporarily excluded from FormTeam/Recommend
// candidate pools.
type GuardState string

const (
	GuardClosed   GuardState = "closed"
	GuardOpen     GuardState = "open"
	GuardHalfOpen GuardState = "half_open"
)

type agentBreaker struct {
	failures    int
	state       GuardState
	lastTripped time.Time
}

// AvailabilityGuard tracks per-agent assignment failures and excludes
// chronically-unavailable agents from team formation until a cooldown
// elapses. Disabled by default — FormTeam's documented behavior (score every
// eligible candidate) is unchanged unless a guard is explicitly attached and
// enabled.
type AvailabilityGuard struct {
	mu               sync.Mutex
	clk              clock.Clock
	failureThreshold int
	cooldown         time.Duration
	enabled          bool
	breakers         map[string]*agentBreaker
}

// NewAvailabilityGuard constructs a guard. It does nothing until Enable is
// called, regardless of configuration, matching spec.md's requirement that
// this mechanism never alter documented FormTeam behavior by default.
func NewAvailabilityGuard(failureThreshold int, cooldown time.Duration, clk clock.Clock) *AvailabilityGuard {
	if clk == nil {
		clk = clock.Real{}
	}
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	return &AvailabilityGuard{
		clk:              clk,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		breakers:         map[string]*agentBreaker{},
	}
}

// Enable turns on candidate exclusion; Disable reverts to pass-through.
func (g *AvailabilityGuard) Enable()  { g.mu.Lock(); g.enabled = true; g.mu.Unlock() }
func (g *AvailabilityGuard) Disable() { g.mu.Lock(); g.enabled = false; g.mu.Unlock() }

// RecordFailure notes that agentID was assigned but failed to engage,
// potentially tripping its breaker open.
func (g *AvailabilityGuard) RecordFailure(agentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.breaker(agentID)
	b.failures++
	if b.failures >= g.failureThreshold {
		b.state = GuardOpen
		b.lastTripped = g.clk.Now()
	}
}

// RecordSuccess clears agentID's failure count, closing its breaker.
func (g *AvailabilityGuard) RecordSuccess(agentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.breaker(agentID)
	b.failures = 0
	b.state = GuardClosed
}

// Allowed reports whether agentID may currently be considered a FormTeam
// candidate. Always true while the guard is disabled.
func (g *AvailabilityGuard) Allowed(agentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return true
	}
	b := g.breaker(agentID)
	switch b.state {
	case GuardOpen:
		if g.clk.Now().Sub(b.lastTripped) > g.cooldown {
			b.state = GuardHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (g *AvailabilityGuard) breaker(agentID string) *agentBreaker {
	b, ok := g.breakers[agentID]
	if !ok {
		b = &agentBreaker{state: GuardClosed}
		g.breakers[agentID] = b
	}
	return b
}

// filterAvailable returns candidates minus any the guard currently excludes
// and any marked unavailable on the Agent row itself.
func filterAvailable(candidates []*types.Agent, guard *AvailabilityGuard) []*types.Agent {
	out := make([]*types.Agent, 0, len(candidates))
	for _, c := range candidates {
		if !c.Available {
			continue
		}
		if guard != nil && !guard.Allowed(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out
}
