package anim

import "sync"

// GuardState is the overload guard's state.
type GuardState int

const (
	GuardNormal GuardState = iota
	GuardSuppressed
)

func (s GuardState) String() string {
	switch s {
	case GuardNormal:
		return "normal"
	case GuardSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

func (s GuardState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Guard suppresses animation while the simulated clock is too fast to follow.
//
// Normal -> Suppressed when the frequency exceeds the threshold.
// Suppressed -> Normal when it drops to the threshold or below.
// A threshold <= 0 disables the guard.
type Guard struct {
	mu        sync.Mutex
	threshold float64
	state     GuardState
}

func NewGuard(thresholdHz float64) *Guard {
	return &Guard{threshold: thresholdHz}
}

// Observe feeds one frequency sample. entered is true only for the sample
// that moved the guard from Normal to Suppressed.
func (g *Guard) Observe(hz float64) (state GuardState, entered bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	over := g.threshold > 0 && hz > g.threshold
	switch {
	case over && g.state == GuardNormal:
		g.state = GuardSuppressed
		return g.state, true
	case !over && g.state == GuardSuppressed:
		g.state = GuardNormal
	}
	return g.state, false
}

func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) Threshold() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.threshold
}

// SetThreshold changes the threshold without changing the state; the next
// Observe re-evaluates against it.
func (g *Guard) SetThreshold(hz float64) {
	g.mu.Lock()
	g.threshold = hz
	g.mu.Unlock()
}
