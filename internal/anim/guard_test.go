package anim

import "testing"

func TestGuardTransitions(t *testing.T) {
	t.Parallel()
	g := NewGuard(2)

	steps := []struct {
		hz      float64
		state   GuardState
		entered bool
	}{
		{hz: 1, state: GuardNormal},
		{hz: 2, state: GuardNormal},
		{hz: 2.5, state: GuardSuppressed, entered: true},
		{hz: 10, state: GuardSuppressed},
		{hz: 2, state: GuardNormal},
		{hz: 3, state: GuardSuppressed, entered: true},
	}
	for i, st := range steps {
		state, entered := g.Observe(st.hz)
		if state != st.state || entered != st.entered {
			t.Fatalf("step %d (hz=%v): got (%v, %v), want (%v, %v)", i, st.hz, state, entered, st.state, st.entered)
		}
	}
}

func TestGuardDisabled(t *testing.T) {
	t.Parallel()
	g := NewGuard(-1)
	if state, entered := g.Observe(1e9); state != GuardNormal || entered {
		t.Fatalf("disabled guard moved to %v", state)
	}
}

func TestGuardStateText(t *testing.T) {
	t.Parallel()
	b, _ := GuardSuppressed.MarshalText()
	if string(b) != "suppressed" {
		t.Fatalf("MarshalText = %q", b)
	}
}
