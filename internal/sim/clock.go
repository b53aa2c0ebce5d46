// Package sim drives the animation scheduler with a synthetic processor
// clock: every cycle starts a new animation cycle and schedules the visual
// steps of one instruction.
package sim

import (
	"math"
	"sync/atomic"
)

// Clock is a frequency source whose rate can be changed at any time.
// It implements anim.FrequencySource.
type Clock struct {
	bits atomic.Uint64
}

func NewClock(hz float64) *Clock {
	c := &Clock{}
	c.SetFrequency(hz)
	return c
}

// SetFrequency sets the cycle rate. Negative values are treated as 0 (paused).
func (c *Clock) SetFrequency(hz float64) {
	if hz < 0 || math.IsNaN(hz) {
		hz = 0
	}
	c.bits.Store(math.Float64bits(hz))
}

func (c *Clock) CycleFrequencyHz() float64 {
	return math.Float64frombits(c.bits.Load())
}
