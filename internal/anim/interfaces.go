package anim

import "time"

// FrequencySource reports the simulated clock speed. Polled once per tick.
type FrequencySource interface {
	CycleFrequencyHz() float64
}

// Notifier shows a transient message on the visualisation surface.
type Notifier interface {
	ShowText(text string, d time.Duration)
}

// HistorySink records the jobs generated by one instruction for later replay.
type HistorySink interface {
	AddInstruction(name string, jobs []Job)
}

// Clock abstracts wall-clock time so tests can drive the dispatcher.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FrequencyFunc adapts a plain function to FrequencySource.
type FrequencyFunc func() float64

func (f FrequencyFunc) CycleFrequencyHz() float64 { return f() }

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(text string, d time.Duration)

func (f NotifierFunc) ShowText(text string, d time.Duration) { f(text, d) }
