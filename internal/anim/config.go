package anim

import (
	"fmt"
	"time"
)

const (
	DefaultTickInterval   = 20 * time.Millisecond
	DefaultMaxFrequencyHz = 2.0
	DefaultBacklogCap     = 10
	DefaultNoticeDuration = time.Second
)

// Config controls the dispatcher.
//
// Zero values pick the defaults. A negative MaxFrequencyHz disables the
// overload guard; a negative BacklogCap disables trimming.
type Config struct {
	TickInterval   time.Duration
	MaxFrequencyHz float64
	BacklogCap     int

	// NoticeText is shown once per transition into the suppressed state.
	// Empty renders the default text for MaxFrequencyHz.
	NoticeText     string
	NoticeDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.MaxFrequencyHz == 0 {
		c.MaxFrequencyHz = DefaultMaxFrequencyHz
	}
	if c.BacklogCap == 0 {
		c.BacklogCap = DefaultBacklogCap
	}
	if c.NoticeDuration <= 0 {
		c.NoticeDuration = DefaultNoticeDuration
	}
	if c.NoticeText == "" {
		c.NoticeText = fmt.Sprintf("Please lower the clock speed to less than %gHz to see animations", c.MaxFrequencyHz)
	}
	return c
}
