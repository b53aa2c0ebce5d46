// Package surface is the local visualisation surface: it shows transient
// notices raised by the scheduler.
package surface

import (
	"sync"
	"time"

	"animsched/internal/eventbus"
	logx "animsched/pkg/logx"
)

// Notice is the payload of eventbus.TypeNotice.
type Notice struct {
	Text     string        `json:"text"`
	Duration time.Duration `json:"duration"`
	Until    time.Time     `json:"until"`
}

// Console implements anim.Notifier by logging the notice and publishing it.
type Console struct {
	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	mu   sync.Mutex
	last Notice
}

func NewConsole(log logx.Logger, bus eventbus.Bus) *Console {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Console{log: log, bus: bus, now: time.Now}
}

func (c *Console) ShowText(text string, d time.Duration) {
	now := c.now()
	n := Notice{Text: text, Duration: d, Until: now.Add(d)}

	c.mu.Lock()
	c.last = n
	c.mu.Unlock()

	c.log.Warn(text, logx.Duration("shown_for", d))
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeNotice, Time: now, Data: n})
	}
}

// Active returns the notice still on screen at t, if any.
func (c *Console) Active(t time.Time) (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.Text == "" || !t.Before(c.last.Until) {
		return Notice{}, false
	}
	return c.last, true
}
