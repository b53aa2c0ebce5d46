package surface

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"animsched/internal/eventbus"
	logx "animsched/pkg/logx"
)

func TestConsoleShowText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(2)
	defer unsub()

	c := NewConsole(logx.NewWriter(&buf, "info"), bus)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.ShowText("slow down", time.Second)

	if !strings.Contains(buf.String(), "slow down") {
		t.Fatalf("log output = %q", buf.String())
	}
	select {
	case e := <-ch:
		n, ok := e.Data.(Notice)
		if e.Type != eventbus.TypeNotice || !ok || n.Text != "slow down" {
			t.Fatalf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no notice event")
	}

	if _, ok := c.Active(base.Add(500 * time.Millisecond)); !ok {
		t.Fatal("notice should still be active")
	}
	if _, ok := c.Active(base.Add(time.Second)); ok {
		t.Fatal("notice should have expired")
	}
}
