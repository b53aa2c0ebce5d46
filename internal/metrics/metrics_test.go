package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.JobsScheduled(3)
	m.JobFired(time.Millisecond)
	m.JobsDropped(ReasonTrim, 2)
	m.ActionPanicked()
	m.CycleStarted()
	m.Replayed()
	m.NoticeShown()
	m.SetBacklog(4)
	m.SetSuppressed(true)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have nil registry")
	}
}

func TestCountersAccumulate(t *testing.T) {
	t.Parallel()
	m := New()
	m.JobsScheduled(5)
	m.JobsDropped(ReasonTrim, 2)
	m.JobsDropped(ReasonOverload, 3)
	m.JobFired(-time.Millisecond)

	if got := testutil.ToFloat64(m.scheduled); got != 5 {
		t.Fatalf("scheduled = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues(ReasonTrim)); got != 2 {
		t.Fatalf("dropped{trim} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues(ReasonOverload)); got != 3 {
		t.Fatalf("dropped{overload} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.fired); got != 1 {
		t.Fatalf("fired = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()
	m := New()
	m.SetBacklog(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "animsched_backlog_jobs 7") {
		t.Fatalf("backlog gauge missing from exposition:\n%s", body)
	}
}
