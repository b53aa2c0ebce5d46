package debugsrv

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"animsched/internal/metrics"
	logx "animsched/pkg/logx"
)

func TestMuxRoutes(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	m.CycleStarted()
	s := New(Config{}, Handlers{
		Metrics:  m.Handler(),
		Snapshot: func() any { return map[string]int{"backlog": 3} },
	}, logx.Nop())
	srv := httptest.NewServer(s.mux(Config{Prefix: "dbg"}))
	defer srv.Close()

	cases := []struct {
		path, want string
	}{
		{"/healthz", "ok"},
		{"/metrics", "animsched_cycles_total 1"},
		{"/debug/scheduler", `"backlog": 3`},
		{"/dbg/", "goroutine"},
	}
	for _, tc := range cases {
		body, code := get(t, srv.URL+tc.path, "")
		if code != http.StatusOK || !strings.Contains(body, tc.want) {
			t.Fatalf("GET %s = %d %q; want %q", tc.path, code, trunc(body), tc.want)
		}
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	s := New(Config{}, Handlers{}, logx.Nop())
	srv := httptest.NewServer(s.mux(Config{Token: "s3cret"}))
	defer srv.Close()

	if _, code := get(t, srv.URL+"/healthz", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
	if _, code := get(t, srv.URL+"/healthz?token=nope", ""); code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", code)
	}
	if _, code := get(t, srv.URL+"/healthz?token=s3cret", ""); code != http.StatusOK {
		t.Fatalf("query token: %d", code)
	}
	if _, code := get(t, srv.URL+"/healthz", "Bearer s3cret"); code != http.StatusOK {
		t.Fatalf("bearer token: %d", code)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, Handlers{}, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if body, code := get(t, "http://"+s.Addr()+"/healthz", ""); code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz = %d %q", code, body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Reconfigure(ctx, Config{Enabled: false})
	if s.Addr() != "" {
		t.Fatal("address still set after disable")
	}
}

func TestLoopbackAndRestart(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:6060":     true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"bogus":          false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v", addr, got)
		}
	}
	if needsRestart(Config{Prefix: "x"}, Config{Prefix: "/x/", BlockProfileRate: 5}) {
		t.Fatal("equivalent configs need restart")
	}
	if !needsRestart(Config{Addr: "a"}, Config{Addr: "b"}) {
		t.Fatal("addr change must restart")
	}
}

func get(t *testing.T, url, auth string) (string, int) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return string(b), resp.StatusCode
}

func trunc(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
