package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"animsched/internal/storage"
	logx "animsched/pkg/logx"
)

// Commands share the package-level config flag, so these tests are serial.

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")
	cfgPath := filepath.Join(dir, "animsched.json")
	cfgBody := `{"storage":{"driver":"sqlite","path":` + quote(dbPath) + `}}`
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o600); err != nil {
		t.Fatal(err)
	}

	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: dbPath}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	err = st.AppendInstruction(context.Background(), storage.InstructionRecord{
		ID:                 "0b6f8c2e-0000-4000-8000-000000000001",
		Name:               "beq",
		RecordedAt:         time.Now(),
		InstructionOffsets: []time.Duration{0, 100 * time.Millisecond},
		CycleOffsets:       []time.Duration{0, 100 * time.Millisecond},
	})
	_ = st.Close()
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--config", cfgPath, "--limit", "5"})
	if err := root.Execute(); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out.String(), "beq") || !strings.Contains(out.String(), "0,100") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunFlagsValidated(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--config", "missing.yaml", "--cycles=-1"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), ">= 0") {
		t.Fatalf("run --cycles -1 = %v", err)
	}

	root = NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"replay", "--config", "missing.yaml"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--instruction") {
		t.Fatalf("replay without instruction = %v", err)
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
}
