package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/muaviaUsmani/tempo/pkg/trigger"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompile(t *testing.T) {
	tests := []struct {
		doc      string
		expected string
	}{
		{`{"type":"daily","hour":9,"minute":0}`, "0 9 * * *"},
		{`{"type":"weekly","dayOfWeek":1,"hour":10,"minute":30}`, "30 10 * * 1"},
		{`{"type":"monthly","dayOfMonth":15,"hour":14,"minute":30}`, "30 14 15 * *"},
		{`{"type":"every_n_minutes","minutes":15}`, "*/15 * * * *"},
		{`{"type":"none"}`, "(no trigger)"},
	}

	for _, tt := range tests {
		out, err := run(t, "", "compile", tt.doc)
		if err != nil {
			t.Errorf("compile %s: expected no error, got %v", tt.doc, err)
			continue
		}
		if strings.TrimSpace(out) != tt.expected {
			t.Errorf("compile %s: expected %q, got %q", tt.doc, tt.expected, strings.TrimSpace(out))
		}
	}
}

func TestCompile_FromStdinAndErrors(t *testing.T) {
	out, err := run(t, `{"type":"daily","hour":6,"minute":5}`, "compile")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.TrimSpace(out) != "5 6 * * *" {
		t.Errorf("expected %q, got %q", "5 6 * * *", out)
	}

	if _, err := run(t, "", "compile", `{"type":"daily","hour":24,"minute":0}`); err == nil {
		t.Error("expected error for out of range hour")
	}
	if _, err := run(t, "", "compile", `{"type":"yearly"}`); !errors.Is(err, trigger.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestOneShot(t *testing.T) {
	out, err := run(t, "", "oneshot", "2024-03-04T10:15:30Z")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.TrimSpace(out) != "16 10 4 3 * 2024" {
		t.Errorf("expected rounded one-shot, got %q", out)
	}
}

func TestValidate(t *testing.T) {
	if out, err := run(t, "", "validate", "0 9 * * 1"); err != nil || strings.TrimSpace(out) != "valid" {
		t.Errorf("expected valid, got %q, %v", out, err)
	}
	if _, err := run(t, "", "validate", "0 9 *"); err == nil {
		t.Error("expected error for short expression")
	}
}

func TestNext(t *testing.T) {
	out, err := run(t, "", "next", "0 9 * * *", "--after", "2024-03-04T10:00:00Z", "-n", "2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	expected := []string{"2024-03-05T09:00:00Z", "2024-03-06T09:00:00Z"}
	if len(lines) != 2 || lines[0] != expected[0] || lines[1] != expected[1] {
		t.Errorf("expected %v, got %v", expected, lines)
	}

	out, _ = run(t, "", "next", "0 0 1 1 * 2020", "--after", "2024-03-04T10:00:00Z")
	if strings.TrimSpace(out) != "(never fires)" {
		t.Errorf("expected past one-shot never to fire, got %q", out)
	}
}

func TestBackoff(t *testing.T) {
	out, err := run(t, "", "backoff", "--max-retries", "6")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, ms := range []string{"5000", "10000", "20000", "40000", "60000"} {
		if !strings.Contains(out, ms) {
			t.Errorf("expected delay %sms in output:\n%s", ms, out)
		}
	}

	if _, err := run(t, "", "backoff", "--multiplier", "0.5"); err == nil {
		t.Error("expected error for multiplier below 1")
	}
}

func TestHealth(t *testing.T) {
	out, err := run(t, "", "health")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "score: 100.0") || !strings.Contains(out, "status: healthy") {
		t.Errorf("expected healthy 100 for no executions, got %q", out)
	}

	out, _ = run(t, "", "health", "--success", "2", "--failed", "8")
	if !strings.Contains(out, "status: critical") {
		t.Errorf("expected critical, got %q", out)
	}
}

func TestOverlap(t *testing.T) {
	windows := `[
		{"id":"a","owner":"alice","start":"2024-03-04T09:00:00Z","end":"2024-03-04T10:00:00Z"},
		{"id":"b","owner":"alice","start":"2024-03-04T10:00:00Z","end":"2024-03-04T11:00:00Z"},
		{"id":"c","owner":"alice","start":"2024-03-04T09:30:00Z","end":"2024-03-04T10:30:00Z"}
	]`

	out, err := run(t, windows, "overlap", "--candidate", "c")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "\na ") || !strings.Contains(out, "\nb ") {
		t.Errorf("expected a and b as conflicts, got:\n%s", out)
	}

	out, _ = run(t, windows, "overlap", "--candidate", "a")
	if !strings.Contains(out, "\nc ") || strings.Contains(out, "\nb ") {
		t.Errorf("expected only c as conflict of a, got:\n%s", out)
	}

	out, _ = run(t, windows, "overlap", "--candidate", "b", "--owner", "bob")
	if strings.TrimSpace(out) != "b has no conflicts" {
		t.Errorf("expected other owners to be skipped, got:\n%s", out)
	}

	if _, err := run(t, windows, "overlap", "--candidate", "zzz"); err == nil {
		t.Error("expected error for unknown candidate")
	}
}

func TestDeps_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.json")
	edges := `[
		{"predecessor_id":"a","successor_id":"b","type":"finish_to_start","lag_days":0},
		{"predecessor_id":"b","successor_id":"c","type":"finish_to_start","lag_days":0}
	]`
	if err := os.WriteFile(path, []byte(edges), 0o644); err != nil {
		t.Fatalf("failed to write edges: %v", err)
	}

	out, err := run(t, "", "deps", "ancestors", "c", "-f", path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.TrimSpace(out) != "a\nb" {
		t.Errorf("expected a and b, got %q", out)
	}

	out, _ = run(t, "", "deps", "descendants", "a", "-f", path)
	if strings.TrimSpace(out) != "b\nc" {
		t.Errorf("expected b and c, got %q", out)
	}

	out, _ = run(t, "", "deps", "cycle", "-f", path)
	if strings.TrimSpace(out) != "no cycle" {
		t.Errorf("expected no cycle, got %q", out)
	}
}

func TestDeps_Cycle(t *testing.T) {
	edges := `[
		{"predecessor_id":"a","successor_id":"b","type":"finish_to_start","lag_days":0},
		{"predecessor_id":"b","successor_id":"a","type":"start_to_start","lag_days":0},
		{"predecessor_id":"b","successor_id":"c","type":"finish_to_start","lag_days":0}
	]`

	out, err := run(t, edges, "deps", "cycle", "-f", "-")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.TrimSpace(out) != "cycle: a, b" {
		t.Errorf("expected cycle a, b, got %q", out)
	}

	if _, err := run(t, `[{"predecessor_id":"a","successor_id":"a","type":"finish_to_start"}]`, "deps", "cycle", "-f", "-"); err == nil {
		t.Error("expected self-dependency to be rejected")
	}
}

func TestDeps_FromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("TEMPO_CONFIG", "")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("TEMPO_KEY_PREFIX", "ctl")

	mr.HSet("ctl:edges", "x->y", `{"predecessor_id":"x","successor_id":"y","type":"finish_to_start","lag_days":0}`)

	out, err := run(t, "", "deps", "descendants", "x")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.TrimSpace(out) != "y" {
		t.Errorf("expected y, got %q", out)
	}
}
