package main

import (
	"strings"
	"testing"

	"github.com/Giulio2002/sdbx"
)

// openShell opens a seeded environment and wraps it in a shell with no
// line editor attached; the command handlers never touch it.
func openShell(t *testing.T, records map[string]string) *shell {
	t.Helper()
	dir := seedEnv(t, records)
	env, err := sdbx.Open(dir, &sdbx.EnvOptions{MaxDBs: 4})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { env.Close() })
	return &shell{env: env}
}

func TestShellCommandCycle(t *testing.T) {
	s := openShell(t, nil)

	out, _ := captureOutput(t, func() error {
		s.cmdPut([]string{"alpha", "one"})
		return nil
	})
	if !strings.Contains(out, "OK") {
		t.Errorf("put output = %q, want OK", out)
	}

	out, _ = captureOutput(t, func() error {
		s.cmdGet([]string{"alpha"})
		return nil
	})
	if !strings.Contains(out, "one") {
		t.Errorf("get output = %q, want the value", out)
	}

	out, _ = captureOutput(t, func() error {
		s.cmdGet([]string{"missing"})
		return nil
	})
	if !strings.Contains(out, "(not found)") {
		t.Errorf("get missing output = %q, want (not found)", out)
	}

	out, _ = captureOutput(t, func() error {
		s.cmdDel([]string{"alpha"})
		return nil
	})
	if !strings.Contains(out, "OK") {
		t.Errorf("del output = %q, want OK", out)
	}

	out, _ = captureOutput(t, func() error {
		s.cmdGet([]string{"alpha"})
		return nil
	})
	if !strings.Contains(out, "(not found)") {
		t.Errorf("get after del output = %q, want (not found)", out)
	}

	out, _ = captureOutput(t, func() error {
		s.cmdGet(nil)
		return nil
	})
	if !strings.Contains(out, "Usage: get") {
		t.Errorf("bad arity output = %q, want usage line", out)
	}
}

func TestShellHeldTransaction(t *testing.T) {
	s := openShell(t, nil)

	if got := s.prompt(); got != "sdbx> " {
		t.Errorf("prompt = %q, want sdbx> ", got)
	}

	captureOutput(t, func() error { s.cmdBegin(); return nil })
	if s.txn == nil {
		t.Fatal("begin should hold a transaction open")
	}
	if got := s.prompt(); got != "sdbx*> " {
		t.Errorf("prompt with open txn = %q, want sdbx*> ", got)
	}

	out, _ := captureOutput(t, func() error { s.cmdBegin(); return nil })
	if !strings.Contains(out, "already open") {
		t.Errorf("second begin output = %q, want already-open notice", out)
	}

	// Writes inside the held transaction are visible to reads joining it.
	captureOutput(t, func() error { s.cmdPut([]string{"pending", "w"}); return nil })
	out, _ = captureOutput(t, func() error { s.cmdGet([]string{"pending"}); return nil })
	if !strings.Contains(out, "w") {
		t.Errorf("get inside txn = %q, want pending write", out)
	}

	// Abort discards them.
	captureOutput(t, func() error { s.cmdAbort(); return nil })
	if s.txn != nil {
		t.Fatal("abort should clear the held transaction")
	}
	out, _ = captureOutput(t, func() error { s.cmdGet([]string{"pending"}); return nil })
	if !strings.Contains(out, "(not found)") {
		t.Errorf("get after abort = %q, want (not found)", out)
	}

	// Commit keeps them.
	captureOutput(t, func() error { s.cmdBegin(); return nil })
	captureOutput(t, func() error { s.cmdPut([]string{"kept", "v"}); return nil })
	captureOutput(t, func() error { s.cmdCommit(); return nil })
	if s.txn != nil {
		t.Fatal("commit should clear the held transaction")
	}
	out, _ = captureOutput(t, func() error { s.cmdGet([]string{"kept"}); return nil })
	if !strings.Contains(out, "v") {
		t.Errorf("get after commit = %q, want committed write", out)
	}

	out, _ = captureOutput(t, func() error { s.cmdCommit(); return nil })
	if !strings.Contains(out, "No open transaction") {
		t.Errorf("commit without txn = %q, want no-transaction notice", out)
	}
}

func TestShellUseScanDrop(t *testing.T) {
	s := openShell(t, map[string]string{"a1": "1", "a2": "2", "b1": "3"})

	s.cmdUse([]string{"named"})
	if got := s.prompt(); got != "sdbx:named> " {
		t.Errorf("prompt = %q, want sdbx:named> ", got)
	}
	out, _ := captureOutput(t, func() error { s.cmdGet([]string{"nk"}); return nil })
	if !strings.Contains(out, "nv") {
		t.Errorf("get in named db = %q, want nv", out)
	}

	s.cmdUse(nil)
	out, _ = captureOutput(t, func() error { s.cmdScan(nil); return nil })
	for _, want := range []string{"a1 = 1", "b1 = 3", "3 entr(ies)"} {
		if !strings.Contains(out, want) {
			t.Errorf("scan output = %q, want %q", out, want)
		}
	}

	out, _ = captureOutput(t, func() error { s.cmdPrefix([]string{"a"}); return nil })
	if strings.Contains(out, "b1") || !strings.Contains(out, "2 entr(ies)") {
		t.Errorf("prefix output = %q, want the two a-keys only", out)
	}

	out, _ = captureOutput(t, func() error { s.cmdDBs(); return nil })
	if !strings.Contains(out, "named") {
		t.Errorf("dbs output = %q, want the named database listed", out)
	}

	s.cmdUse([]string{"named"})
	out, _ = captureOutput(t, func() error { s.cmdDrop([]string{"named"}); return nil })
	if !strings.Contains(out, "OK") {
		t.Errorf("drop output = %q, want OK", out)
	}
	if s.current != "" {
		t.Errorf("dropping the current database should reset it, got %q", s.current)
	}
	out, _ = captureOutput(t, func() error { s.cmdDBs(); return nil })
	if !strings.Contains(out, "0 database(s)") {
		t.Errorf("dbs after drop = %q, want none left", out)
	}
}

func TestShellCompleter(t *testing.T) {
	s := &shell{}

	got := s.completer("co")
	want := []string{"count", "commit"}
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
			}
		}
		if !found {
			t.Errorf("completer(co) = %v, missing %q", got, w)
		}
	}
	if len(s.completer("")) != len(shellCommands) {
		t.Errorf("empty prefix should complete to every command")
	}
	if len(s.completer("zz")) != 0 {
		t.Errorf("unknown prefix should complete to nothing")
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		args []string
		want int
	}{
		{nil, 50},
		{[]string{"10"}, 10},
		{[]string{"junk"}, 50},
		{[]string{"-3"}, 50},
		{[]string{"p", "7"}, 7},
	}
	for _, tc := range cases {
		if got := parseLimit(tc.args, 50); got != tc.want {
			t.Errorf("parseLimit(%v) = %d, want %d", tc.args, got, tc.want)
		}
	}
}
