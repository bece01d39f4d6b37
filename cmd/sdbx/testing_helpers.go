package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/Giulio2002/sdbx"
)

// resetFlags puts the global flags back to their defaults so tests do
// not leak state into each other.
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	configPath = ""
	noSubdir = false
	readOnly = false
	maxDBs = 0
	mapSizeFlag = 0
}

// seedEnv creates a temporary environment with a few records in the
// main tree and one named database.
func seedEnv(t *testing.T, records map[string]string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sdbx-cli-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	env, err := sdbx.Open(dir, &sdbx.EnvOptions{MaxDBs: 4})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer env.Close()

	var root, named *sdbx.Database
	err = env.Update(func(txn *sdbx.Txn) error {
		var err error
		if root, err = txn.OpenRoot(0); err != nil {
			return err
		}
		for k, v := range records {
			if err := root.Put(txn, []byte(k), []byte(v), 0); err != nil {
				return err
			}
		}
		if named, err = txn.OpenDBI("named", sdbx.Create); err != nil {
			return err
		}
		return named.Put(txn, []byte("nk"), []byte("nv"), 0)
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	root.Close()
	named.Close()
	return dir
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	r.Close()
	return buf.String(), fnErr
}
