package sdbx

import (
	"os"
	"path/filepath"
	"testing"
)

// testEnv opens a throwaway environment in single-file mode.
func testEnv(t *testing.T, opts *EnvOptions) *Env {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "sdbx-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	if opts == nil {
		opts = &EnvOptions{}
	}
	opts.Flags |= NoSubdir

	env, err := Open(filepath.Join(tmpDir, "test.db"), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { env.Close() })
	return env
}

func TestOpenClose(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sdbx-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	env, err := Open(dbPath, &EnvOptions{Flags: NoSubdir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if env.Path() != dbPath {
		t.Errorf("Path mismatch: got %q, want %q", env.Path(), dbPath)
	}
	if env.Label() != Default {
		t.Errorf("Label mismatch: got %q, want %q", env.Label(), Default)
	}

	if err := env.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := env.Close(); err != ErrEnvClosed {
		t.Errorf("second Close: got %v, want %v", err, ErrEnvClosed)
	}
}

func TestOpenBadOptions(t *testing.T) {
	if _, err := Open("x", &EnvOptions{MaxDBs: -1}); !IsArgument(err) {
		t.Errorf("negative MaxDBs: got %v, want argument error", err)
	}
	if _, err := Open("x", &EnvOptions{MaxReaders: -1}); !IsArgument(err) {
		t.Errorf("negative MaxReaders: got %v, want argument error", err)
	}
	if _, err := Open("x", &EnvOptions{MapSize: -1}); !IsArgument(err) {
		t.Errorf("negative MapSize: got %v, want argument error", err)
	}
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := Open("/nonexistent/sdbx/test.db", &EnvOptions{Flags: NoSubdir})
	if err == nil {
		t.Fatal("Open of a missing directory should fail")
	}
}

func TestReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sdbx-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	env, err := Open(dbPath, &EnvOptions{Flags: NoSubdir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	err = env.Update(func(txn *Txn) error {
		db, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		return db.Put(txn, []byte("k"), []byte("v"), 0)
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The data must survive a close and reopen cycle.
	env, err = Open(dbPath, &EnvOptions{Flags: NoSubdir})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer env.Close()

	err = env.View(func(txn *Txn) error {
		db, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		v, err := db.Get(txn, []byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "v" {
			t.Errorf("Get after reopen: got %q, want %q", v, "v")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestEnvStat(t *testing.T) {
	env := testEnv(t, nil)

	st, err := env.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if st.PageSize == 0 {
		t.Error("Stat.PageSize should be > 0")
	}
}

func TestEnvInfo(t *testing.T) {
	env := testEnv(t, &EnvOptions{MapSize: 1 << 24})

	info, err := env.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.MapSize < 1<<24 {
		t.Errorf("Info.MapSize: got %d, want >= %d", info.MapSize, 1<<24)
	}
	if info.MaxReaders == 0 {
		t.Error("Info.MaxReaders should be > 0")
	}
}

func TestOpenGeometry(t *testing.T) {
	env := testEnv(t, &EnvOptions{Geometry: &Geometry{
		SizeLower:  1 << 20,
		SizeUpper:  1 << 26,
		GrowthStep: 1 << 20,
	}})

	info, err := env.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Geo.Upper != 1<<26 {
		t.Errorf("Geo.Upper = %d, want %d", info.Geo.Upper, 1<<26)
	}
	if info.Geo.Lower != 1<<20 {
		t.Errorf("Geo.Lower = %d, want %d", info.Geo.Lower, 1<<20)
	}

	tmpDir, err := os.MkdirTemp("", "sdbx-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	_, err = Open(filepath.Join(tmpDir, "test.db"), &EnvOptions{
		Flags:    NoSubdir,
		MapSize:  1 << 24,
		Geometry: &Geometry{SizeUpper: 1 << 24},
	})
	if !IsArgument(err) {
		t.Errorf("MapSize+Geometry error = %v, want argument error", err)
	}
}

func TestEnvSync(t *testing.T) {
	env := testEnv(t, nil)

	err := env.Update(func(txn *Txn) error {
		db, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		return db.Put(txn, []byte("k"), []byte("v"), 0)
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := env.Sync(true); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
}

func TestEnvFlags(t *testing.T) {
	env := testEnv(t, nil)

	flags, err := env.Flags()
	if err != nil {
		t.Fatalf("Flags failed: %v", err)
	}
	if flags&NoSubdir == 0 {
		t.Error("Flags should include NoSubdir")
	}

	if err := env.SetFlags(NoMetaSync); err != nil {
		t.Fatalf("SetFlags failed: %v", err)
	}
	flags, err = env.Flags()
	if err != nil {
		t.Fatalf("Flags failed: %v", err)
	}
	if flags&NoMetaSync == 0 {
		t.Error("Flags should include NoMetaSync after SetFlags")
	}
	if err := env.UnsetFlags(NoMetaSync); err != nil {
		t.Fatalf("UnsetFlags failed: %v", err)
	}

	// Flags fixed at open time cannot be flipped afterwards.
	if err := env.SetFlags(ReadOnly); !IsArgument(err) {
		t.Errorf("SetFlags(ReadOnly): got %v, want argument error", err)
	}
}

func TestEnvCloseWithLiveTxn(t *testing.T) {
	env := testEnv(t, nil)

	txn, err := env.BeginTxn(nil, TxnReadOnly)
	if err != nil {
		t.Fatalf("BeginTxn failed: %v", err)
	}

	if err := env.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The outstanding transaction fails cleanly instead of crashing.
	if _, err := txn.OpenRoot(0); err != ErrEnvClosed {
		t.Errorf("OpenRoot after env close: got %v, want %v", err, ErrEnvClosed)
	}
	if _, err := env.BeginTxn(nil, TxnReadOnly); err != ErrEnvClosed {
		t.Errorf("BeginTxn after close: got %v, want %v", err, ErrEnvClosed)
	}

	// The native environment is released with the last handle.
	txn.Abort()
}

func TestEnvRefCounting(t *testing.T) {
	env := testEnv(t, nil)

	txn, err := env.BeginTxn(nil, TxnReadOnly)
	if err != nil {
		t.Fatalf("BeginTxn failed: %v", err)
	}
	db, err := txn.OpenRoot(0)
	if err != nil {
		t.Fatalf("OpenRoot failed: %v", err)
	}
	cur, err := db.OpenCursor(txn)
	if err != nil {
		t.Fatalf("OpenCursor failed: %v", err)
	}

	env.mu.Lock()
	refs := env.refs
	env.mu.Unlock()
	if refs != 4 {
		t.Errorf("refs with txn+db+cursor: got %d, want 4", refs)
	}

	if err := cur.Close(); err != nil {
		t.Fatalf("cursor Close failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("database Close failed: %v", err)
	}
	txn.Abort()

	env.mu.Lock()
	refs = env.refs
	env.mu.Unlock()
	if refs != 1 {
		t.Errorf("refs after releasing handles: got %d, want 1", refs)
	}
}

func TestEnvCopy(t *testing.T) {
	env := testEnv(t, nil)

	err := env.Update(func(txn *Txn) error {
		db, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		return db.Put(txn, []byte("k"), []byte("v"), 0)
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	tmpDir, err := os.MkdirTemp("", "sdbx-copy-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dstPath := filepath.Join(tmpDir, "copy.db")
	if err := env.Copy(dstPath); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	copied, err := Open(dstPath, &EnvOptions{Flags: NoSubdir})
	if err != nil {
		t.Fatalf("open of copy failed: %v", err)
	}
	defer copied.Close()

	err = copied.View(func(txn *Txn) error {
		db, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		v, err := db.Get(txn, []byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "v" {
			t.Errorf("Get in copy: got %q, want %q", v, "v")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View of copy failed: %v", err)
	}
}

func TestEnvCopyCompact(t *testing.T) {
	env := testEnv(t, &EnvOptions{MaxDBs: 4})

	err := env.Update(func(txn *Txn) error {
		db, err := txn.OpenDBI("words", Create)
		if err != nil {
			return err
		}
		if err := db.Put(txn, []byte("a"), []byte("1"), 0); err != nil {
			return err
		}
		root, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		return root.Put(txn, []byte("plain"), []byte("data"), 0)
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	tmpDir, err := os.MkdirTemp("", "sdbx-compact-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dstPath := filepath.Join(tmpDir, "compact.db")
	if err := env.CopyFlags(dstPath, CopyCompact); err != nil {
		t.Fatalf("CopyFlags failed: %v", err)
	}

	copied, err := Open(dstPath, &EnvOptions{Flags: NoSubdir, MaxDBs: 4})
	if err != nil {
		t.Fatalf("open of compacted copy failed: %v", err)
	}
	defer copied.Close()

	err = copied.View(func(txn *Txn) error {
		db, err := txn.OpenDBI("words", 0)
		if err != nil {
			return err
		}
		v, err := db.Get(txn, []byte("a"))
		if err != nil {
			return err
		}
		if string(v) != "1" {
			t.Errorf("named Get in copy: got %q, want %q", v, "1")
		}
		root, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		v, err = root.Get(txn, []byte("plain"))
		if err != nil {
			return err
		}
		if string(v) != "data" {
			t.Errorf("root Get in copy: got %q, want %q", v, "data")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View of compacted copy failed: %v", err)
	}
}

func TestReaderList(t *testing.T) {
	env := testEnv(t, nil)

	txn, err := env.BeginTxn(nil, TxnReadOnly)
	if err != nil {
		t.Fatalf("BeginTxn failed: %v", err)
	}
	defer txn.Abort()

	var readers int
	err = env.ReaderList(func(info ReaderInfo) error {
		if info.PID != os.Getpid() {
			t.Errorf("reader PID: got %d, want %d", info.PID, os.Getpid())
		}
		readers++
		return nil
	})
	if err != nil {
		t.Fatalf("ReaderList failed: %v", err)
	}
	if readers == 0 {
		t.Error("ReaderList should report the open read transaction")
	}

	if _, err := env.ReaderCheck(); err != nil {
		t.Fatalf("ReaderCheck failed: %v", err)
	}
}

func TestRunEnv(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sdbx-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	var captured *Env
	err = RunEnv(filepath.Join(tmpDir, "test.db"), &EnvOptions{Flags: NoSubdir}, func(env *Env) error {
		captured = env
		return env.Update(func(txn *Txn) error {
			db, err := txn.OpenRoot(0)
			if err != nil {
				return err
			}
			return db.Put(txn, []byte("k"), []byte("v"), 0)
		})
	})
	if err != nil {
		t.Fatalf("RunEnv failed: %v", err)
	}

	// The environment is closed once the block returns.
	if err := captured.Close(); err != ErrEnvClosed {
		t.Errorf("Close after RunEnv: got %v, want %v", err, ErrEnvClosed)
	}
}

func TestUpdatePanicAborts(t *testing.T) {
	env := testEnv(t, nil)

	var db *Database
	err := env.Update(func(txn *Txn) error {
		var err error
		db, err = txn.OpenDBI("words", Create)
		return err
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		env.Update(func(txn *Txn) error {
			if err := db.Put(txn, []byte("k"), []byte("v"), 0); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	// The panicking transaction must have aborted.
	err = env.View(func(txn *Txn) error {
		_, err := db.Get(txn, []byte("k"))
		if !IsNotFound(err) {
			t.Errorf("Get after panic: got %v, want not found", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}
