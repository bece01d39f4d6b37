package sdbx

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Default environment configuration applied when EnvOptions leaves a
// field zero.
const (
	defaultMaxDBs = 10
	defaultMode   = os.FileMode(0755)
)

// EnvOptions configures an environment at open time.
// Zero values select the defaults: mode 0755, 10 named databases, the
// engine's own reader limit and map geometry.
type EnvOptions struct {
	// Flags is a bitwise OR of environment flags (NoSubdir, ReadOnly, ...).
	Flags uint

	// Mode is the unix permission mode for created files.
	Mode os.FileMode

	// MaxReaders caps the number of reader slots. Zero keeps the
	// engine default.
	MaxReaders int

	// MaxDBs caps the number of named databases openable in the
	// environment. Zero selects the default of 10.
	MaxDBs int

	// MapSize is the upper bound for the data file size in bytes.
	// Zero keeps the engine default geometry.
	MapSize int64

	// Geometry gives full control over the size limits and page size.
	// Mutually exclusive with MapSize.
	Geometry *Geometry

	// Label is a diagnostics label attached to the environment.
	Label Label
}

// Env is a handle to an open environment.
//
// The environment owns the data file. Every transaction, database and
// cursor opened under it holds a reference; the native environment is
// released only when Close has been called and the last such reference
// is gone, so closing an environment with live children never invalidates
// memory they may still touch.
type Env struct {
	mu     sync.Mutex
	env    *mdbx.Env
	refs   int
	closed bool

	path   string
	flags  uint
	label  Label
	maxDBs int
}

// Open opens the environment at path, creating it if necessary.
// A nil opts behaves like a zero EnvOptions. Reader and map size limits
// are applied before the file is mapped, as the engine requires.
func Open(path string, opts *EnvOptions) (*Env, error) {
	var o EnvOptions
	if opts != nil {
		o = *opts
	}
	if o.Mode == 0 {
		o.Mode = defaultMode
	}
	if o.MaxDBs == 0 {
		o.MaxDBs = defaultMaxDBs
	}
	if o.MaxDBs < 0 {
		return nil, argErr("MaxDBs", "must be at least 1")
	}
	if o.MaxReaders < 0 {
		return nil, argErr("MaxReaders", "must be at least 1")
	}
	if o.MapSize < 0 {
		return nil, argErr("MapSize", "must not be negative")
	}
	if o.MapSize > 0 && o.Geometry != nil {
		return nil, argErr("Geometry", "mutually exclusive with MapSize")
	}
	if o.Label == "" {
		o.Label = Default
	}

	nenv, err := mdbx.NewEnv(mdbx.Label(o.Label))
	if err != nil {
		return nil, fromEngine(err)
	}
	if o.MaxReaders > 0 {
		if err := nenv.SetOption(mdbx.OptMaxReaders, uint64(o.MaxReaders)); err != nil {
			nenv.Close()
			return nil, fromEngine(err)
		}
	}
	if o.MapSize > 0 {
		// Fixed map: current and upper size pinned to the requested value.
		if err := nenv.SetGeometry(-1, int(o.MapSize), int(o.MapSize), -1, -1, -1); err != nil {
			nenv.Close()
			return nil, fromEngine(err)
		}
	}
	if g := o.Geometry; g != nil {
		err := nenv.SetGeometry(geoVal(g.SizeLower), geoVal(g.SizeNow), geoVal(g.SizeUpper),
			geoVal(g.GrowthStep), geoVal(g.ShrinkThreshold), geoPageSize(g.PageSize))
		if err != nil {
			nenv.Close()
			return nil, fromEngine(err)
		}
	}
	if err := nenv.SetOption(mdbx.OptMaxDB, uint64(o.MaxDBs)); err != nil {
		nenv.Close()
		return nil, fromEngine(err)
	}
	if err := nenv.Open(path, o.Flags, o.Mode); err != nil {
		nenv.Close()
		return nil, fromEngine(err)
	}

	env := &Env{
		env:    nenv,
		refs:   1,
		path:   path,
		flags:  o.Flags,
		label:  o.Label,
		maxDBs: o.MaxDBs,
	}
	logf(LogLvlVerbose, "env open %q label=%s", path, o.Label)
	return env, nil
}

// active returns ErrEnvClosed once Close has been called.
func (env *Env) active() error {
	if env == nil {
		return ErrEnvClosed
	}
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.closed {
		return ErrEnvClosed
	}
	return nil
}

// ref records a child handle holding the environment open.
func (env *Env) ref() {
	env.mu.Lock()
	env.refs++
	env.mu.Unlock()
}

// deref drops one reference and releases the native environment when
// the last one is gone.
func (env *Env) deref() {
	env.mu.Lock()
	env.refs--
	release := env.refs == 0
	env.mu.Unlock()
	if release {
		logf(LogLvlVerbose, "env release %q", env.path)
		env.env.Close()
		env.env = nil
	}
}

// closeDBI releases a table handle slot. Callers hold a reference, so
// the native environment is still alive here.
func (env *Env) closeDBI(dbi mdbx.DBI) {
	env.env.CloseDBI(dbi)
}

// Close marks the environment closed. Subsequent operations on it fail
// with ErrEnvClosed. The native environment is released once the last
// transaction, database or cursor opened under it has also been released.
// Closing an already-closed environment returns ErrEnvClosed.
func (env *Env) Close() error {
	env.mu.Lock()
	if env.closed {
		env.mu.Unlock()
		return ErrEnvClosed
	}
	env.closed = true
	env.mu.Unlock()
	env.deref()
	return nil
}

// Path returns the path the environment was opened at.
func (env *Env) Path() string {
	return env.path
}

// Label returns the environment's diagnostics label.
func (env *Env) Label() Label {
	return env.label
}

// MaxKeySize returns the maximum key size the engine accepts for this
// environment's page size, or 0 once the environment is closed.
func (env *Env) MaxKeySize() int {
	if err := env.active(); err != nil {
		return 0
	}
	return env.env.MaxKeySize()
}

// Stat holds statistics for the environment or a single database.
type Stat struct {
	PageSize      uint   // Page size in bytes
	Depth         uint   // Tree depth
	BranchPages   uint64 // Number of branch pages
	LeafPages     uint64 // Number of leaf pages
	OverflowPages uint64 // Number of overflow pages
	Entries       uint64 // Number of entries
}

// Stat returns statistics for the environment's main tree.
func (env *Env) Stat() (*Stat, error) {
	if err := env.active(); err != nil {
		return nil, err
	}
	st, err := env.env.Stat()
	if err != nil {
		return nil, fromEngine(err)
	}
	return &Stat{
		PageSize:      uint(st.PSize),
		Depth:         uint(st.Depth),
		BranchPages:   uint64(st.BranchPages),
		LeafPages:     uint64(st.LeafPages),
		OverflowPages: uint64(st.OverflowPages),
		Entries:       uint64(st.Entries),
	}, nil
}

// EnvInfoGeo describes the environment's size geometry.
type EnvInfoGeo struct {
	Lower   uint64 // Lower limit for datafile size
	Upper   uint64 // Upper limit for datafile size
	Current uint64 // Current datafile size
	Shrink  uint64 // Shrink threshold in bytes
	Grow    uint64 // Growth step in bytes
}

// EnvInfo holds information about the environment.
type EnvInfo struct {
	Geo            EnvInfoGeo
	MapSize        int64  // Size of the memory map
	LastPNO        int64  // Number of the last used page
	LastTxnID      uint64 // ID of the last committed transaction
	MaxReaders     uint   // Maximum number of reader slots
	NumReaders     uint   // Number of reader slots in use
	PageSize       uint   // Database page size
	SystemPageSize uint   // OS page size
}

// Info returns information about the environment.
func (env *Env) Info() (*EnvInfo, error) {
	if err := env.active(); err != nil {
		return nil, err
	}
	info, err := env.env.Info(nil)
	if err != nil {
		return nil, fromEngine(err)
	}
	return &EnvInfo{
		Geo: EnvInfoGeo{
			Lower:   uint64(info.Geo.Lower),
			Upper:   uint64(info.Geo.Upper),
			Current: uint64(info.Geo.Current),
			Shrink:  uint64(info.Geo.Shrink),
			Grow:    uint64(info.Geo.Grow),
		},
		MapSize:        int64(info.MapSize),
		LastPNO:        int64(info.LastPNO),
		LastTxnID:      uint64(info.LastTxnID),
		MaxReaders:     uint(info.MaxReaders),
		NumReaders:     uint(info.NumReaders),
		PageSize:       uint(info.PageSize),
		SystemPageSize: uint(info.SystemPageSize),
	}, nil
}

// Sync flushes buffered data to disk. With force true a synchronous
// flush is performed even when the environment was opened with one of
// the no-sync flags.
func (env *Env) Sync(force bool) error {
	if err := env.active(); err != nil {
		return err
	}
	if err := env.env.Sync(force, false); err != nil {
		return fromEngine(err)
	}
	return nil
}

// Flags returns the environment's current flags.
func (env *Env) Flags() (uint, error) {
	if err := env.active(); err != nil {
		return 0, err
	}
	flags, err := env.env.Flags()
	if err != nil {
		return 0, fromEngine(err)
	}
	return uint(flags), nil
}

// SetFlags sets environment flags. Only the runtime-changeable subset
// (NoMetaSync, SafeNoSync, UtterlyNoSync, NoMemInit, LifoReclaim) may
// be set after open; any other bit is rejected.
func (env *Env) SetFlags(flags uint) error {
	if err := env.active(); err != nil {
		return err
	}
	if flags&^mutableEnvFlags != 0 {
		return argErr("flags", "not changeable after open")
	}
	if err := env.env.SetFlags(flags); err != nil {
		return fromEngine(err)
	}
	return nil
}

// UnsetFlags clears environment flags, with the same changeable-subset
// restriction as SetFlags.
func (env *Env) UnsetFlags(flags uint) error {
	if err := env.active(); err != nil {
		return err
	}
	if flags&^mutableEnvFlags != 0 {
		return argErr("flags", "not changeable after open")
	}
	if err := env.env.UnsetFlags(flags); err != nil {
		return fromEngine(err)
	}
	return nil
}

// MaxDBs returns the named-database limit the environment was opened with.
func (env *Env) MaxDBs() int {
	return env.maxDBs
}

// dataFilePath returns the path of the data file for an environment
// rooted at path with the given flags.
func dataFilePath(path string, flags uint) string {
	if flags&NoSubdir != 0 {
		return path
	}
	return filepath.Join(path, DataFileName)
}

// Copy copies the environment to a new path. The destination must not
// exist yet. Equivalent to CopyFlags with CopyDefaults.
func (env *Env) Copy(path string) error {
	return env.CopyFlags(path, CopyDefaults)
}

// CopyFlags copies the environment to a new path. With CopyCompact the
// copy is rebuilt record by record, omitting free pages; otherwise the
// data file is copied as is. Either way the copy is taken against a
// stable snapshot: a write transaction is held for the duration when the
// environment is writable, so no concurrent writer can tear the copy.
func (env *Env) CopyFlags(path string, flags uint) error {
	if err := env.active(); err != nil {
		return err
	}

	txnFlags := TxnReadWrite
	if env.flags&ReadOnly != 0 {
		txnFlags = TxnReadOnly
	}
	txn, err := env.BeginTxn(nil, txnFlags)
	if err != nil {
		return err
	}
	defer txn.Abort()

	if flags&CopyCompact != 0 {
		return env.copyCompact(txn, path)
	}
	return env.copyFile(path)
}

// copyFile copies the raw data file to the destination layout.
func (env *Env) copyFile(path string) error {
	dstPath := path
	if env.flags&NoSubdir == 0 {
		if err := os.MkdirAll(path, 0755); err != nil {
			return WrapError(ErrProblem, err)
		}
		dstPath = filepath.Join(path, DataFileName)
	}

	src, err := os.Open(dataFilePath(env.path, env.flags))
	if err != nil {
		return WrapError(ErrProblem, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return WrapError(ErrProblem, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return WrapError(ErrProblem, err)
	}
	if err := dst.Sync(); err != nil {
		return WrapError(ErrProblem, err)
	}
	return nil
}

// copyCompact rebuilds the environment at the destination by copying
// every record of every database through cursors.
func (env *Env) copyCompact(txn *Txn, path string) error {
	if env.flags&NoSubdir == 0 {
		if err := os.MkdirAll(path, 0755); err != nil {
			return WrapError(ErrProblem, err)
		}
	}
	dstEnv, err := Open(path, &EnvOptions{
		Flags:  env.flags &^ ReadOnly,
		MaxDBs: env.maxDBs,
		Label:  env.label,
	})
	if err != nil {
		return err
	}
	defer dstEnv.Close()

	dstTxn, err := dstEnv.BeginTxn(nil, TxnReadWrite)
	if err != nil {
		return err
	}
	defer dstTxn.Abort()

	names, err := txn.ListDBI()
	if err != nil {
		return err
	}
	sub := make(map[string]bool, len(names))
	for _, name := range names {
		sub[name] = true
	}

	// The root database first, then every named one.
	if err := copyDatabase(txn, dstTxn, "", sub); err != nil {
		return err
	}
	for _, name := range names {
		if err := copyDatabase(txn, dstTxn, name, nil); err != nil {
			return err
		}
	}

	if _, err := dstTxn.Commit(); err != nil {
		return err
	}
	return dstEnv.Sync(true)
}

// copyDatabase copies all records of one database between transactions.
// An empty name selects the root database; skip then holds the names of
// the sub-databases, whose root records are recreated by OpenDBI on the
// destination rather than copied.
func copyDatabase(src, dst *Txn, name string, skip map[string]bool) error {
	nsrc, ndst := src.native(), dst.native()

	var srcDBI, dstDBI mdbx.DBI
	var err error
	if name == "" {
		if srcDBI, err = nsrc.OpenRoot(0); err != nil {
			return fromEngine(err)
		}
		if dstDBI, err = ndst.OpenRoot(0); err != nil {
			return fromEngine(err)
		}
	} else {
		if srcDBI, err = nsrc.OpenDBI(name, 0, nil, nil); err != nil {
			return fromEngine(err)
		}
		flags, err := nsrc.Flags(srcDBI)
		if err != nil {
			return fromEngine(err)
		}
		if dstDBI, err = ndst.OpenDBI(name, uint(flags)|Create, nil, nil); err != nil {
			return fromEngine(err)
		}
	}

	cur, err := nsrc.OpenCursor(srcDBI)
	if err != nil {
		return fromEngine(err)
	}
	defer cur.Close()

	k, v, err := cur.Get(nil, nil, First)
	for err == nil {
		if !skip[string(k)] {
			if perr := ndst.Put(dstDBI, k, v, Upsert); perr != nil {
				return fromEngine(perr)
			}
		}
		k, v, err = cur.Get(nil, nil, Next)
	}
	if !mdbx.IsNotFound(err) {
		return fromEngine(err)
	}
	return nil
}

// ReaderInfo describes one reader slot of the environment.
type ReaderInfo struct {
	Slot   int
	PID    int
	Thread uint64
	TxnID  uint64
}

// ReaderList calls fn for each reader slot in use. Iteration stops at
// the first error, which is returned.
func (env *Env) ReaderList(fn func(info ReaderInfo) error) error {
	if err := env.active(); err != nil {
		return err
	}
	err := env.env.ReaderList(func(info mdbx.ReaderInfo) error {
		return fn(ReaderInfo{
			Slot:   int(info.Slot),
			PID:    int(info.PID),
			Thread: uint64(info.TID),
			TxnID:  uint64(info.TxID),
		})
	})
	if err != nil {
		return fromEngine(err)
	}
	return nil
}

// ReaderCheck clears reader slots held by dead processes and returns
// the number of slots cleared.
func (env *Env) ReaderCheck() (int, error) {
	if err := env.active(); err != nil {
		return 0, err
	}
	n, err := env.env.ReaderCheck()
	if err != nil {
		return n, fromEngine(err)
	}
	return n, nil
}

// BeginTxn starts a transaction. A nil parent starts a root transaction;
// a non-nil parent must be an active read-write transaction of this
// environment and the child sees the parent's uncommitted writes.
//
// Read-write transactions are bound to the calling goroutine's OS thread
// for their lifetime; BeginTxn locks the thread and the transaction's
// end unlocks it.
func (env *Env) BeginTxn(parent *Txn, flags uint) (*Txn, error) {
	if err := env.active(); err != nil {
		return nil, err
	}

	var nparent *mdbx.Txn
	if parent != nil {
		if parent.env != env {
			return nil, argErr("parent", "belongs to a different environment")
		}
		if err := parent.active(); err != nil {
			return nil, err
		}
		parent.mu.Lock()
		nparent = parent.txn
		parent.mu.Unlock()
	}

	readonly := flags&TxnReadOnly != 0
	if !readonly {
		// Write transactions must stay on one OS thread until they end.
		runtime.LockOSThread()
	}

	ntxn, err := env.env.BeginTxn(nparent, flags)
	if err != nil {
		if !readonly {
			runtime.UnlockOSThread()
		}
		return nil, fromEngine(err)
	}

	env.ref()
	txn := &Txn{
		env:      env,
		txn:      ntxn,
		parent:   parent,
		readonly: readonly,
		threaded: !readonly,
	}
	runtime.SetFinalizer(txn, (*Txn).finalize)
	return txn, nil
}

// View runs fn in a read-only transaction, which is aborted on every
// exit path including a panic in fn.
func (env *Env) View(fn TxnOp) error {
	txn, err := env.BeginTxn(nil, TxnReadOnly)
	if err != nil {
		return err
	}
	defer txn.Abort()
	return fn(txn)
}

// Update runs fn in a read-write transaction. The transaction commits
// when fn returns nil and aborts otherwise; a panic in fn aborts before
// unwinding.
func (env *Env) Update(fn TxnOp) error {
	return env.RunTxn(TxnReadWrite, fn)
}

// RunTxn runs fn in a root transaction begun with the given flags,
// applying the same commit-or-abort contract as Update.
func (env *Env) RunTxn(flags uint, fn TxnOp) error {
	txn, err := env.BeginTxn(nil, flags)
	if err != nil {
		return err
	}
	defer txn.Abort()

	if err := fn(txn); err != nil {
		return err
	}
	_, err = txn.Commit()
	return err
}

// RunEnv opens the environment at path, passes it to fn and closes it
// again on every exit path.
func RunEnv(path string, opts *EnvOptions, fn func(env *Env) error) error {
	env, err := Open(path, opts)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}
