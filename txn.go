package sdbx

import (
	"runtime"
	"sync"
	"time"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Txn is a transaction handle.
//
// A transaction is active while its own handle has not been committed or
// aborted, every ancestor in its parent chain is likewise live, and the
// environment is open. Operations on an inactive transaction fail with
// ErrTxnTerminated (or ErrEnvClosed) before any engine call is issued;
// once ended, a transaction never becomes active again.
//
// There is no downward tracking of children. When a parent ends, the
// engine ends its nested transactions with it; the wrappers for those
// children detect the ended ancestor on their next use by walking the
// parent chain, and from then on never touch their native handles again.
type Txn struct {
	mu       sync.Mutex
	env      *Env
	txn      *mdbx.Txn
	parent   *Txn
	readonly bool
	threaded bool
}

// active returns nil only while the transaction and every ancestor are
// live and the environment is open.
func (txn *Txn) active() error {
	if txn == nil {
		return ErrTxnTerminated
	}
	for t := txn; t != nil; t = t.parent {
		t.mu.Lock()
		ended := t.txn == nil
		t.mu.Unlock()
		if ended {
			return ErrTxnTerminated
		}
	}
	return txn.env.active()
}

// chainLive reports whether every ancestor of the transaction is still
// live. When one is not, the engine has already ended this transaction's
// native handle along with the ancestor.
func (txn *Txn) chainLive() bool {
	for t := txn.parent; t != nil; t = t.parent {
		t.mu.Lock()
		ended := t.txn == nil
		t.mu.Unlock()
		if ended {
			return false
		}
	}
	return true
}

// take nulls the handle and returns it, or nil if the transaction had
// already ended. Every terminal path goes through take exactly once.
func (txn *Txn) take() *mdbx.Txn {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	ntxn := txn.txn
	txn.txn = nil
	return ntxn
}

// native returns the engine handle, or nil once the transaction ended.
func (txn *Txn) native() *mdbx.Txn {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.txn
}

// release drops the thread lock, the finalizer and the environment
// reference. Called once, after take.
func (txn *Txn) release() {
	if txn.threaded {
		txn.threaded = false
		runtime.UnlockOSThread()
	}
	runtime.SetFinalizer(txn, nil)
	txn.env.deref()
}

// CommitLatency reports where the time was spent during a commit.
type CommitLatency struct {
	Preparation time.Duration
	GCWallClock time.Duration
	GCCpuTime   time.Duration
	Audit       time.Duration
	Write       time.Duration
	Sync        time.Duration
	Ending      time.Duration
	Whole       time.Duration
}

// Commit commits the transaction and returns latency information.
// The handle is ended either way: when the engine rejects the commit,
// the transaction is aborted and the error returned. Committing a
// read-only transaction simply ends it.
func (txn *Txn) Commit() (CommitLatency, error) {
	var latency CommitLatency
	if err := txn.active(); err != nil {
		return latency, err
	}

	ntxn := txn.take()
	if ntxn == nil {
		return latency, ErrTxnTerminated
	}

	nlat, cerr := ntxn.Commit()
	if cerr != nil {
		// A failed commit may leave the native transaction alive;
		// aborting an already-ended one does nothing.
		ntxn.Abort()
	}
	txn.release()
	if cerr != nil {
		return latency, fromEngine(cerr)
	}
	return CommitLatency{
		Preparation: time.Duration(nlat.Preparation),
		GCWallClock: time.Duration(nlat.GCWallClock),
		GCCpuTime:   time.Duration(nlat.GCCpuTime),
		Audit:       time.Duration(nlat.Audit),
		Write:       time.Duration(nlat.Write),
		Sync:        time.Duration(nlat.Sync),
		Ending:      time.Duration(nlat.Ending),
		Whole:       time.Duration(nlat.Whole),
	}, nil
}

// Abort discards the transaction. Aborting one that has already ended
// does nothing, so a deferred Abort is always safe.
func (txn *Txn) Abort() {
	if txn == nil {
		return
	}
	live := txn.chainLive()
	ntxn := txn.take()
	if ntxn == nil {
		return
	}
	if live {
		ntxn.Abort()
	}
	txn.release()
}

// Reset releases a read-only transaction's snapshot without ending the
// handle; Renew then acquires a fresh one. Reset does nothing on
// read-write or inactive transactions.
func (txn *Txn) Reset() {
	if txn.active() != nil || !txn.readonly {
		return
	}
	if ntxn := txn.native(); ntxn != nil {
		ntxn.Reset()
	}
}

// Renew acquires a fresh snapshot for a previously Reset read-only
// transaction.
func (txn *Txn) Renew() error {
	if err := txn.active(); err != nil {
		return err
	}
	if err := txn.native().Renew(); err != nil {
		return fromEngine(err)
	}
	return nil
}

// Env returns the environment the transaction belongs to.
func (txn *Txn) Env() *Env {
	return txn.env
}

// Parent returns the parent transaction, or nil for a root transaction.
func (txn *Txn) Parent() *Txn {
	return txn.parent
}

// ReadOnly reports whether this is a read-only transaction.
func (txn *Txn) ReadOnly() bool {
	return txn.readonly
}

// ID returns the transaction's snapshot number, or 0 once it has ended.
func (txn *Txn) ID() uint64 {
	if txn.active() != nil {
		return 0
	}
	ntxn := txn.native()
	if ntxn == nil {
		return 0
	}
	return uint64(ntxn.ID())
}

// OpenDBI opens the named database within the transaction, creating it
// when the Create flag is given. An empty name opens the root database.
// The returned handle stays usable after this transaction ends, provided
// the transaction that created the database committed.
func (txn *Txn) OpenDBI(name string, flags uint) (*Database, error) {
	if name == "" {
		return txn.OpenRoot(flags)
	}
	if err := txn.active(); err != nil {
		return nil, err
	}
	dbi, err := txn.native().OpenDBI(name, flags, nil, nil)
	if err != nil {
		return nil, fromEngine(err)
	}
	return newDatabase(txn.env, dbi, name, false), nil
}

// OpenRoot opens the unnamed root database.
func (txn *Txn) OpenRoot(flags uint) (*Database, error) {
	if err := txn.active(); err != nil {
		return nil, err
	}
	dbi, err := txn.native().OpenRoot(flags)
	if err != nil {
		return nil, fromEngine(err)
	}
	return newDatabase(txn.env, dbi, "", true), nil
}

// ListDBI returns the names of the named databases. Keys of the root
// database that are not sub-database records are skipped.
func (txn *Txn) ListDBI() ([]string, error) {
	if err := txn.active(); err != nil {
		return nil, err
	}
	ntxn := txn.native()

	root, err := ntxn.OpenRoot(0)
	if err != nil {
		return nil, fromEngine(err)
	}
	cur, err := ntxn.OpenCursor(root)
	if err != nil {
		return nil, fromEngine(err)
	}
	defer cur.Close()

	var names []string
	k, _, err := cur.Get(nil, nil, First)
	for err == nil {
		name := string(k)
		if _, derr := ntxn.OpenDBI(name, 0, nil, nil); derr == nil {
			names = append(names, name)
		}
		k, _, err = cur.Get(nil, nil, Next)
	}
	if !mdbx.IsNotFound(err) {
		return nil, fromEngine(err)
	}
	return names, nil
}

// TxnOp is a function run inside a scoped transaction form such as
// View, Update or Sub. The enclosing form commits or aborts for it.
type TxnOp func(txn *Txn) error

// Sub runs fn in a nested transaction. The child commits when fn
// returns nil and aborts otherwise; either way the parent stays usable.
func (txn *Txn) Sub(fn TxnOp) error {
	child, err := txn.env.BeginTxn(txn, TxnReadWrite)
	if err != nil {
		return err
	}
	defer child.Abort()

	if err := fn(child); err != nil {
		return err
	}
	_, err = child.Commit()
	return err
}

// finalize aborts leaked transactions so the environment can wind down.
// Read-write transactions are bound to their creating thread and cannot
// be aborted from the finalizer goroutine; their native handles are left
// to the engine, but the environment reference is still dropped.
func (txn *Txn) finalize() {
	live := txn.chainLive()
	ntxn := txn.take()
	if ntxn == nil {
		return
	}
	logf(LogLvlWarn, "transaction leaked, released by finalizer (readonly=%v)", txn.readonly)
	if txn.readonly && live {
		ntxn.Abort()
	}
	txn.env.deref()
}
