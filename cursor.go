package sdbx

import (
	"runtime"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Cursor positioning operations, passed through to the engine unchanged.
const (
	// First positions at the first key
	First uint = iota
	// FirstDup positions at the first duplicate of current key
	FirstDup
	// GetBoth positions at exact key-value pair
	GetBoth
	// GetBothRange positions at key with value >= specified
	GetBothRange
	// GetCurrent returns current key-value
	GetCurrent
	// GetMultiple returns multiple values (DUPFIXED)
	GetMultiple
	// Last positions at the last key
	Last
	// LastDup positions at the last duplicate of current key
	LastDup
	// Next moves to the next key-value
	Next
	// NextDup moves to the next duplicate of current key
	NextDup
	// NextMultiple returns next multiple values (DUPFIXED)
	NextMultiple
	// NextNoDup moves to the first value of next key
	NextNoDup
	// Prev moves to the previous key-value
	Prev
	// PrevDup moves to the previous duplicate of current key
	PrevDup
	// PrevNoDup moves to the last value of previous key
	PrevNoDup
	// Set positions at specified key
	Set
	// SetKey positions at key, returns key and value
	SetKey
	// SetRange positions at first key >= specified
	SetRange
	// PrevMultiple returns previous multiple values (DUPFIXED)
	PrevMultiple
	// SetLowerbound positions at first key-value >= specified
	SetLowerbound
	// SetUpperbound positions at first key-value > specified
	SetUpperbound
	// LesserThan positions at the key less than specified
	LesserThan
)

// Cursor iterates a database within a transaction's snapshot.
//
// A cursor stays usable while it has not been closed and its bound
// transaction chain is active. The engine permits closing a cursor
// after its transaction has ended, so Close is the caller's duty on
// every cursor regardless of how the transaction finished.
type Cursor struct {
	mu     sync.Mutex
	txn    *Txn
	db     *Database
	cur    *mdbx.Cursor
	closed bool
}

// OpenCursor opens a cursor over the table, bound to txn. The
// transaction does not have to be the one the database handle was
// opened under.
func (db *Database) OpenCursor(txn *Txn) (*Cursor, error) {
	if err := db.check(txn); err != nil {
		return nil, err
	}
	ncur, err := txn.native().OpenCursor(db.dbi)
	if err != nil {
		return nil, fromEngine(err)
	}
	db.env.ref()
	cur := &Cursor{txn: txn, db: db, cur: ncur}
	runtime.SetFinalizer(cur, (*Cursor).finalize)
	return cur, nil
}

// CursorOp is a function run against a scoped cursor by RunCursor,
// which opens and closes the cursor around it.
type CursorOp func(cur *Cursor) error

// RunCursor opens a cursor over the table under txn, passes it to fn
// and closes it on every exit path, including a panic in fn.
func (db *Database) RunCursor(txn *Txn, fn CursorOp) error {
	cur, err := db.OpenCursor(txn)
	if err != nil {
		return err
	}
	defer cur.Close()
	return fn(cur)
}

// handle gates an operation: the cursor must be open and its bound
// transaction chain active.
func (cur *Cursor) handle() (*mdbx.Cursor, error) {
	cur.mu.Lock()
	ncur := cur.cur
	txn := cur.txn
	cur.mu.Unlock()
	if ncur == nil {
		return nil, ErrCursorClosed
	}
	if err := txn.active(); err != nil {
		return nil, err
	}
	return ncur, nil
}

// Database returns the database the cursor iterates.
func (cur *Cursor) Database() *Database {
	return cur.db
}

// Txn returns the transaction the cursor is currently bound to.
func (cur *Cursor) Txn() *Txn {
	cur.mu.Lock()
	defer cur.mu.Unlock()
	return cur.txn
}

// Get positions the cursor according to op and returns the entry there.
// setKey and setVal seed the Set*, GetBoth* and range operations; pass
// nil otherwise. Running past the last entry reports ErrNotFound.
func (cur *Cursor) Get(setKey, setVal []byte, op uint) (key, val []byte, err error) {
	ncur, err := cur.handle()
	if err != nil {
		return nil, nil, err
	}
	key, val, nerr := ncur.Get(setKey, setVal, op)
	if nerr != nil {
		return nil, nil, fromEngine(nerr)
	}
	return key, val, nil
}

// First positions at the first entry of the table.
func (cur *Cursor) First() (key, val []byte, err error) {
	return cur.Get(nil, nil, First)
}

// Last positions at the last entry of the table.
func (cur *Cursor) Last() (key, val []byte, err error) {
	return cur.Get(nil, nil, Last)
}

// Next moves to the entry after the current position.
func (cur *Cursor) Next() (key, val []byte, err error) {
	return cur.Get(nil, nil, Next)
}

// Prev moves to the entry before the current position.
func (cur *Cursor) Prev() (key, val []byte, err error) {
	return cur.Get(nil, nil, Prev)
}

// Current returns the entry at the current position.
func (cur *Cursor) Current() (key, val []byte, err error) {
	return cur.Get(nil, nil, GetCurrent)
}

// Set positions at key exactly, failing with ErrNotFound when the key
// is absent.
func (cur *Cursor) Set(key []byte) (k, v []byte, err error) {
	return cur.Get(key, nil, SetKey)
}

// SetRange positions at the first key greater than or equal to the
// given key.
func (cur *Cursor) SetRange(key []byte) (k, v []byte, err error) {
	return cur.Get(key, nil, SetRange)
}

// Put stores an entry through the cursor and leaves the cursor
// positioned on it. Put flags pass through unchanged, except Reserve;
// reserved buffers are only handed out by Database.PutReserve.
func (cur *Cursor) Put(key, val []byte, flags uint) error {
	if flags&Reserve != 0 {
		return argErr("flags", "use PutReserve to reserve value space")
	}
	ncur, err := cur.handle()
	if err != nil {
		return err
	}
	if err := ncur.Put(key, val, flags); err != nil {
		return fromEngine(err)
	}
	return nil
}

// Del removes the entry at the current position. With the AllDups flag
// every duplicate of the current key is removed.
func (cur *Cursor) Del(flags uint) error {
	ncur, err := cur.handle()
	if err != nil {
		return err
	}
	if err := ncur.Del(flags); err != nil {
		return fromEngine(err)
	}
	return nil
}

// Count returns the number of values stored under the current key. The
// count exceeds one only in sorted-duplicates mode.
func (cur *Cursor) Count() (uint64, error) {
	ncur, err := cur.handle()
	if err != nil {
		return 0, err
	}
	n, err := ncur.Count()
	if err != nil {
		return 0, fromEngine(err)
	}
	return uint64(n), nil
}

// Renew rebinds the cursor to another read-only transaction of the same
// environment, keeping the allocation but discarding the position. The
// previous transaction may already have ended.
func (cur *Cursor) Renew(txn *Txn) error {
	cur.mu.Lock()
	ncur := cur.cur
	cur.mu.Unlock()
	if ncur == nil {
		return ErrCursorClosed
	}
	if txn == nil {
		return argErr("txn", "must not be nil")
	}
	if err := txn.active(); err != nil {
		return err
	}
	if txn.env != cur.db.env {
		return argErr("txn", "belongs to a different environment")
	}
	if err := ncur.Renew(txn.native()); err != nil {
		return fromEngine(err)
	}
	cur.mu.Lock()
	cur.txn = txn
	cur.mu.Unlock()
	return nil
}

// Close releases the cursor. A second Close fails with ErrCursorClosed.
func (cur *Cursor) Close() error {
	cur.mu.Lock()
	if cur.closed {
		cur.mu.Unlock()
		return ErrCursorClosed
	}
	cur.closed = true
	ncur := cur.cur
	cur.cur = nil
	cur.mu.Unlock()

	ncur.Close()
	runtime.SetFinalizer(cur, nil)
	cur.db.env.deref()
	return nil
}

// finalize releases leaked cursors so the environment can wind down.
func (cur *Cursor) finalize() {
	cur.mu.Lock()
	if cur.closed {
		cur.mu.Unlock()
		return
	}
	cur.closed = true
	ncur := cur.cur
	cur.cur = nil
	cur.mu.Unlock()

	logf(LogLvlWarn, "cursor leaked, released by finalizer")
	ncur.Close()
	cur.db.env.deref()
}
