package sdbx

import (
	"runtime"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Database is a handle to a named table (or the unnamed root table) of
// an environment.
//
// The handle is created under a transaction but is environment-scoped:
// once the creating transaction commits, the same handle works under any
// later transaction of the same environment. Every data operation takes
// an explicit transaction argument that is validated independently of
// the transaction the handle was opened under.
type Database struct {
	mu     sync.Mutex
	env    *Env
	dbi    mdbx.DBI
	name   string
	root   bool
	closed bool
}

func newDatabase(env *Env, dbi mdbx.DBI, name string, root bool) *Database {
	env.ref()
	db := &Database{env: env, dbi: dbi, name: name, root: root}
	runtime.SetFinalizer(db, (*Database).finalize)
	return db
}

// active returns nil while the handle has not been closed or dropped.
func (db *Database) active() error {
	db.mu.Lock()
	closed := db.closed
	db.mu.Unlock()
	if closed {
		return ErrDatabaseClosed
	}
	return nil
}

// check gates a data operation: the handle must be open, the transaction
// active, and both must belong to the same environment.
func (db *Database) check(txn *Txn) error {
	if err := db.active(); err != nil {
		return err
	}
	if txn == nil {
		return argErr("txn", "must not be nil")
	}
	if err := txn.active(); err != nil {
		return err
	}
	if txn.env != db.env {
		return argErr("txn", "belongs to a different environment")
	}
	return nil
}

// Name returns the database name, or "" for the root database.
func (db *Database) Name() string {
	return db.name
}

// Env returns the environment the database belongs to.
func (db *Database) Env() *Env {
	return db.env
}

// Get returns the value stored at key within txn's snapshot. A missing
// key reports ErrNotFound.
func (db *Database) Get(txn *Txn, key []byte) ([]byte, error) {
	if err := db.check(txn); err != nil {
		return nil, err
	}
	ntxn := txn.native()
	v, err := ntxn.Get(db.dbi, key)
	if err != nil {
		return nil, fromEngine(err)
	}
	return v, nil
}

// Put stores a key/value pair. Flags such as NoOverwrite, NoDupData,
// Current and Append pass through to the engine unchanged; use
// PutReserve instead of the Reserve flag.
func (db *Database) Put(txn *Txn, key, val []byte, flags uint) error {
	if flags&Reserve != 0 {
		return argErr("flags", "use PutReserve to reserve value space")
	}
	if err := db.check(txn); err != nil {
		return err
	}
	ntxn := txn.native()
	if err := ntxn.Put(db.dbi, key, val, flags); err != nil {
		return fromEngine(err)
	}
	return nil
}

// PutReserve allocates n bytes of value space for key and returns the
// writable slice. The slice is only valid until the next operation on
// the transaction.
func (db *Database) PutReserve(txn *Txn, key []byte, n int, flags uint) ([]byte, error) {
	if n < 0 {
		return nil, argErr("n", "must not be negative")
	}
	if err := db.check(txn); err != nil {
		return nil, err
	}
	ntxn := txn.native()
	buf, err := ntxn.PutReserve(db.dbi, key, n, flags)
	if err != nil {
		return nil, fromEngine(err)
	}
	return buf, nil
}

// Del removes a key/value pair. val may be nil; in sorted-duplicates
// mode a non-nil val selects which duplicate to remove, while nil
// removes every value stored under key.
func (db *Database) Del(txn *Txn, key, val []byte) error {
	if err := db.check(txn); err != nil {
		return err
	}
	ntxn := txn.native()
	if err := ntxn.Del(db.dbi, key, val); err != nil {
		return fromEngine(err)
	}
	return nil
}

// Drop removes the table and its data permanently and closes the
// handle. The removal is durable once txn commits.
func (db *Database) Drop(txn *Txn) error {
	if err := db.check(txn); err != nil {
		return err
	}
	ntxn := txn.native()
	if err := ntxn.Drop(db.dbi, true); err != nil {
		return fromEngine(err)
	}
	// The engine released the handle slot together with the table.
	db.mu.Lock()
	db.closed = true
	db.mu.Unlock()
	runtime.SetFinalizer(db, nil)
	db.env.deref()
	return nil
}

// Clear removes every entry from the table but keeps both the table and
// this handle usable.
func (db *Database) Clear(txn *Txn) error {
	if err := db.check(txn); err != nil {
		return err
	}
	ntxn := txn.native()
	if err := ntxn.Drop(db.dbi, false); err != nil {
		return fromEngine(err)
	}
	return nil
}

// Stat returns statistics for the table as seen by txn.
func (db *Database) Stat(txn *Txn) (*Stat, error) {
	if err := db.check(txn); err != nil {
		return nil, err
	}
	ntxn := txn.native()
	st, err := ntxn.StatDBI(db.dbi)
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

// Flags returns the flags the table was configured with.
func (db *Database) Flags(txn *Txn) (uint, error) {
	if err := db.check(txn); err != nil {
		return 0, err
	}
	ntxn := txn.native()
	flags, err := ntxn.Flags(db.dbi)
	if err != nil {
		return 0, fromEngine(err)
	}
	return uint(flags), nil
}

// Sequence reads the table's persistent sequence counter and, when
// increment is non-zero, advances it. The value before the change is
// returned.
func (db *Database) Sequence(txn *Txn, increment uint64) (uint64, error) {
	if err := db.check(txn); err != nil {
		return 0, err
	}
	ntxn := txn.native()
	seq, err := ntxn.Sequence(db.dbi, increment)
	if err != nil {
		return 0, fromEngine(err)
	}
	return uint64(seq), nil
}

// Close releases the table handle slot. Closing an already-closed
// handle fails with ErrDatabaseClosed. The root database keeps its
// engine slot; Close then only retires this handle.
func (db *Database) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrDatabaseClosed
	}
	db.closed = true
	root := db.root
	dbi := db.dbi
	db.mu.Unlock()

	if !root {
		db.env.closeDBI(dbi)
	}
	runtime.SetFinalizer(db, nil)
	db.env.deref()
	return nil
}

// finalize retires leaked handles so the environment can wind down.
func (db *Database) finalize() {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return
	}
	db.closed = true
	root := db.root
	dbi := db.dbi
	db.mu.Unlock()

	logf(LogLvlWarn, "database %q leaked, released by finalizer", db.name)
	if !root {
		db.env.closeDBI(dbi)
	}
	db.env.deref()
}
